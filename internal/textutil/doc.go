// Package textutil provides the text folding used when turning user supplied
// names into storage paths: diacritic stripping, slugging and filename
// sanitization.
package textutil
