// Package naming decides where a freshly uploaded source is stored: a
// directory per entity kind (productions, categories, home), a subdirectory
// from the slugged entity name, and a filename made of the source id and the
// slugged original name, with _preview and _fallback variants.
package naming
