// Package media defines the catalog model shared by the transfer and task
// code: entities (productions, categories, presentation containers), their
// media items and sources, users, and the SourceRef triple that addresses a
// single source. Resolve walks an entity to the addressed source.
package media
