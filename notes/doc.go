// Package notes serves paginated note listings.
//
// PostgresService computes pages straight from the database. CachedService
// puts a cache.Loader in front of it so repeated identical listings are
// answered from memory: public listings share the "public" scope and an
// owner's listings live under "user:<subject>".
package notes
