// Package postgres provides a PostgreSQL implementation of the document and
// job history stores, using lib/pq and the pgvector extension for embeddings.
//
// The schema is created on connect. Chunk embeddings live in a vector(N)
// column sized from the configured embedding dimensions.
package postgres
