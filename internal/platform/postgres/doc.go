// Package postgres provides the PostgreSQL implementation of store.NoteStore,
// the embedded schema migrations, and the mapping from pgx errors to store errors.
package postgres
