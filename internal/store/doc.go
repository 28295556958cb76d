// Package store declares the NoteStore persistence boundary, the errors its
// implementations return and RunInTransaction, which the PostgreSQL store
// uses to give the reminder service an atomic read-lock-write-publish unit.
package store
