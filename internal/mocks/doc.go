// Package mocks provides centralized mock implementations for testing.
//
// This package contains mock implementations of the interfaces the reminder
// pipeline depends on, so that tests across packages share one behaviour.
//
// Each mock has function fields (XxxFn) that override the default behaviour
// and records its calls for verification. Defaults are useful on their own:
// MockNoteStore is an in-memory store with rollback-on-error transactions.
//
// Usage:
//
//	import "github.com/phrazzld/scry-notes/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    notes := mocks.NewMockNoteStore()
//	    notes.Put(note)
//	    gen := &mocks.MockQuestionGenerator{Question: "What is X?"}
//
//	    // Use the mocks in your test...
//	}
package mocks
