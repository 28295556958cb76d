// Package reminder drives notes through the bounded reminder cycle.
//
// Service.Advance is the single state transition: load the note, produce a
// question, notify the user, then persist the next state together with the
// broker job that wakes the next reminder. Two producers call it. The Poller
// scans durable storage on a fixed interval and is authoritative; the
// Consumer claims due jobs from the delayed queue and is an optimization
// that delivers reminders closer to their scheduled time.
//
// Delivery is at-least-once. A note is never advanced past its reminder
// budget: the persisted write is conditional on the remind count that was
// read, and a stale or duplicate trigger is dropped.
package reminder
