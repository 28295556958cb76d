// Package domain contains the note reminder entities: the Note and its
// reminder state machine, the ReminderPolicy backoff table, the ReminderJob
// placed on the broker and the ReminderNotification pushed to a user.
package domain
