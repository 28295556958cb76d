// Package logger configures the process-wide JSON slog logger and carries
// request-scoped loggers through context.Context.
//
// Components take a base *slog.Logger at construction and prefer a logger
// found in the context via FromContextOrDefault, so attributes such as
// note_id added by the reminder service appear on every downstream line.
package logger
