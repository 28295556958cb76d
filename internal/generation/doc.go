// Package generation produces review questions for notes through an external
// LLM service (Gemini in production). The Client interface is the boundary to
// the service; Generator wraps any Client with bounded concurrency, retries
// with exponential backoff, and a deterministic fallback question, so that
// GenerateQuestion never fails.
package generation
