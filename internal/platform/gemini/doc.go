// Package gemini implements generation.Client on top of Google's Gemini API.
//
// It is an infrastructure adapter: it sends a single user prompt to the
// configured model and returns the first text block of the first candidate,
// translating safety blocks and empty replies into the generation package's
// permanent errors. Retries, timeouts and fallbacks live in the generation
// package, not here.
package gemini
