// Package cache provides a persistent store for extractor results.
//
// Results are keyed by the script name and the SHA-256 of its input, so a
// re-run over an unchanged corpus can skip invoking the interpreter.
package cache
