package http1

import "errors"

// Sentinel errors distinguished by the connection handler to choose a
// status code (414/413 vs 400) or to decide whether a reply is owed at all.
var (
	// ErrLimitReached means a read exceeded either its per-call budget or
	// the connection-level cumulative budget.
	ErrLimitReached = errors.New("http1: limit reached")

	// ErrInvalidInput means the bytes on the wire don't form a valid
	// request-line, status-line, or header — including an embedded CR/LF
	// where none is allowed, and EOF in the middle of a line.
	ErrInvalidInput = errors.New("http1: invalid input")
)
