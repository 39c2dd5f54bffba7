package http1

import "golang.org/x/net/http/httpguts"

// ValidHeaderName reports whether name is a legal HTTP header field name.
// The byte-level reader already rejects embedded CR/LF and bounds the
// length; this catches the remaining structural rules (token charset) that
// the ecosystem already codifies, rather than hand-rolling a second ASCII
// range check.
func ValidHeaderName(name string) bool { return httpguts.ValidHeaderFieldName(name) }

// ValidHeaderValue reports whether value is a legal HTTP header field value.
func ValidHeaderValue(value string) bool { return httpguts.ValidHeaderFieldValue(value) }
