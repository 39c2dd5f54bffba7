package http1

import "strconv"

// Writer is an append-only byte buffer for building an HTTP/1.1 message a
// piece at a time: a status line, zero or more headers, the blank-line
// terminator, and (optionally) a Content-Length-framed body. It performs no
// other transform on what callers hand it — header rewriting is the
// connection handler's job, not the writer's.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer, optionally pre-sized.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// StatusLine appends "HTTP/1.1 <status> <reason>\r\n".
func (w *Writer) StatusLine(status int, reason string) *Writer {
	w.buf = append(w.buf, "HTTP/1.1 "...)
	w.buf = strconv.AppendInt(w.buf, int64(status), 10)
	w.buf = append(w.buf, ' ')
	w.buf = append(w.buf, reason...)
	w.buf = append(w.buf, "\r\n"...)
	return w
}

// RequestLine appends "<method> <path> <proto>\r\n".
func (w *Writer) RequestLine(method, path, proto string) *Writer {
	w.buf = append(w.buf, method...)
	w.buf = append(w.buf, ' ')
	w.buf = append(w.buf, path...)
	w.buf = append(w.buf, ' ')
	w.buf = append(w.buf, proto...)
	w.buf = append(w.buf, "\r\n"...)
	return w
}

// Header appends "<name>: <value>\r\n".
func (w *Writer) Header(name, value string) *Writer {
	w.buf = append(w.buf, name...)
	w.buf = append(w.buf, ": "...)
	w.buf = append(w.buf, value...)
	w.buf = append(w.buf, "\r\n"...)
	return w
}

// CRLF appends the blank-line header/body terminator.
func (w *Writer) CRLF() *Writer {
	w.buf = append(w.buf, "\r\n"...)
	return w
}

// ContentLengthBody appends a Content-Length header sized to body, the
// terminating blank line, and body itself.
func (w *Writer) ContentLengthBody(body []byte) *Writer {
	w.Header("Content-Length", strconv.Itoa(len(body)))
	w.CRLF()
	w.buf = append(w.buf, body...)
	return w
}

// Bytes returns the accumulated message bytes.
func (w *Writer) Bytes() []byte { return w.buf }

// Reset empties the buffer for reuse.
func (w *Writer) Reset() { w.buf = w.buf[:0] }
