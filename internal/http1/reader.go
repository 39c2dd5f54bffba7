// Package http1 is a streaming HTTP/1.x codec: it parses request and status
// lines and headers byte-by-byte off a peekable reader without ever
// buffering a whole message, and computes body framing length from the
// parsed header summary. It never touches the body itself — that is left to
// the caller, which is expected to stream exactly as many bytes as
// RequestBodyLength or ResponseBodyLength reports (or until EOF/close when
// the length is unknown).
package http1

import (
	"bufio"
	"io"
)

// RequestLine is a parsed "METHOD PATH PROTO" line.
type RequestLine struct {
	Method, Path, Proto string
}

// StatusLine is a parsed "PROTO STATUS REASON" line.
type StatusLine struct {
	Proto      string
	StatusCode int
	Reason     string
}

// HeaderName distinguishes an actual header name from the end-of-headers
// marker (a bare CRLF where a name was expected).
type HeaderName struct {
	Name        string
	EndOfHeader bool
}

// Reader parses HTTP/1.x lines and headers off a buffered, peekable byte
// stream, enforcing an optional cumulative byte budget across every read it
// performs for the lifetime of one message.
type Reader struct {
	br    *bufio.Reader
	max   int // 0 means unbounded
	count int
}

// NewReader wraps r. maxTotalBytes bounds the sum of every byte consumed by
// every Read* call made on this Reader; 0 means unbounded.
func NewReader(r io.Reader, maxTotalBytes int) *Reader {
	return &Reader{br: newBufioReader(r, 4096), max: maxTotalBytes}
}

// NewReaderSize is like NewReader but lets the caller size the underlying
// buffer explicitly.
func NewReaderSize(r io.Reader, bufSize, maxTotalBytes int) *Reader {
	return &Reader{br: newBufioReader(r, bufSize), max: maxTotalBytes}
}

func (rd *Reader) remaining() int {
	if rd.max <= 0 {
		return int(^uint(0) >> 1) // no cumulative bound
	}
	left := rd.max - rd.count
	if left < 0 {
		return 0
	}
	return left
}

// Reset clears the cumulative byte budget counter, for reuse across
// keep-alive requests on the same connection.
func (rd *Reader) Reset() { rd.count = 0 }

// Peek returns the next n buffered bytes without consuming them, reading
// from the underlying stream as needed. It does not count against the
// cumulative budget: callers use it to detect EOF before a message starts,
// not to parse one.
func (rd *Reader) Peek(n int) ([]byte, error) { return rd.br.Peek(n) }

// Raw exposes the underlying buffered reader for the connection handler's
// body-copy phase, which streams bytes the codec itself never parses and
// so must not count against the line/header byte budgets above.
func (rd *Reader) Raw() *bufio.Reader { return rd.br }

// ReadRequestLine reads a CRLF-terminated "METHOD SP PATH SP PROTO CRLF"
// line, consuming at most maxBytes bytes (and never more than the Reader's
// remaining cumulative budget).
func (rd *Reader) ReadRequestLine(maxBytes int) (RequestLine, error) {
	g := rd.newRanger(maxBytes)
	method, err := g.rangeToAndSkipSP(' ')
	if err != nil {
		return RequestLine{}, err
	}
	path, err := g.rangeToAndSkipSP(' ')
	if err != nil {
		return RequestLine{}, err
	}
	proto, err := g.rangeTo('\r')
	if err != nil {
		return RequestLine{}, err
	}
	if err := g.expect('\n'); err != nil {
		return RequestLine{}, err
	}
	raw := g.done()
	return RequestLine{
		Method: string(method.slice(raw)),
		Path:   string(path.slice(raw)),
		Proto:  string(proto.slice(raw)),
	}, nil
}

// ReadStatusLine reads a CRLF-terminated "PROTO SP STATUS SP REASON CRLF"
// line, where REASON may itself contain spaces but never CR/LF.
func (rd *Reader) ReadStatusLine(maxBytes int) (StatusLine, error) {
	g := rd.newRanger(maxBytes)
	proto, err := g.rangeToAndSkipSP(' ')
	if err != nil {
		return StatusLine{}, err
	}
	status, err := g.rangeToAndSkipSP(' ')
	if err != nil {
		return StatusLine{}, err
	}
	reason, err := g.rangeTo('\r')
	if err != nil {
		return StatusLine{}, err
	}
	if err := g.expect('\n'); err != nil {
		return StatusLine{}, err
	}
	raw := g.done()
	code, ok := parseStatusCode(status.slice(raw))
	if !ok {
		return StatusLine{}, ErrInvalidInput
	}
	return StatusLine{
		Proto:      string(proto.slice(raw)),
		StatusCode: code,
		Reason:     string(reason.slice(raw)),
	}, nil
}

func parseStatusCode(b []byte) (int, bool) {
	if len(b) != 3 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// headerNameMaxBytes bounds a header field name: real-world header names
// are short tokens, and an unbounded name would let a client hold the
// connection's byte budget hostage one char at a time.
const headerNameMaxBytes = 40

// ReadHeaderName reads either a header name up to and including the ':' and
// any run of trailing tabs/spaces, or — if the next byte is CR — consumes
// the terminating CRLF and reports EndOfHeader.
func (rd *Reader) ReadHeaderName() (HeaderName, error) {
	g := rd.newRanger(headerNameMaxBytes)
	b, err := g.peekByte()
	if err != nil {
		return HeaderName{}, err
	}
	if b == '\r' {
		if _, err := g.readByte(); err != nil {
			return HeaderName{}, err
		}
		if err := g.expect('\n'); err != nil {
			return HeaderName{}, err
		}
		g.done()
		return HeaderName{EndOfHeader: true}, nil
	}
	name, err := g.rangeToAndSkipSP(':')
	if err != nil {
		return HeaderName{}, err
	}
	raw := g.done()
	return HeaderName{Name: string(name.slice(raw))}, nil
}

// ReadHeaderValue reads a header value: leading tabs/spaces are skipped,
// then bytes are read up to CRLF. If the byte following CRLF is itself a
// tab or space, the line is a folded continuation: the CRLF and the
// following whitespace run are preserved verbatim in the returned value and
// reading continues until a CRLF is followed by a non-whitespace byte,
// which is left unconsumed (it starts the next header name).
func (rd *Reader) ReadHeaderValue(maxBytes int) ([]byte, error) {
	g := rd.newRanger(maxBytes)
	if err := g.skipSP(); err != nil {
		return nil, err
	}
	g.startRange()
	start := g.start
	for {
		if _, err := g.to('\r'); err != nil {
			return nil, err
		}
		if err := g.expect('\n'); err != nil {
			return nil, err
		}
		folded, err := g.nextIsSP()
		if err != nil {
			return nil, err
		}
		if !folded {
			break
		}
	}
	raw := g.done()
	// The value spans from start (after the leading whitespace that was
	// skipped and excluded) to just before the final CRLF.
	return raw[start : len(raw)-2], nil
}

// SkipHeaderValue discards a header value with the same folded-continuation
// rules as ReadHeaderValue, without allocating a return value.
func (rd *Reader) SkipHeaderValue(maxBytes int) error {
	_, err := rd.ReadHeaderValue(maxBytes)
	return err
}
