package http1

import (
	"bufio"
	"io"
)

// byteRange is a half-open [start, end) span into a ranger's raw buffer.
type byteRange struct {
	start, end int
}

func (r byteRange) slice(raw []byte) []byte { return raw[r.start:r.end] }

// ranger accumulates the bytes of a single bounded read (a line, a header
// name, a header value) against a byte limit clamped to whatever budget
// remains on the owning Reader. It mirrors the "Ranger" helper from the
// original proxy's streaming reader: every consumed byte is buffered in raw
// so that returned ranges can be sliced out without re-reading, and the
// consumed count is folded back into the Reader's cumulative budget only
// when the ranger is done().
type ranger struct {
	raw   []byte
	r     *Reader
	limit int
	start int
}

func (rd *Reader) newRanger(limit int) *ranger {
	if avail := rd.remaining(); limit > avail {
		limit = avail
	}
	capHint := limit
	if capHint > 4096 {
		capHint = 4096
	}
	if capHint < 0 {
		capHint = 0
	}
	return &ranger{r: rd, limit: limit, raw: make([]byte, 0, capHint)}
}

// done folds the bytes consumed by this ranger into the Reader's cumulative
// budget and returns the accumulated raw buffer.
func (g *ranger) done() []byte {
	g.r.count += len(g.raw)
	return g.raw
}

func (g *ranger) readByte() (byte, error) {
	if len(g.raw) >= g.limit {
		return 0, ErrLimitReached
	}
	b, err := g.r.br.ReadByte()
	if err != nil {
		if err == io.EOF {
			return 0, ErrInvalidInput
		}
		return 0, err
	}
	g.raw = append(g.raw, b)
	return b, nil
}

func (g *ranger) peekByte() (byte, error) {
	if len(g.raw) >= g.limit {
		return 0, ErrLimitReached
	}
	b, err := g.r.br.Peek(1)
	if err != nil {
		if err == io.EOF {
			return 0, ErrInvalidInput
		}
		return 0, err
	}
	return b[0], nil
}

func (g *ranger) startRange() { g.start = len(g.raw) }

// to reads bytes (using the ranger's currently-set start, which to does NOT
// reset) until sep is found, and returns the range excluding sep. An
// embedded CR or LF other than sep is a protocol error.
func (g *ranger) to(sep byte) (byteRange, error) {
	for {
		b, err := g.readByte()
		if err != nil {
			return byteRange{}, err
		}
		if b == sep {
			break
		}
		if b == '\r' || b == '\n' {
			return byteRange{}, ErrInvalidInput
		}
	}
	return byteRange{g.start, len(g.raw) - 1}, nil
}

// rangeTo starts a fresh range at the current position and reads to sep.
func (g *ranger) rangeTo(sep byte) (byteRange, error) {
	g.startRange()
	return g.to(sep)
}

// rangeToAndSkipSP reads a fresh range to sep, then consumes any run of
// spaces/tabs immediately following sep (used for "NAME:   VALUE").
func (g *ranger) rangeToAndSkipSP(sep byte) (byteRange, error) {
	r, err := g.rangeTo(sep)
	if err != nil {
		return byteRange{}, err
	}
	if err := g.skipSP(); err != nil {
		return byteRange{}, err
	}
	return r, nil
}

func (g *ranger) expect(want byte) error {
	b, err := g.readByte()
	if err != nil {
		return err
	}
	if b != want {
		return ErrInvalidInput
	}
	return nil
}

func (g *ranger) nextIsSP() (bool, error) {
	b, err := g.peekByte()
	if err != nil {
		return false, err
	}
	return b == ' ' || b == '\t', nil
}

func (g *ranger) skipSP() error {
	for {
		sp, err := g.nextIsSP()
		if err != nil {
			return err
		}
		if !sp {
			return nil
		}
		if _, err := g.readByte(); err != nil {
			return err
		}
	}
}

// newBufioReader is a tiny helper so callers that only have an io.Reader
// (e.g. a raw net.Conn) can still build a Reader.
func newBufioReader(r io.Reader, size int) *bufio.Reader {
	if size <= 0 {
		size = 4096
	}
	return bufio.NewReaderSize(r, size)
}
