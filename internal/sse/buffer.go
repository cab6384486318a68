// Package sse implements the line-oriented event-stream framing shared by the
// relay (decoding upstream bytes, encoding downstream events) and by clients
// reading the relay's output.
package sse

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxLineBytes caps a single buffered line. Anything longer is treated as a
// broken upstream rather than buffered forever.
const MaxLineBytes = 1 << 20

var ErrLineTooLong = errors.New("sse: line exceeds maximum length")

// LineBuffer reassembles lines from arbitrarily split reads. The zero value is
// ready to use. Lines are cut only at '\n', so a multi-byte rune split across
// two reads is always whole again before it is decoded.
type LineBuffer struct {
	buf []byte
}

// Push appends p and returns every line completed by it, without the trailing
// "\n" or "\r\n". The unterminated tail stays buffered for the next Push.
func (b *LineBuffer) Push(p []byte) []string {
	b.buf = append(b.buf, p...)

	var lines []string
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, decodeLine(b.buf[:i]))
		b.buf = b.buf[i+1:]
	}

	// compact so the backing array does not keep every byte ever read
	if len(b.buf) == 0 {
		b.buf = b.buf[:0:0]
	} else if cap(b.buf) > 2*len(b.buf)+4096 {
		b.buf = append([]byte(nil), b.buf...)
	}
	return lines
}

// Len reports the size of the buffered, unterminated fragment.
func (b *LineBuffer) Len() int { return len(b.buf) }

// Rest drains and returns the unterminated fragment.
func (b *LineBuffer) Rest() string {
	s := decodeLine(b.buf)
	b.buf = nil
	return s
}

func decodeLine(p []byte) string {
	p = bytes.TrimSuffix(p, []byte{'\r'})
	if utf8.Valid(p) {
		return string(p)
	}
	return strings.ToValidUTF8(string(p), "\uFFFD")
}
