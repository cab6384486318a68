package sse

import (
	"errors"
	"io"
)

// Reader yields the "data:" payloads of an event stream, one per call.
type Reader struct {
	src     io.Reader
	lines   LineBuffer
	pending []string
	chunk   []byte
	err     error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{src: r, chunk: make([]byte, 4096)}
}

// Next returns the next data payload. It returns io.EOF once the source ends
// cleanly; any other error means the stream broke off.
func (r *Reader) Next() (string, error) {
	for {
		for len(r.pending) > 0 {
			line := r.pending[0]
			r.pending = r.pending[1:]
			if payload, ok := DataPayload(line); ok {
				return payload, nil
			}
		}
		if r.err != nil {
			return "", r.err
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.pending = r.lines.Push(r.chunk[:n])
			if r.lines.Len() > MaxLineBytes {
				r.err = ErrLineTooLong
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// an unterminated tail is not a line
				r.err = io.EOF
			} else {
				r.err = err
			}
		}
	}
}
