package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags the outcome of decoding one upstream line.
type Kind int

const (
	// KindSkip means the line carries nothing for the caller: blank lines,
	// "event:" announcements, comments, malformed JSON.
	KindSkip Kind = iota
	// KindFrame means Result.Frame holds a decoded frame.
	KindFrame
	// KindFatal means the stream can not be trusted any more; Result.Err says why.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindSkip:
		return "skip"
	case KindFrame:
		return "frame"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Frame is the normalized subset of an upstream event.
type Frame struct {
	Content   string
	SessionID string
}

// Result is the tagged outcome of ParseLine. Err is set for KindFatal and,
// for logging only, on a skipped line whose JSON did not parse.
type Result struct {
	Kind  Kind
	Frame Frame
	Err   error
}

type upstreamFrame struct {
	SessionID string          `json:"session_id"`
	Content   json.RawMessage `json:"content"`
}

type upstreamContent struct {
	Answer string `json:"answer"`
}

// ParseLine decodes a single upstream line of the form
//
//	data: {"session_id":"...","content":{"answer":"..."}}
func ParseLine(line string) Result {
	if len(line) > MaxLineBytes {
		return Result{Kind: KindFatal, Err: ErrLineTooLong}
	}
	payload, ok := DataPayload(line)
	if !ok {
		return Result{Kind: KindSkip}
	}

	var raw upstreamFrame
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Result{Kind: KindSkip, Err: err}
	}

	f := Frame{SessionID: raw.SessionID}
	// content is only meaningful when it is an object; other shapes are ignored
	if c := bytes.TrimSpace(raw.Content); len(c) > 0 && c[0] == '{' {
		var body upstreamContent
		if err := json.Unmarshal(c, &body); err == nil {
			f.Content = body.Answer
		}
	}

	if f.Content == "" && f.SessionID == "" {
		return Result{Kind: KindSkip}
	}
	return Result{Kind: KindFrame, Frame: f}
}

// DataPayload returns what follows "data: ". Lines without exactly that
// prefix, including "data:" with no space, carry no payload.
func DataPayload(line string) (string, bool) {
	return strings.CutPrefix(line, dataPrefix)
}
