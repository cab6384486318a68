package sse

import (
	"bytes"
	"encoding/json"
)

const (
	DonePayload = "[DONE]"
	dataPrefix  = "data: "
)

// Done is the terminal sentinel event.
var Done = []byte(dataPrefix + DonePayload + "\n\n")

// ContentEvent is the only payload shape emitted for answer fragments.
type ContentEvent struct {
	Content string `json:"content"`
}

// SessionEvent announces a session id issued by the upstream mid-stream.
type SessionEvent struct {
	SessionID string `json:"session_id"`
}

// EncodeData frames v as a single "data:" event. HTML characters are left
// unescaped so the output matches what a browser JSON.stringify produces.
func EncodeData(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(dataPrefix)
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encode terminates with '\n'; one more ends the event
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func IsDone(payload string) bool { return payload == DonePayload }
