package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pushAll(chunks [][]byte) []string {
	var b LineBuffer
	var out []string
	for _, c := range chunks {
		out = append(out, b.Push(c)...)
	}
	return out
}

func TestLineBufferRetainsPartialLine(t *testing.T) {
	var b LineBuffer
	assert.Empty(t, b.Push([]byte("data: {\"a\"")))
	assert.Equal(t, 10, b.Len())
	assert.Equal(t, []string{`data: {"a":1}`}, b.Push([]byte(":1}\nda")))
	assert.Equal(t, "da", b.Rest())
	assert.Equal(t, 0, b.Len())
}

func TestLineBufferStripsCR(t *testing.T) {
	var b LineBuffer
	assert.Equal(t, []string{"event: message", "data: x", ""}, b.Push([]byte("event: message\r\ndata: x\r\n\r\n")))
}

func TestLineBufferChunkBoundaryIndependence(t *testing.T) {
	stream := []byte("event: message\n" +
		"data: {\"content\":{\"answer\":\"你好\"}}\n\n" +
		"data: {\"content\":{\"answer\":\"，车友\"}}\n" +
		"data: not json\n" +
		"data: {\"session_id\":\"s-2\",\"content\":{\"answer\":\"🚗\"}}\n")

	whole := pushAll([][]byte{stream})

	// every split point, including ones inside multi-byte runes
	for i := 0; i <= len(stream); i++ {
		got := pushAll([][]byte{stream[:i], stream[i:]})
		assert.Equal(t, whole, got, "split at %d", i)
	}

	// one byte at a time
	var single [][]byte
	for i := range stream {
		single = append(single, stream[i:i+1])
	}
	assert.Equal(t, whole, pushAll(single))
}

func TestLineBufferReplacesInvalidUTF8(t *testing.T) {
	var b LineBuffer
	lines := b.Push([]byte("data: \xff\xfe ok\n"))
	assert.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], " ok"))
	assert.Contains(t, lines[0], "�")
}
