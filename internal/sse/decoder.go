// Package sse re-frames a relayed chat-completion event stream into text
// deltas, independent of how the bytes were split across network reads.
package sse

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// Event is one logical unit extracted from the stream. Exactly one of Delta
// or Done is set.
type Event struct {
	Delta string
	Done  bool
}

// chunkPayload is the subset of a streamed chat-completion chunk we read.
type chunkPayload struct {
	Choices []struct {
		Delta struct {
			Content json.RawMessage `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type decoderState int

const (
	stateAccumulating decoderState = iota
	stateDone
)

// Decoder is a push/pull state machine: bytes go in through Write, events
// come out through Next. It is not safe for concurrent use.
type Decoder struct {
	buf   []byte
	state decoderState

	// carried holds a line that failed to parse and was pushed back onto
	// buf. blocked stays set until more bytes arrive.
	carried string
	blocked bool
	dropped int
}

// NewDecoder returns a Decoder in the accumulating state.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write appends a chunk. Bytes that arrive after the terminator are discarded.
func (d *Decoder) Write(chunk []byte) (int, error) {
	if d.state == stateDone {
		return len(chunk), nil
	}
	d.buf = append(d.buf, chunk...)
	if len(chunk) > 0 {
		d.blocked = false
	}
	return len(chunk), nil
}

// Finish marks end of input. A trailing line without a newline is made
// available to Next, and a carried line gets its last chance to parse.
func (d *Decoder) Finish() {
	if d.state == stateDone {
		return
	}
	if len(d.buf) > 0 && d.buf[len(d.buf)-1] != '\n' {
		d.buf = append(d.buf, '\n')
	}
	d.blocked = false
}

// Done reports whether the terminator frame has been seen.
func (d *Decoder) Done() bool {
	return d.state == stateDone
}

// Dropped returns the number of complete lines discarded because their
// payload never parsed.
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Buffered returns the number of bytes waiting for a line terminator.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next returns the next event. It reports false when more bytes are needed
// or the stream is done.
func (d *Decoder) Next() (Event, bool) {
	for d.state == stateAccumulating && !d.blocked {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return Event{}, false
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]
		line = strings.TrimSuffix(line, "\r")

		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == doneSentinel {
			d.state = stateDone
			d.buf = nil
			d.carried = ""
			return Event{Done: true}, true
		}

		var chunk chunkPayload
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			if d.carried == line {
				// Already waited for more bytes once; a newline-terminated
				// payload cannot become valid by appending to the buffer.
				d.carried = ""
				d.dropped++
				continue
			}
			d.carried = line
			d.buf = append([]byte(line+"\n"), d.buf...)
			d.blocked = true
			return Event{}, false
		}
		d.carried = ""

		if len(chunk.Choices) == 0 {
			continue
		}
		// Non-string content is valid JSON that carries no delta.
		var content string
		if err := json.Unmarshal(chunk.Choices[0].Delta.Content, &content); err != nil || content == "" {
			continue
		}
		return Event{Delta: content}, true
	}
	return Event{}, false
}
