package copilot

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/brijeshdobariya07/insightOS/internal/model"
)

// Finalizer produces the terminal payload from the accumulated token text
// when the upstream closes without a usable done event.
type Finalizer func(accumulated string) model.StructuredResponse

// Framer consumes a raw byte stream of newline-delimited JSON events and
// re-frames it as an ordered event sequence: zero or more token events
// followed by exactly one done event. The terminal done is guaranteed even
// when the upstream errors or closes early, so consumers never see an
// abrupt close with no result. Framing is independent of how the byte
// stream is chunked.
type Framer struct {
	r        io.Reader
	buf      []byte
	queue    []model.StreamEvent
	text     strings.Builder
	finalize Finalizer
	done     bool
	eof      bool
}

// NewFramer creates a framer with the default finalizer: accumulated text is
// run through the repair-and-validate engine and degraded to the safe
// fallback on failure.
func NewFramer(r io.Reader) *Framer {
	return NewFramerFunc(r, func(accumulated string) model.StructuredResponse {
		resp, _, err := ParseAndValidate(accumulated)
		if err != nil {
			return FallbackResponse()
		}
		return resp
	})
}

// NewFramerFunc creates a framer with a custom finalizer.
func NewFramerFunc(r io.Reader, finalize Finalizer) *Framer {
	return &Framer{r: r, finalize: finalize}
}

// Text returns the token content accumulated so far.
func (f *Framer) Text() string {
	return f.text.String()
}

// Next returns the next stream event. After the terminal done event it
// returns io.EOF.
func (f *Framer) Next() (model.StreamEvent, error) {
	for {
		if len(f.queue) > 0 {
			event := f.queue[0]
			f.queue = f.queue[1:]
			if event.Type == model.StreamEventDone {
				f.done = true
				f.queue = nil
			}
			return event, nil
		}

		if f.done {
			return model.StreamEvent{}, io.EOF
		}

		if f.eof {
			// Upstream ended without a done line: synthesize the terminal
			// event from the accumulated text.
			f.queue = append(f.queue, model.DoneEvent(f.finalize(f.text.String())))
			continue
		}

		chunk := make([]byte, 4096)
		n, err := f.r.Read(chunk)
		if n > 0 {
			f.buf = append(f.buf, chunk[:n]...)
			f.consumeLines()
		}
		if err != nil {
			// io.EOF is the normal close; any other error is a provider
			// failure. Either way the consumer still gets a terminal done.
			f.eof = true
		}
	}
}

// consumeLines splits buffered bytes on newline boundaries and parses each
// complete line as a self-contained event. The trailing segment without a
// terminator stays buffered for a future read. Blank and malformed lines
// are upstream framing noise, not fatal.
func (f *Framer) consumeLines() {
	for {
		idx := bytes.IndexByte(f.buf, '\n')
		if idx < 0 {
			return
		}

		line := bytes.TrimSpace(f.buf[:idx])
		f.buf = f.buf[idx+1:]

		if len(line) == 0 {
			continue
		}

		var event model.StreamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}

		switch event.Type {
		case model.StreamEventToken:
			f.text.WriteString(event.Content)
			f.queue = append(f.queue, event)
		case model.StreamEventDone:
			if event.Payload == nil {
				continue
			}
			f.queue = append(f.queue, event)
		default:
			// Unknown event types are discarded like any other noise.
		}
	}
}
