package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultLinePrefix marks event lines in a stream that may also carry
// ordinary output
const DefaultLinePrefix = "@@harness "

// maxLineSize bounds a single encoded event; stack traces can be long
const maxLineSize = 4 * 1024 * 1024

// Encoder is a Sink that writes each event as one prefixed JSON line
type Encoder struct {
	messages
	mu     sync.Mutex
	w      io.Writer
	prefix string
	err    error
}

var _ Sink = (*Encoder)(nil)

// NewEncoder writes events to w. An empty prefix writes bare JSON lines.
func NewEncoder(w io.Writer, prefix string) *Encoder {
	e := &Encoder{w: w, prefix: prefix}
	e.messages = messages{emit: e.write}
	return e
}

func (e *Encoder) write(msg Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		e.err = fmt.Errorf("failed to encode %s event: %w", msg.Kind, err)
		return
	}
	line := make([]byte, 0, len(e.prefix)+len(data)+1)
	line = append(line, e.prefix...)
	line = append(line, data...)
	line = append(line, '\n')
	if _, err := e.w.Write(line); err != nil {
		e.err = fmt.Errorf("failed to write %s event: %w", msg.Kind, err)
	}
}

// Err returns the first encoding or write error. Events after it are dropped.
func (e *Encoder) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// DecodeMessage parses one line without its prefix
func DecodeMessage(line []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return msg, nil
}

// Decode reads lines from r and replays those carrying prefix to sink. Other
// lines are passed to other, which may be nil. Decode stops at the first
// malformed event line.
func Decode(r io.Reader, prefix string, sink Sink, other func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, prefix)
		if !ok || (prefix == "" && !strings.HasPrefix(strings.TrimSpace(line), "{")) {
			if other != nil {
				other(line)
			}
			continue
		}
		msg, err := DecodeMessage([]byte(payload))
		if err != nil {
			return err
		}
		if err := Replay(msg, sink); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	return nil
}
