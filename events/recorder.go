package events

import (
	"sync"
)

// Recorder keeps every event it receives as a Message
type Recorder struct {
	messages
	mu  sync.Mutex
	log []Message
}

var _ Sink = (*Recorder)(nil)

func NewRecorder() *Recorder {
	r := &Recorder{}
	r.messages = messages{emit: r.append}
	return r
}

func (r *Recorder) append(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, msg)
}

// Messages returns a copy of the recorded messages
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.log))
	copy(out, r.log)
	return out
}

// Kinds returns the kinds of the recorded messages in order
func (r *Recorder) Kinds() []Kind {
	msgs := r.Messages()
	out := make([]Kind, len(msgs))
	for i, m := range msgs {
		out[i] = m.Kind
	}
	return out
}

// Replay delivers the recorded messages to sink in order
func (r *Recorder) Replay(sink Sink) error {
	for _, msg := range r.Messages() {
		if err := Replay(msg, sink); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}
