package mail

import (
	"context"
	"sync"
)

// Message is a delivery captured by a Recorder.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Recorder is an in-memory Sink for tests and dry runs.
type Recorder struct {
	mu       sync.Mutex
	messages []Message

	// Fail makes every Send report failure after recording the attempt.
	Fail bool
}

// Send implements Sink.
func (r *Recorder) Send(_ context.Context, to, subject, body string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{To: to, Subject: subject, Body: body})
	return !r.Fail
}

// Messages returns a copy of every delivery attempt.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Reset discards recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
