package memory

import (
	"context"
	"sync"
)

// Message is one notification captured by Outbox.
type Message struct {
	Phone string
	Text  string
}

// Outbox is a ports.Notifier that keeps messages in memory.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Notify records the message.
func (o *Outbox) Notify(ctx context.Context, phone, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, Message{Phone: phone, Text: text})
	return nil
}

// Messages returns a copy of the recorded messages.
func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}
