// Package email delivers notification mail. Delivery is fire-and-forget
// from the engine's perspective: failures are logged or collected by
// callers, never rolled back into signature state.
package email

import "context"

// Attachment is an optional file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outbound email.
type Message struct {
	To         []string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NoopSender discards all messages. Used when no email backend is
// configured.
type NoopSender struct{}

func (NoopSender) Send(context.Context, Message) error { return nil }
