package domain

import "context"

// SessionSender delivers a message to the live session registered under key.
// Sending to a key with no live session is not an error.
type SessionSender interface {
	Send(ctx context.Context, key string, message []byte) error
}
