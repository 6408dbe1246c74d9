package domain

import (
	"errors"
	"fmt"
)

var (
	ErrContentNotFound = errors.New("content not found")
	ErrFeedNotFound    = errors.New("feed not found")
	ErrMailboxClosed   = errors.New("session mailbox closed")
	ErrMailboxFull     = errors.New("session mailbox full")
	ErrRegistryStopped = errors.New("session registry stopped")
	ErrInvalidToken    = errors.New("invalid token")
)

// Kind classifies a failure by the stage that produced it.
type Kind string

const (
	KindFetch         Kind = "fetch"
	KindParse         Kind = "parse"
	KindStorage       Kind = "storage"
	KindBroker        Kind = "broker"
	KindSerialization Kind = "serialization"
	KindDelivery      Kind = "delivery"
	KindAuth          Kind = "auth"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Kind == kind {
		return true
	}
	return IsKind(e.Err, kind)
}

func NewFetchError(op string, err error) error {
	return &Error{Kind: KindFetch, Op: op, Err: err}
}

func NewParseError(op string, err error) error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

func NewStorageError(op string, err error) error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

func NewBrokerError(op string, err error) error {
	return &Error{Kind: KindBroker, Op: op, Err: err}
}

func NewSerializationError(op string, err error) error {
	return &Error{Kind: KindSerialization, Op: op, Err: err}
}

func NewDeliveryError(op string, err error) error {
	return &Error{Kind: KindDelivery, Op: op, Err: err}
}

func NewAuthError(op string, err error) error {
	return &Error{Kind: KindAuth, Op: op, Err: err}
}
