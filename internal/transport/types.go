// Package transport defines the outbound messaging contract between the
// dispatcher and the concrete Telegram adapter.
package transport

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type MediaType string

const (
	MediaPhoto     MediaType = "photo"
	MediaVideo     MediaType = "video"
	MediaAnimation MediaType = "animation"
	MediaDocument  MediaType = "document"
)

// Button is one inline-keyboard button. Exactly one of URL or Data should be set.
type Button struct {
	Text string
	URL  string
	Data string
}

// Payload is one message to deliver. Either Text alone, or a media reference
// (file id + type) with Text used as the caption.
type Payload struct {
	Text        string
	MediaFileID string
	MediaType   MediaType
	Buttons     [][]Button
}

func (p Payload) HasMedia() bool {
	return p.MediaFileID != "" && p.MediaType != ""
}

func (p Payload) Empty() bool {
	return strings.TrimSpace(p.Text) == "" && !p.HasMedia()
}

// Sender delivers one payload to one chat. Implementations return nil on
// success, a *SendError for recognized API failures, or any other error for
// unexpected ones.
type Sender interface {
	Send(ctx context.Context, chatID int64, p Payload) error
}

// ErrorKind is the coarse failure category the dispatcher acts on.
type ErrorKind int

const (
	// KindUnknown means the adapter could not categorize the failure.
	KindUnknown ErrorKind = iota
	// KindRateLimited carries a server-dictated wait before retrying.
	KindRateLimited
	// KindTransient is expected to be retry-recoverable (server/network fault).
	KindTransient
	// KindPermanent will not resolve on retry (blocked, bad recipient).
	KindPermanent
)

// SendError is the structured failure shape produced by adapters.
type SendError struct {
	Kind  ErrorKind
	Label string // stable summary bucket, e.g. "blocked", "network"
	Code  int    // API status code when known, 0 otherwise
	// RetryAfter is the server-supplied wait; set iff Kind == KindRateLimited.
	RetryAfter time.Duration
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("send %s: %v", e.Label, e.Err)
	}
	return fmt.Sprintf("send %s (code %d)", e.Label, e.Code)
}

func (e *SendError) Unwrap() error { return e.Err }
