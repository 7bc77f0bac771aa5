package telegram

import (
	"errors"
	"net/url"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"rafflebot/internal/transport"
)

func TestMapErrorVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		err        error
		kind       transport.ErrorKind
		label      string
		retryAfter time.Duration
	}{
		{
			name:       "flood carries retry after",
			err:        tele.FloodError{RetryAfter: 14},
			kind:       transport.KindRateLimited,
			label:      "flood",
			retryAfter: 14 * time.Second,
		},
		{
			name:  "blocked by user",
			err:   tele.NewError(403, "Forbidden: bot was blocked by the user"),
			kind:  transport.KindPermanent,
			label: "blocked",
		},
		{
			name:  "deactivated user",
			err:   tele.NewError(403, "Forbidden: user is deactivated"),
			kind:  transport.KindPermanent,
			label: "deactivated",
		},
		{
			name:  "chat not found",
			err:   tele.NewError(400, "Bad Request: chat not found"),
			kind:  transport.KindPermanent,
			label: "chat_not_found",
		},
		{
			name:  "other bad request",
			err:   tele.NewError(400, "Bad Request: message is too long"),
			kind:  transport.KindPermanent,
			label: "bad_request",
		},
		{
			name:  "server error",
			err:   tele.NewError(502, "Bad Gateway"),
			kind:  transport.KindTransient,
			label: "api_5xx",
		},
		{
			name:  "unusual api code maps unknown",
			err:   tele.NewError(418, "I'm a teapot"),
			kind:  transport.KindUnknown,
			label: "api_error_418",
		},
		{
			name:  "url error is transient network",
			err:   &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: errors.New("connection reset")},
			kind:  transport.KindTransient,
			label: "network",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := mapError(tt.err)
			var se *transport.SendError
			if !errors.As(got, &se) {
				t.Fatalf("mapError(%v) = %v, want *SendError", tt.err, got)
			}
			if se.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", se.Kind, tt.kind)
			}
			if se.Label != tt.label {
				t.Fatalf("label = %q, want %q", se.Label, tt.label)
			}
			if se.RetryAfter != tt.retryAfter {
				t.Fatalf("retryAfter = %v, want %v", se.RetryAfter, tt.retryAfter)
			}
		})
	}
}

func TestMapErrorPassthrough(t *testing.T) {
	t.Parallel()
	if got := mapError(nil); got != nil {
		t.Fatalf("mapError(nil) = %v", got)
	}
	plain := errors.New("weird")
	if got := mapError(plain); got != plain {
		t.Fatalf("unrecognized error rewritten: %v", got)
	}
}
