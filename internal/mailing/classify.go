package mailing

import (
	"context"
	"errors"
	"time"

	"rafflebot/internal/transport"
)

type outcomeClass int

const (
	classSuccess outcomeClass = iota
	classRateLimited
	classTransient
	classPermanent
)

type classification struct {
	class      outcomeClass
	label      string        // summary bucket for failed outcomes
	retryAfter time.Duration // set iff classRateLimited
}

// classify maps a raw send outcome to a dispatch decision input. The same
// error always classifies identically. Unrecognized error shapes fail open
// toward retrying (transient) rather than silently dropping the recipient.
func classify(err error) classification {
	if err == nil {
		return classification{class: classSuccess}
	}

	var se *transport.SendError
	if errors.As(err, &se) {
		switch se.Kind {
		case transport.KindRateLimited:
			d := se.RetryAfter
			if d < 0 {
				d = 0
			}
			return classification{class: classRateLimited, retryAfter: d}
		case transport.KindPermanent:
			return classification{class: classPermanent, label: labelOr(se.Label, "api_error")}
		case transport.KindTransient:
			return classification{class: classTransient, label: labelOr(se.Label, "network")}
		}
		return classification{class: classTransient, label: labelOr(se.Label, "unexpected")}
	}

	// Context errors reach here when the run's context dies mid-send
	// (shutdown); retrying is harmless and the policy bounds it.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return classification{class: classTransient, label: "cancelled"}
	}

	return classification{class: classTransient, label: "unexpected"}
}

func labelOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
