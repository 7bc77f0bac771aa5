package mailing

import (
	"errors"
	"time"

	"rafflebot/internal/transport"
)

var (
	ErrBadRateConfig = errors.New("mailing: invalid rate config")
	ErrEmptyPayload  = errors.New("mailing: empty payload")
	ErrUnknownRun    = errors.New("mailing: unknown run")
)

// RateConfig bounds one run's outbound throughput.
type RateConfig struct {
	PerSecond  float64 // token refill rate, > 0
	Burst      int     // bucket capacity and worker count, >= 1
	MaxRetries int     // retry budget per recipient for transient failures, >= 0
}

func (c RateConfig) Validate() error {
	if c.PerSecond <= 0 || c.Burst < 1 || c.MaxRetries < 0 {
		return ErrBadRateConfig
	}
	return nil
}

// Request is the immutable input to one dispatch run. The caller supplies the
// recipient list (duplicates already removed) and never sees it again.
type Request struct {
	Name       string // observability only; namespace it, e.g. "broadcast:weekly"
	Recipients []int64
	Payload    transport.Payload
	Rate       RateConfig
}

type Status string

const (
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// RecipientOutcome is the terminal record for one recipient, written exactly
// once per run.
type RecipientOutcome struct {
	Recipient int64
	Status    Status
	ErrorKind string // summary label, set iff Status == StatusFailed
	Attempts  int    // send attempts actually made
}

// Result is the frozen aggregate of a finished run.
type Result struct {
	RunID        string
	Name         string
	Total        int
	Sent         int
	Failed       int
	Skipped      int
	ErrorSummary map[string]int
	// Failures holds individual failed outcomes, capped so a huge run cannot
	// retain unbounded memory.
	Failures  []RecipientOutcome
	Duration  time.Duration
	Cancelled bool
}

// Snapshot is a cheap mid-run progress view.
type Snapshot struct {
	Sent  int
	Total int
	Done  bool
}
