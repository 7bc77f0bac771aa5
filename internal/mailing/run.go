package mailing

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"rafflebot/internal/transport"
	"rafflebot/pkg/logx"
)

// failuresKept caps the individual failure records retained per run; the
// aggregate counters stay exact regardless.
const failuresKept = 200

// run owns the full state of one dispatch. Workers share the queue, the
// limiter, and the serialized result section; everything else is worker-local.
type run struct {
	id         string
	name       string
	payload    transport.Payload
	total      int
	maxRetries int

	queue   chan int64
	limiter *rate.Limiter
	sender  transport.Sender
	log     logx.Logger

	cancelled atomic.Bool

	// Lock-free progress counters, readable mid-run via Snapshot.
	sent    atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64

	// mu guards the terminal-outcome bookkeeping only.
	mu       sync.Mutex
	summary  map[string]int
	failures []RecipientOutcome

	started     time.Time
	wg          sync.WaitGroup
	done        chan struct{}
	result      *Result // set before done is closed, immutable after
	backoffUnit time.Duration
}

func newRun(id string, req Request, sender transport.Sender, backoffUnit time.Duration, log logx.Logger) *run {
	r := &run{
		id:          id,
		name:        req.Name,
		payload:     req.Payload,
		total:       len(req.Recipients),
		maxRetries:  req.Rate.MaxRetries,
		queue:       make(chan int64, len(req.Recipients)),
		limiter:     rate.NewLimiter(rate.Limit(req.Rate.PerSecond), req.Rate.Burst),
		sender:      sender,
		log:         log,
		summary:     map[string]int{},
		done:        make(chan struct{}),
		backoffUnit: backoffUnit,
	}
	for _, id := range req.Recipients {
		r.queue <- id
	}
	close(r.queue)
	return r
}

// start spawns the worker pool and a supervisor that freezes the result once
// every recipient is terminal. It returns immediately.
func (r *run) start(ctx context.Context, workers int) {
	r.started = time.Now()
	if workers > r.total {
		workers = r.total
	}
	if workers < 1 {
		workers = 1
	}

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer r.wg.Done()
			defer func() {
				if p := recover(); p != nil {
					r.log.Error("panic in mailing worker", logx.String("run", r.id), logx.Int("worker", idx), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
				}
			}()
			r.worker(ctx)
		}()
	}

	go func() {
		r.wg.Wait()
		r.finish()
	}()
}

func (r *run) worker(ctx context.Context) {
	for recipient := range r.queue {
		// The cancel flag is checked once per dequeue. Remaining recipients
		// are drained as Skipped so the final accounting stays complete.
		if r.cancelled.Load() || ctx.Err() != nil {
			r.record(RecipientOutcome{Recipient: recipient, Status: StatusSkipped})
			continue
		}
		r.record(r.deliver(ctx, recipient))
	}
}

// deliver drives one recipient to a terminal outcome: rate gate, send,
// classify, retry per policy.
func (r *run) deliver(ctx context.Context, recipient int64) RecipientOutcome {
	attempts := 0 // budget-consuming retries granted so far
	sends := 0    // actual send attempts made
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			// Run context died while gated; the recipient was never sent to.
			return RecipientOutcome{Recipient: recipient, Status: StatusSkipped, Attempts: sends}
		}

		err := r.sender.Send(ctx, recipient, r.payload)
		sends++
		c := classify(err)

		switch c.class {
		case classSuccess:
			return RecipientOutcome{Recipient: recipient, Status: StatusSent, Attempts: sends}
		case classPermanent:
			return RecipientOutcome{Recipient: recipient, Status: StatusFailed, ErrorKind: c.label, Attempts: sends}
		}

		d := decide(c, attempts, r.maxRetries, r.backoffUnit)
		if !d.retry {
			return RecipientOutcome{Recipient: recipient, Status: StatusFailed, ErrorKind: c.label, Attempts: sends}
		}
		if d.budget {
			attempts++
		}

		if c.class == classRateLimited {
			r.log.Warn("rate limited by server", logx.String("run", r.id), logx.Int64("chat_id", recipient), logx.Duration("wait", d.wait))
		} else {
			r.log.Debug("send retry scheduled", logx.String("run", r.id), logx.Int64("chat_id", recipient), logx.Int("attempt", sends+1), logx.Duration("delay", d.wait), logx.Err(err))
		}

		if !r.sleep(ctx, d.wait) {
			return RecipientOutcome{Recipient: recipient, Status: StatusSkipped, Attempts: sends}
		}
	}
}

// sleep waits d, bailing out early only if the run context is torn down
// (process shutdown). Cooperative cancel does not interrupt a wait in flight.
func (r *run) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-tmr.C:
		return true
	}
}

// record is the single serialized point where a terminal outcome mutates
// shared state.
func (r *run) record(o RecipientOutcome) {
	switch o.Status {
	case StatusSent:
		r.sent.Add(1)
	case StatusSkipped:
		r.skipped.Add(1)
	case StatusFailed:
		r.failed.Add(1)
		r.mu.Lock()
		r.summary[o.ErrorKind]++
		if len(r.failures) < failuresKept {
			r.failures = append(r.failures, o)
		}
		r.mu.Unlock()
	}
}

func (r *run) finish() {
	r.mu.Lock()
	summary := make(map[string]int, len(r.summary))
	for k, v := range r.summary {
		summary[k] = v
	}
	failures := append([]RecipientOutcome(nil), r.failures...)
	r.mu.Unlock()

	r.result = &Result{
		RunID:        r.id,
		Name:         r.name,
		Total:        r.total,
		Sent:         int(r.sent.Load()),
		Failed:       int(r.failed.Load()),
		Skipped:      int(r.skipped.Load()),
		ErrorSummary: summary,
		Failures:     failures,
		Duration:     time.Since(r.started),
		Cancelled:    r.cancelled.Load(),
	}
	close(r.done)
}

func (r *run) snapshot() Snapshot {
	return Snapshot{
		Sent:  int(r.sent.Load()),
		Total: r.total,
		Done:  r.isDone(),
	}
}

func (r *run) isDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
