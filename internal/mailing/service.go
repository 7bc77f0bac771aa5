package mailing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rafflebot/internal/transport"
	"rafflebot/pkg/logx"
)

const (
	// Keep finished-run memory bounded. Runs are created per broadcast or
	// announcement and their results would otherwise be retained forever.
	defaultKeepMax = 100
	defaultKeepTTL = 24 * time.Hour
)

// Service is the run controller: it owns every dispatch run and is the only
// component that mutates run state. Callers hold Handles.
type Service struct {
	sender transport.Sender
	log    logx.Logger

	mu   sync.Mutex
	runs map[string]*run

	keepMax int
	keepTTL time.Duration
	// finishedAt records when a run went terminal, for pruning.
	finishedAt map[string]time.Time

	// backoffUnit scales the transient backoff schedule; production uses the
	// one-second default, tests shrink it.
	backoffUnit time.Duration
}

func NewService(sender transport.Sender, log logx.Logger) *Service {
	return &Service{
		sender:      sender,
		log:         log,
		runs:        map[string]*run{},
		finishedAt:  map[string]time.Time{},
		keepMax:     defaultKeepMax,
		keepTTL:     defaultKeepTTL,
		backoffUnit: time.Second,
	}
}

// Handle is the caller-visible reference to a run. It relays commands and
// queries to the owning Service; it holds no run state itself.
type Handle struct {
	id  string
	svc *Service
}

func (h Handle) ID() string { return h.id }

func (h Handle) Cancel() { h.svc.Cancel(h.id) }

func (h Handle) Status() (Snapshot, bool) { return h.svc.Status(h.id) }

func (h Handle) Await(ctx context.Context) (Result, error) { return h.svc.Await(ctx, h.id) }

// Start validates the request, spawns the run's worker pool, and returns
// immediately. The returned Handle is live before any send completes.
func (s *Service) Start(ctx context.Context, req Request) (Handle, error) {
	if err := req.Rate.Validate(); err != nil {
		return Handle{}, fmt.Errorf("start %q: %w", req.Name, err)
	}
	if req.Payload.Empty() {
		return Handle{}, fmt.Errorf("start %q: %w", req.Name, ErrEmptyPayload)
	}

	id := uuid.NewString()
	r := newRun(id, req, s.sender, s.backoffUnit, s.log.With(logx.String("run", id)))

	s.mu.Lock()
	s.prune(time.Now())
	s.runs[id] = r
	s.mu.Unlock()

	r.start(ctx, req.Rate.Burst)

	go func() {
		<-r.done
		s.mu.Lock()
		s.finishedAt[id] = time.Now()
		s.mu.Unlock()

		res := r.result
		fields := []logx.Field{
			logx.String("run", id),
			logx.String("name", req.Name),
			logx.Int("total", res.Total),
			logx.Int("sent", res.Sent),
			logx.Int("failed", res.Failed),
			logx.Int("skipped", res.Skipped),
			logx.Bool("cancelled", res.Cancelled),
			logx.Duration("dur", res.Duration),
		}
		if res.Failed > 0 {
			s.log.Warn("dispatch finished with failures", fields...)
		} else {
			s.log.Info("dispatch finished", fields...)
		}
	}()

	s.log.Info("dispatch started",
		logx.String("run", id),
		logx.String("name", req.Name),
		logx.Int("total", len(req.Recipients)),
		logx.Float64("rps", req.Rate.PerSecond),
		logx.Int("burst", req.Rate.Burst))

	return Handle{id: id, svc: s}, nil
}

// Cancel flips the run's cancel flag. Idempotent; cancelling an unknown or
// finished run is a no-op.
func (s *Service) Cancel(id string) {
	s.mu.Lock()
	r := s.runs[id]
	s.mu.Unlock()
	if r == nil || r.isDone() {
		return
	}
	if r.cancelled.CompareAndSwap(false, true) {
		s.log.Info("dispatch cancel requested", logx.String("run", id))
	}
}

// Status returns a lock-free progress snapshot.
func (s *Service) Status(id string) (Snapshot, bool) {
	s.mu.Lock()
	r := s.runs[id]
	s.mu.Unlock()
	if r == nil {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// Await blocks until the run is terminal and returns the frozen result.
func (s *Service) Await(ctx context.Context, id string) (Result, error) {
	s.mu.Lock()
	r := s.runs[id]
	s.mu.Unlock()
	if r == nil {
		return Result{}, ErrUnknownRun
	}
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-r.done:
		return *r.result, nil
	}
}

// prune drops finished runs past TTL, then the oldest finished runs beyond
// the keep cap. Live runs are never touched. Caller holds s.mu.
func (s *Service) prune(now time.Time) {
	for id, at := range s.finishedAt {
		if now.Sub(at) > s.keepTTL {
			delete(s.runs, id)
			delete(s.finishedAt, id)
		}
	}
	for len(s.finishedAt) > s.keepMax {
		oldestID := ""
		var oldest time.Time
		for id, at := range s.finishedAt {
			if oldestID == "" || at.Before(oldest) {
				oldestID, oldest = id, at
			}
		}
		delete(s.runs, oldestID)
		delete(s.finishedAt, oldestID)
	}
}
