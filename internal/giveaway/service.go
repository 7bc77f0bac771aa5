// Package giveaway holds the giveaway lifecycle: creation and channel
// announcement, participant joins behind a subscription gate, and the
// end-of-giveaway sweep that draws winners and notifies them through the
// mailing dispatcher.
package giveaway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rafflebot/internal/mailing"
	"rafflebot/internal/storage"
	"rafflebot/internal/texts"
	"rafflebot/internal/transport"
	"rafflebot/pkg/logx"
)

var ErrNoneActive = errors.New("giveaway: no active giveaway")

// Membership is the subscription gate, implemented by the telegram adapter.
type Membership interface {
	IsChannelMember(ctx context.Context, channelID, userID int64) (bool, error)
}

type Config struct {
	ChannelID  int64
	JoinURL    string
	SweepEvery time.Duration
	// WinnerRate bounds the winner-notification dispatch.
	WinnerRate mailing.RateConfig
}

type Service struct {
	cfg        Config
	store      *storage.Store
	mailer     *mailing.Service
	sender     transport.Sender
	membership Membership
	texts      *texts.Catalog
	log        logx.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func New(cfg Config, store *storage.Store, mailer *mailing.Service, sender transport.Sender, membership Membership, cat *texts.Catalog, log logx.Logger) *Service {
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = time.Minute
	}
	return &Service{
		cfg:        cfg,
		store:      store,
		mailer:     mailer,
		sender:     sender,
		membership: membership,
		texts:      cat,
		log:        log,
	}
}

// Start schedules the periodic sweep that finishes giveaways past their end time.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.SweepEvery), func() { s.sweep(ctx) }); err != nil {
		s.log.Error("sweep schedule rejected", logx.Duration("every", s.cfg.SweepEvery), logx.Err(err))
		return
	}
	c.Start()
	s.cron = c
	s.log.Info("sweep scheduled", logx.Duration("every", s.cfg.SweepEvery))
}

func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Service) sweep(ctx context.Context) {
	due, err := s.store.DueGiveaways(ctx, time.Now())
	if err != nil {
		s.log.Error("sweep query failed", logx.Err(err))
		return
	}
	for _, g := range due {
		if _, err := s.Finish(ctx, g.ID); err != nil {
			s.log.Error("sweep finish failed", logx.Int64("giveaway", g.ID), logx.Err(err))
		}
	}
}

// Create persists the giveaway and posts the announcement to the channel.
// A failed announcement does not roll the giveaway back; the admin is told
// and can re-announce.
func (s *Service) Create(ctx context.Context, g storage.Giveaway) (storage.Giveaway, error) {
	g.Active = true
	if g.StartAt.IsZero() {
		g.StartAt = time.Now().UTC()
	}
	id, err := s.store.CreateGiveaway(ctx, g)
	if err != nil {
		return storage.Giveaway{}, fmt.Errorf("create giveaway: %w", err)
	}
	g.ID = id
	s.log.Info("giveaway created", logx.Int64("giveaway", id), logx.Time("end_at", g.EndAt), logx.Int("winners", g.NumWinners))

	if err := s.Announce(ctx, g); err != nil {
		return g, fmt.Errorf("announce giveaway %d: %w", id, err)
	}
	return g, nil
}

// Announce posts the giveaway announcement to the configured channel.
func (s *Service) Announce(ctx context.Context, g storage.Giveaway) error {
	text := g.AnnounceText
	if strings.TrimSpace(text) == "" {
		text = g.Description
	}
	p := transport.Payload{
		Text:        text,
		MediaFileID: g.MediaFileID,
		MediaType:   transport.MediaType(g.MediaType),
	}
	if s.cfg.JoinURL != "" {
		p.Buttons = [][]transport.Button{{{Text: s.texts.Get("user.join_button"), URL: s.cfg.JoinURL}}}
	}
	return s.sender.Send(ctx, s.cfg.ChannelID, p)
}

type JoinStatus int

const (
	Joined JoinStatus = iota
	AlreadyJoined
	NotSubscribed
)

// Join enrolls a user into the active giveaway after the subscription check.
func (s *Service) Join(ctx context.Context, userID int64, username string) (JoinStatus, storage.Giveaway, error) {
	g, err := s.store.ActiveGiveaway(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, storage.Giveaway{}, ErrNoneActive
	}
	if err != nil {
		return 0, storage.Giveaway{}, err
	}

	ok, err := s.membership.IsChannelMember(ctx, s.cfg.ChannelID, userID)
	if err != nil {
		return 0, g, fmt.Errorf("subscription check for %d: %w", userID, err)
	}
	if !ok {
		return NotSubscribed, g, nil
	}

	added, err := s.store.AddParticipant(ctx, g.ID, userID, username)
	if err != nil {
		return 0, g, err
	}
	if !added {
		return AlreadyJoined, g, nil
	}
	s.log.Info("participant joined", logx.Int64("giveaway", g.ID), logx.Int64("user", userID))
	return Joined, g, nil
}

// Outcome describes a finished giveaway.
type Outcome struct {
	Giveaway     storage.Giveaway
	Winners      []storage.Winner
	Participants int
}

// Finish closes the giveaway, draws winners, announces them in the channel,
// and notifies the winners through the dispatcher.
func (s *Service) Finish(ctx context.Context, id int64) (Outcome, error) {
	g, err := s.store.GiveawayByID(ctx, id)
	if err != nil {
		return Outcome{}, err
	}

	participants, err := s.store.Participants(ctx, id)
	if err != nil {
		return Outcome{}, err
	}

	now := time.Now().UTC()
	if err := s.store.FinishGiveaway(ctx, id, now); err != nil {
		return Outcome{}, err
	}
	g.Active = false
	g.EndedAt = now

	winners := drawWinners(g.ID, participants, g.NumWinners)
	if len(winners) > 0 {
		if err := s.store.RecordWinners(ctx, winners); err != nil {
			return Outcome{}, err
		}
	}

	out := Outcome{Giveaway: g, Winners: winners, Participants: len(participants)}
	s.log.Info("giveaway finished", logx.Int64("giveaway", id), logx.Int("participants", len(participants)), logx.Int("winners", len(winners)))

	if len(winners) == 0 {
		return out, nil
	}

	// Winner list goes to the channel; individual congratulations go through
	// the dispatcher so the rate budget applies.
	announce := transport.Payload{
		Text: s.texts.Format("giveaway.finished", map[string]any{
			"id":      g.ID,
			"winners": FormatWinnerList(winners),
		}),
	}
	if err := s.sender.Send(ctx, s.cfg.ChannelID, announce); err != nil {
		s.log.Warn("winner announcement failed", logx.Int64("giveaway", id), logx.Err(err))
	}

	s.notifyWinners(ctx, g, winners)
	return out, nil
}

func (s *Service) notifyWinners(ctx context.Context, g storage.Giveaway, winners []storage.Winner) {
	ids := make([]int64, 0, len(winners))
	for _, w := range winners {
		ids = append(ids, w.UserID)
	}
	h, err := s.mailer.Start(ctx, mailing.Request{
		Name:       fmt.Sprintf("giveaway:%d:winners", g.ID),
		Recipients: ids,
		Payload: transport.Payload{
			Text: s.texts.Format("user.winner_congrats", map[string]any{"description": g.Description}),
		},
		Rate: s.cfg.WinnerRate,
	})
	if err != nil {
		s.log.Error("winner notify dispatch failed", logx.Int64("giveaway", g.ID), logx.Err(err))
		return
	}
	go func() {
		res, err := h.Await(ctx)
		if err != nil {
			return
		}
		if res.Sent > 0 {
			nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.store.MarkWinnersNotified(nctx, g.ID); err != nil {
				s.log.Warn("marking winners notified failed", logx.Int64("giveaway", g.ID), logx.Err(err))
			}
		}
	}()
}

// FormatWinnerList renders winners as a numbered list, by username where
// known, user id otherwise.
func FormatWinnerList(winners []storage.Winner) string {
	if len(winners) == 0 {
		return "—"
	}
	var b strings.Builder
	for i, w := range winners {
		if i > 0 {
			b.WriteByte('\n')
		}
		if w.Username != "" {
			fmt.Fprintf(&b, "%d. @%s", w.Position, w.Username)
		} else {
			fmt.Fprintf(&b, "%d. ID: %d", w.Position, w.UserID)
		}
	}
	return b.String()
}
