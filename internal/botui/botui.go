// Package botui wires the Telegram handlers: the user-facing join flow and
// the admin panel with its broadcast and giveaway wizards.
package botui

import (
	"context"
	"errors"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"rafflebot/internal/config"
	"rafflebot/internal/giveaway"
	"rafflebot/internal/mailing"
	"rafflebot/internal/storage"
	"rafflebot/internal/texts"
	"rafflebot/pkg/logx"
)

type Bot struct {
	cfg       *config.Config
	rates     config.MailingRates
	tb        *tele.Bot
	store     *storage.Store
	mailer    *mailing.Service
	giveaways *giveaway.Service
	texts     *texts.Catalog
	log       logx.Logger

	ctx context.Context

	mu      sync.Mutex
	wizards map[int64]*wizard
}

func New(cfg *config.Config, tb *tele.Bot, store *storage.Store, mailer *mailing.Service, giveaways *giveaway.Service, cat *texts.Catalog, log logx.Logger) *Bot {
	return &Bot{
		cfg:       cfg,
		rates:     cfg.Mailing.Rates(),
		tb:        tb,
		store:     store,
		mailer:    mailer,
		giveaways: giveaways,
		texts:     cat,
		log:       log,
		wizards:   map[int64]*wizard{},
	}
}

// Register installs all handlers. ctx outlives individual updates and bounds
// background work started from handlers (dispatch runs, progress loops).
func (b *Bot) Register(ctx context.Context) {
	b.ctx = ctx

	b.tb.Handle("/start", b.onStart)
	b.tb.Handle("/admin", b.admin(b.onAdminMenu))
	b.tb.Handle("/broadcast", b.admin(b.onBroadcastStart))
	b.tb.Handle("/newgiveaway", b.admin(b.onGiveawayStart))
	b.tb.Handle("/finish", b.admin(b.onFinish))
	b.tb.Handle("/cancel", b.admin(b.onWizardCancel))
	b.tb.Handle("/skip", b.admin(b.onSkip))

	b.tb.Handle(tele.OnText, b.onText)
	b.tb.Handle(tele.OnPhoto, b.onMedia)
	b.tb.Handle(tele.OnVideo, b.onMedia)
	b.tb.Handle(tele.OnAnimation, b.onMedia)
	b.tb.Handle(tele.OnDocument, b.onMedia)
	b.tb.Handle(tele.OnCallback, b.onCallback)
}

// admin gates a handler to configured admin ids.
func (b *Bot) admin(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Sender() == nil || !b.cfg.IsAdmin(c.Sender().ID) {
			return c.Send(b.texts.Get("admin.not_admin"))
		}
		return next(c)
	}
}

func (b *Bot) onStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := b.store.UpsertUser(b.ctx, sender.ID, sender.Username); err != nil {
		b.log.Warn("upsert user failed", logx.Int64("user", sender.ID), logx.Err(err))
	}

	_, err := b.store.ActiveGiveaway(b.ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Send(b.texts.Get("user.welcome_idle"))
	}
	if err != nil {
		return err
	}

	mk := &tele.ReplyMarkup{}
	mk.Inline(mk.Row(mk.Data(b.texts.Get("user.join_button"), "join")))
	return c.Send(b.texts.Get("user.welcome"), mk)
}

func (b *Bot) onAdminMenu(c tele.Context) error {
	mk := &tele.ReplyMarkup{}
	mk.Inline(
		mk.Row(mk.Data(b.texts.Get("admin.menu_broadcast"), "menu", "broadcast")),
		mk.Row(mk.Data(b.texts.Get("admin.menu_new_giveaway"), "menu", "giveaway")),
		mk.Row(mk.Data(b.texts.Get("admin.menu_finish"), "menu", "finish")),
		mk.Row(mk.Data(b.texts.Get("admin.menu_stats"), "menu", "stats")),
	)
	return c.Send(b.texts.Get("admin.menu"), mk)
}

func (b *Bot) onStats(c tele.Context) error {
	users, err := b.store.CountUsers(b.ctx)
	if err != nil {
		return err
	}
	active := "—"
	participants := 0
	if g, err := b.store.ActiveGiveaway(b.ctx); err == nil {
		active = g.Description
		participants, _ = b.store.CountParticipants(b.ctx, g.ID)
	}
	return c.Send(b.texts.Format("admin.stats", map[string]any{
		"users":        users,
		"active":       active,
		"participants": participants,
	}))
}

func (b *Bot) onFinish(c tele.Context) error {
	g, err := b.store.ActiveGiveaway(b.ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Send(b.texts.Get("giveaway.none_active"))
	}
	if err != nil {
		return err
	}
	out, err := b.giveaways.Finish(b.ctx, g.ID)
	if err != nil {
		return err
	}
	if len(out.Winners) == 0 {
		return c.Send(b.texts.Format("giveaway.no_participants", map[string]any{"id": g.ID}))
	}
	return c.Send(b.texts.Format("giveaway.finished", map[string]any{
		"id":      g.ID,
		"winners": giveaway.FormatWinnerList(out.Winners),
	}))
}

// onCallback routes "action|payload" callback data. telebot prefixes unique
// data with "\f"; strip it before matching.
func (b *Bot) onCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	defer func() { _ = c.Respond() }()

	data := strings.TrimPrefix(cb.Data, "\f")
	action, payload, _ := strings.Cut(data, "|")

	switch action {
	case "join":
		return b.onJoin(c)
	case "menu":
		if c.Sender() == nil || !b.cfg.IsAdmin(c.Sender().ID) {
			return nil
		}
		switch payload {
		case "broadcast":
			return b.onBroadcastStart(c)
		case "giveaway":
			return b.onGiveawayStart(c)
		case "finish":
			return b.onFinish(c)
		case "stats":
			return b.onStats(c)
		}
	case "bc":
		if c.Sender() == nil || !b.cfg.IsAdmin(c.Sender().ID) {
			return nil
		}
		return b.onBroadcastCallback(c, payload)
	case "gw":
		if c.Sender() == nil || !b.cfg.IsAdmin(c.Sender().ID) {
			return nil
		}
		return b.onGiveawayCallback(c, payload)
	}
	return nil
}

func (b *Bot) onJoin(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	status, g, err := b.giveaways.Join(b.ctx, sender.ID, sender.Username)
	if errors.Is(err, giveaway.ErrNoneActive) {
		return c.Send(b.texts.Get("user.giveaway_over"))
	}
	if err != nil {
		b.log.Warn("join failed", logx.Int64("user", sender.ID), logx.Err(err))
		return c.Send(b.texts.Get("user.giveaway_over"))
	}
	switch status {
	case giveaway.NotSubscribed:
		return c.Send(b.texts.Format("user.subscribe_first", map[string]any{"join_url": b.cfg.Telegram.JoinURL}))
	case giveaway.AlreadyJoined:
		return c.Send(b.texts.Get("user.already_joined"))
	default:
		return c.Send(b.texts.Format("user.joined", map[string]any{
			"end_at": g.EndAt.Format("2006-01-02 15:04 MST"),
		}))
	}
}
