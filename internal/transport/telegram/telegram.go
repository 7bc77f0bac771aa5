// Package telegram adapts the telebot client to the transport contract.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"rafflebot/internal/transport"
	"rafflebot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:     cfg.Token,
		Poller:    &tele.LongPoller{Timeout: timeout},
		ParseMode: tele.ModeHTML,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{bot: b, log: log}, nil
}

// Bot exposes the underlying client for handler registration.
func (a *Adapter) Bot() *tele.Bot { return a.bot }

// Start begins long polling. It returns once polling is running; Stop shuts
// the poller down.
func (a *Adapter) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		a.bot.Stop()
	}()
	go a.bot.Start()
	a.log.Info("telegram polling started", logx.String("bot", a.bot.Me.Username))
}

func (a *Adapter) Stop() {
	a.bot.Stop()
	a.log.Info("telegram polling stopped")
}

// Send implements transport.Sender. API failures come back as *transport.SendError.
func (a *Adapter) Send(ctx context.Context, chatID int64, p transport.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to := tele.ChatID(chatID)
	markup := buildMarkup(p.Buttons)

	var err error
	if p.HasMedia() {
		err = a.sendMedia(to, p, markup)
	} else {
		_, err = a.bot.Send(to, p.Text, markup)
	}
	return mapError(err)
}

func (a *Adapter) sendMedia(to tele.Recipient, p transport.Payload, markup *tele.ReplyMarkup) error {
	file := tele.File{FileID: p.MediaFileID}
	var what interface{}
	switch p.MediaType {
	case transport.MediaPhoto:
		what = &tele.Photo{File: file, Caption: p.Text}
	case transport.MediaVideo:
		what = &tele.Video{File: file, Caption: p.Text}
	case transport.MediaAnimation:
		what = &tele.Animation{File: file, Caption: p.Text}
	case transport.MediaDocument:
		what = &tele.Document{File: file, Caption: p.Text}
	default:
		return &transport.SendError{Kind: transport.KindPermanent, Label: "bad_media_type"}
	}
	_, err := a.bot.Send(to, what, markup)
	return err
}

func buildMarkup(rows [][]transport.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return &tele.ReplyMarkup{}
	}
	mk := &tele.ReplyMarkup{}
	out := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		btns := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			switch {
			case b.URL != "":
				btns = append(btns, mk.URL(b.Text, b.URL))
			default:
				btns = append(btns, mk.Data(b.Text, b.Data))
			}
		}
		out = append(out, mk.Row(btns...))
	}
	mk.Inline(out...)
	return mk
}

// IsChannelMember reports whether the user is subscribed to the channel
// (creator, administrator, or member count as subscribed).
func (a *Adapter) IsChannelMember(ctx context.Context, channelID, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	chat := &tele.Chat{ID: channelID}
	member, err := a.bot.ChatMemberOf(chat, &tele.User{ID: userID})
	if err != nil {
		// "member not found" style responses mean not subscribed, not a fault.
		var api *tele.Error
		if errors.As(err, &api) && api.Code == 400 {
			return false, nil
		}
		return false, err
	}
	switch member.Role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true, nil
	}
	return false, nil
}
