package botui

import (
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"rafflebot/internal/storage"
	"rafflebot/internal/transport"
)

// Wizard steps. One wizard at a time per admin, held in memory; a restart
// simply drops unfinished wizards.
type step int

const (
	stepNone step = iota
	stepBroadcastContent
	stepGiveawayDescription
	stepGiveawayEnd
	stepGiveawayWinners
	stepGiveawayMedia
)

type wizard struct {
	step    step
	payload transport.Payload // broadcast content under construction
	draft   storage.Giveaway  // giveaway under construction
}

func (b *Bot) wizardFor(adminID int64) *wizard {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wizards[adminID]
}

func (b *Bot) setWizard(adminID int64, w *wizard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w == nil {
		delete(b.wizards, adminID)
		return
	}
	b.wizards[adminID] = w
}

func (b *Bot) onWizardCancel(c tele.Context) error {
	b.setWizard(c.Sender().ID, nil)
	return c.Send(b.texts.Get("admin.cancelled"))
}

// onText feeds admin wizard input; non-admin text is ignored.
func (b *Bot) onText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !b.cfg.IsAdmin(sender.ID) {
		return nil
	}
	w := b.wizardFor(sender.ID)
	if w == nil {
		return nil
	}

	text := c.Text()
	switch w.step {
	case stepBroadcastContent:
		w.payload = transport.Payload{Text: text}
		return b.confirmBroadcast(c, w)

	case stepGiveawayDescription:
		w.draft.Description = text
		w.step = stepGiveawayEnd
		return c.Send(b.texts.Get("giveaway.ask_end"))

	case stepGiveawayEnd:
		end, err := parseEndTime(text)
		if err != nil {
			return c.Send(b.texts.Get("giveaway.bad_end"))
		}
		w.draft.EndAt = end
		w.step = stepGiveawayWinners
		return c.Send(b.texts.Get("giveaway.ask_winners"))

	case stepGiveawayWinners:
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || n <= 0 {
			return c.Send(b.texts.Get("giveaway.bad_winners"))
		}
		w.draft.NumWinners = n
		w.step = stepGiveawayMedia
		return c.Send(b.texts.Get("giveaway.ask_media"))
	}
	return nil
}

// onMedia accepts media for the broadcast content step and the giveaway
// announcement step.
func (b *Bot) onMedia(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !b.cfg.IsAdmin(sender.ID) {
		return nil
	}
	w := b.wizardFor(sender.ID)
	if w == nil {
		return nil
	}

	fileID, mediaType := mediaFromMessage(c.Message())
	if fileID == "" {
		return nil
	}

	switch w.step {
	case stepBroadcastContent:
		w.payload = transport.Payload{
			Text:        c.Message().Caption,
			MediaFileID: fileID,
			MediaType:   mediaType,
		}
		return b.confirmBroadcast(c, w)

	case stepGiveawayMedia:
		w.draft.MediaFileID = fileID
		w.draft.MediaType = string(mediaType)
		return b.confirmGiveaway(c, w)
	}
	return nil
}

// onSkip skips the optional giveaway media step.
func (b *Bot) onSkip(c tele.Context) error {
	w := b.wizardFor(c.Sender().ID)
	if w == nil || w.step != stepGiveawayMedia {
		return nil
	}
	return b.confirmGiveaway(c, w)
}

func mediaFromMessage(m *tele.Message) (string, transport.MediaType) {
	switch {
	case m == nil:
		return "", ""
	case m.Photo != nil:
		return m.Photo.FileID, transport.MediaPhoto
	case m.Video != nil:
		return m.Video.FileID, transport.MediaVideo
	case m.Animation != nil:
		return m.Animation.FileID, transport.MediaAnimation
	case m.Document != nil:
		return m.Document.FileID, transport.MediaDocument
	}
	return "", ""
}

// parseEndTime accepts "2006-01-02 15:04" (UTC) or a bare date meaning
// midnight UTC.
func parseEndTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02 15:04", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ---- giveaway wizard ----

func (b *Bot) onGiveawayStart(c tele.Context) error {
	b.setWizard(c.Sender().ID, &wizard{step: stepGiveawayDescription})
	return c.Send(b.texts.Get("giveaway.ask_description"))
}

func (b *Bot) confirmGiveaway(c tele.Context, w *wizard) error {
	w.step = stepNone // waiting on buttons now
	mk := &tele.ReplyMarkup{}
	mk.Inline(mk.Row(
		mk.Data(b.texts.Get("broadcast.confirm_yes"), "gw", "create"),
		mk.Data(b.texts.Get("broadcast.confirm_no"), "gw", "cancel"),
	))
	return c.Send(b.texts.Format("giveaway.confirm", map[string]any{
		"description": w.draft.Description,
		"end_at":      w.draft.EndAt.Format("2006-01-02 15:04 MST"),
		"num_winners": w.draft.NumWinners,
	}), mk)
}

func (b *Bot) onGiveawayCallback(c tele.Context, payload string) error {
	adminID := c.Sender().ID
	w := b.wizardFor(adminID)

	switch payload {
	case "cancel":
		b.setWizard(adminID, nil)
		return c.Edit(b.texts.Get("admin.cancelled"))
	case "create":
		if w == nil {
			return nil
		}
		b.setWizard(adminID, nil)
		draft := w.draft
		draft.CreatedByID = adminID
		g, err := b.giveaways.Create(b.ctx, draft)
		if err != nil {
			if g.ID != 0 {
				return c.Edit(b.texts.Format("giveaway.announce_failed", map[string]any{"id": g.ID, "error": err}))
			}
			return err
		}
		return c.Edit(b.texts.Format("giveaway.created", map[string]any{"id": g.ID}))
	}
	return nil
}
