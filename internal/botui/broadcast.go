package botui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"rafflebot/internal/mailing"
	"rafflebot/pkg/logx"
)

const progressEvery = 2 * time.Second

func (b *Bot) onBroadcastStart(c tele.Context) error {
	b.setWizard(c.Sender().ID, &wizard{step: stepBroadcastContent})
	return c.Send(b.texts.Get("broadcast.ask_content"))
}

func (b *Bot) confirmBroadcast(c tele.Context, w *wizard) error {
	w.step = stepNone // waiting on buttons now
	count, err := b.store.CountUsers(b.ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		b.setWizard(c.Sender().ID, nil)
		return c.Send(b.texts.Get("broadcast.no_recipients"))
	}
	mk := &tele.ReplyMarkup{}
	mk.Inline(mk.Row(
		mk.Data(b.texts.Get("broadcast.confirm_yes"), "bc", "send"),
		mk.Data(b.texts.Get("broadcast.confirm_no"), "bc", "cancel"),
	))
	return c.Send(b.texts.Format("broadcast.confirm", map[string]any{"count": count}), mk)
}

func (b *Bot) onBroadcastCallback(c tele.Context, payload string) error {
	adminID := c.Sender().ID

	action, arg, _ := strings.Cut(payload, "|")
	switch action {
	case "cancel":
		b.setWizard(adminID, nil)
		return c.Edit(b.texts.Get("admin.cancelled"))
	case "stop":
		b.mailer.Cancel(arg)
		return nil
	case "send":
		w := b.wizardFor(adminID)
		if w == nil {
			return nil
		}
		b.setWizard(adminID, nil)
		return b.startBroadcast(c, w)
	}
	return nil
}

func (b *Bot) startBroadcast(c tele.Context, w *wizard) error {
	recipients, err := b.store.AllUserIDs(b.ctx)
	if err != nil {
		return err
	}

	h, err := b.mailer.Start(b.ctx, mailing.Request{
		Name:       "broadcast:admin",
		Recipients: recipients,
		Payload:    w.payload,
		Rate: mailing.RateConfig{
			PerSecond:  b.rates.BroadcastRPS,
			Burst:      b.rates.Burst,
			MaxRetries: b.rates.MaxRetries,
		},
	})
	if err != nil {
		return err
	}

	// Replace the confirm message with a live progress view and a stop button.
	mk := stopMarkup(b.texts.Get("broadcast.cancel_run"), h.ID())
	msg, err := b.tb.Edit(c.Message(), b.texts.Format("broadcast.progress", map[string]any{
		"sent":  0,
		"total": len(recipients),
	}), mk)
	if err != nil {
		// The admin still gets a summary; only live progress is lost.
		b.log.Warn("progress message edit failed", logx.Err(err))
	}

	go b.trackProgress(h, msg, mk)
	return nil
}

func stopMarkup(label, runID string) *tele.ReplyMarkup {
	mk := &tele.ReplyMarkup{}
	mk.Inline(mk.Row(mk.Data(label, "bc", "stop|"+runID)))
	return mk
}

// trackProgress edits the progress message until the run finishes, then
// swaps it for the final summary.
func (b *Bot) trackProgress(h mailing.Handle, msg *tele.Message, mk *tele.ReplyMarkup) {
	tick := time.NewTicker(progressEvery)
	defer tick.Stop()

	awaitCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	done := make(chan mailing.Result, 1)
	go func() {
		if res, err := h.Await(awaitCtx); err == nil {
			done <- res
		}
	}()

	for {
		select {
		case <-b.ctx.Done():
			return
		case res := <-done:
			if msg != nil {
				if _, err := b.tb.Edit(msg, b.summaryText(res)); err != nil {
					b.log.Warn("summary edit failed", logx.Err(err))
				}
			}
			return
		case <-tick.C:
			snap, ok := h.Status()
			if !ok || msg == nil {
				continue
			}
			text := b.texts.Format("broadcast.progress", map[string]any{
				"sent":  snap.Sent,
				"total": snap.Total,
			})
			if m, err := b.tb.Edit(msg, text, mk); err == nil {
				msg = m
			}
		}
	}
}

func (b *Bot) summaryText(res mailing.Result) string {
	s := b.texts.Format("broadcast.summary", map[string]any{
		"sent":     res.Sent,
		"failed":   res.Failed,
		"skipped":  res.Skipped,
		"duration": res.Duration.Round(time.Second),
	})
	if len(res.ErrorSummary) > 0 {
		s += "\n\n" + b.texts.Format("broadcast.summary_errors", map[string]any{
			"errors": formatErrorSummary(res.ErrorSummary),
		})
	}
	return s
}

// formatErrorSummary renders error-kind counts sorted by count, then name,
// e.g. "blocked: 12\nnetwork: 8".
func formatErrorSummary(summary map[string]int) string {
	type kv struct {
		kind  string
		count int
	}
	items := make([]kv, 0, len(summary))
	for k, v := range summary {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].kind < items[j].kind
	})
	var bld strings.Builder
	for i, it := range items {
		if i > 0 {
			bld.WriteByte('\n')
		}
		fmt.Fprintf(&bld, "%s: %d", it.kind, it.count)
	}
	return bld.String()
}
