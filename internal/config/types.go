package config

import (
	"errors"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Mailing  MailingConfig  `json:"mailing"`
	Giveaway GiveawayConfig `json:"giveaway"`
}

type TelegramConfig struct {
	Token    string  `json:"token"`
	AdminIDs []int64 `json:"admin_ids"`
	// ChannelID is the channel users must be subscribed to before joining a
	// giveaway; announcements are posted there too.
	ChannelID int64  `json:"channel_id"`
	JoinURL   string `json:"join_url"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level       string `json:"level"`
	Console     bool   `json:"console"`
	FileEnabled bool   `json:"file_enabled,omitempty"`
	FilePath    string `json:"file_path,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite busy handler).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// MailingConfig holds the operator-tuned rate limits for mass sends.
//
// Defaults (when fields are omitted):
//   - broadcast_rps: 20
//   - announce_rps: 20
//   - burst: 5
//   - max_retries: 5
type MailingConfig struct {
	BroadcastRPS float64 `json:"broadcast_rps,omitempty"`
	AnnounceRPS  float64 `json:"announce_rps,omitempty"`
	Burst        int     `json:"burst,omitempty"`
	// MaxRetries is a pointer so an explicit 0 (no retry budget) is
	// distinguishable from the field being absent.
	MaxRetries *int `json:"max_retries,omitempty"`
}

type GiveawayConfig struct {
	// SweepEvery controls how often giveaways past their end time are closed.
	// Go duration string; default "1m".
	SweepEvery string `json:"sweep_every,omitempty"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if len(c.Telegram.AdminIDs) == 0 {
		return errors.New("telegram.admin_ids is required")
	}
	if c.Telegram.ChannelID == 0 {
		return errors.New("telegram.channel_id is required")
	}
	m := c.Mailing
	if m.BroadcastRPS < 0 || m.AnnounceRPS < 0 || m.Burst < 0 {
		return errors.New("mailing values must not be negative")
	}
	if m.MaxRetries != nil && *m.MaxRetries < 0 {
		return errors.New("mailing.max_retries must be >= 0")
	}
	for _, f := range []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"giveaway.sweep_every", c.Giveaway.SweepEvery},
	} {
		if _, err := parseDuration(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}

// MailingRates is MailingConfig with defaults applied.
type MailingRates struct {
	BroadcastRPS float64
	AnnounceRPS  float64
	Burst        int
	MaxRetries   int
}

// Rates returns the mailing config with defaults filled in. An explicit
// max_retries of 0 is kept as 0.
func (m MailingConfig) Rates() MailingRates {
	r := MailingRates{
		BroadcastRPS: m.BroadcastRPS,
		AnnounceRPS:  m.AnnounceRPS,
		Burst:        m.Burst,
		MaxRetries:   5,
	}
	if r.BroadcastRPS <= 0 {
		r.BroadcastRPS = 20
	}
	if r.AnnounceRPS <= 0 {
		r.AnnounceRPS = 20
	}
	if r.Burst <= 0 {
		r.Burst = 5
	}
	if m.MaxRetries != nil {
		r.MaxRetries = *m.MaxRetries
	}
	return r
}

// Duration accessors assume Validate passed; broken strings were rejected there.

func (t TelegramConfig) PollTimeoutDuration() time.Duration {
	return durationOr(t.PollTimeout, 10*time.Second)
}

func (s StorageConfig) BusyTimeoutDuration() time.Duration {
	return durationOr(s.BusyTimeout, 5*time.Second)
}

func (g GiveawayConfig) SweepInterval() time.Duration {
	return durationOr(g.SweepEvery, time.Minute)
}

func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
