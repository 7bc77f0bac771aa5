package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  admin_ids: [42]
  channel_id: -1001234567890
  join_url: "https://t.me/somechannel"
logging:
  level: debug
  console: true
storage:
  path: ./test.db
mailing:
  broadcast_rps: 25
  burst: 5
  max_retries: 3
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChannelID != -1001234567890 {
		t.Fatalf("channel_id = %d", cfg.Telegram.ChannelID)
	}
	if !cfg.IsAdmin(42) || cfg.IsAdmin(7) {
		t.Fatal("admin check wrong")
	}
	if cfg.Mailing.BroadcastRPS != 25 {
		t.Fatalf("broadcast_rps = %v", cfg.Mailing.BroadcastRPS)
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	body := `{"telegram":{"token":"123:abc","admin_ids":[1],"channel_id":-5,"join_url":"https://t.me/x"},"logging":{"level":"info","console":true},"storage":{"path":"./x.db"},"mailing":{},"giveaway":{}}`
	cfg, err := Load(writeConfig(t, "config.json", body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.ChannelID != -5 {
		t.Fatalf("channel_id = %d", cfg.Telegram.ChannelID)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	body := validYAML + "\nmystery:\n  key: 1\n"
	if _, err := Load(writeConfig(t, "config.yaml", body)); err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "missing token",
			mutate:  func(s string) string { return strings.Replace(s, `token: "123:abc"`, `token: ""`, 1) },
			wantErr: "token",
		},
		{
			name:    "missing admins",
			mutate:  func(s string) string { return strings.Replace(s, "admin_ids: [42]", "admin_ids: []", 1) },
			wantErr: "admin_ids",
		},
		{
			name:    "bad duration",
			mutate:  func(s string) string { return s + "giveaway:\n  sweep_every: nonsense\n" },
			wantErr: "sweep_every",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, "config.yaml", tt.mutate(validYAML)))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestMailingRatesDefaults(t *testing.T) {
	t.Parallel()
	r := MailingConfig{}.Rates()
	if r.BroadcastRPS != 20 || r.AnnounceRPS != 20 || r.Burst != 5 || r.MaxRetries != 5 {
		t.Fatalf("unexpected defaults: %+v", r)
	}
	r = MailingConfig{BroadcastRPS: 3, Burst: 1}.Rates()
	if r.BroadcastRPS != 3 || r.Burst != 1 {
		t.Fatalf("explicit values overridden: %+v", r)
	}
}

func TestMailingExplicitZeroRetries(t *testing.T) {
	t.Parallel()
	zero := 0
	if r := (MailingConfig{MaxRetries: &zero}).Rates(); r.MaxRetries != 0 {
		t.Fatalf("explicit max_retries 0 coerced to %d", r.MaxRetries)
	}

	body := strings.Replace(validYAML, "max_retries: 3", "max_retries: 0", 1)
	cfg, err := Load(writeConfig(t, "config.yaml", body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r := cfg.Mailing.Rates(); r.MaxRetries != 0 {
		t.Fatalf("max_retries from file = %d, want 0", r.MaxRetries)
	}

	body = strings.Replace(validYAML, "max_retries: 3", "max_retries: -1", 1)
	if _, err := Load(writeConfig(t, "neg.yaml", body)); err == nil || !strings.Contains(err.Error(), "max_retries") {
		t.Fatalf("negative max_retries accepted: %v", err)
	}
}

func TestDurationAccessors(t *testing.T) {
	t.Parallel()
	if d := (TelegramConfig{}).PollTimeoutDuration(); d != 10*time.Second {
		t.Fatalf("poll timeout default = %v", d)
	}
	if d := (TelegramConfig{PollTimeout: "30s"}).PollTimeoutDuration(); d != 30*time.Second {
		t.Fatalf("poll timeout = %v", d)
	}
	if d := (StorageConfig{BusyTimeout: " 2s "}).BusyTimeoutDuration(); d != 2*time.Second {
		t.Fatalf("busy timeout = %v", d)
	}
	if d := (GiveawayConfig{}).SweepInterval(); d != time.Minute {
		t.Fatalf("sweep default = %v", d)
	}
	if _, err := parseDuration("x", "-5s"); err == nil {
		t.Fatal("negative duration accepted")
	}
}
