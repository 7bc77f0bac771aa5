package botui

import (
	"testing"
	"time"
)

func TestParseEndTime(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{name: "date and time", raw: "2026-12-31 18:00", want: time.Date(2026, 12, 31, 18, 0, 0, 0, time.UTC)},
		{name: "bare date", raw: "2026-12-31", want: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)},
		{name: "padded", raw: "  2026-01-02 03:04  ", want: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)},
		{name: "garbage", raw: "tomorrow", wantErr: true},
		{name: "wrong order", raw: "31-12-2026", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseEndTime(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseEndTime(%q) succeeded: %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEndTime(%q): %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("parseEndTime(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatErrorSummary(t *testing.T) {
	t.Parallel()
	got := formatErrorSummary(map[string]int{"network": 8, "blocked": 12, "timeout": 8})
	want := "blocked: 12\nnetwork: 8\ntimeout: 8"
	if got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
	if formatErrorSummary(nil) != "" {
		t.Fatal("empty summary should render empty")
	}
}
