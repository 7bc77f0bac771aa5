package texts

import (
	"strings"
	"testing"
)

func TestCatalogLookup(t *testing.T) {
	t.Parallel()
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := c.Get("admin.menu"); !strings.Contains(got, "Admin panel") {
		t.Fatalf("admin.menu = %q", got)
	}
	if got := c.Get("nope.missing"); got != "nope.missing" {
		t.Fatalf("missing key = %q, want the key itself", got)
	}
	// A non-leaf path is not a message.
	if got := c.Get("admin"); got != "admin" {
		t.Fatalf("non-leaf lookup = %q", got)
	}
}

func TestCatalogFormat(t *testing.T) {
	t.Parallel()
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := c.Format("broadcast.progress", map[string]any{"sent": 3, "total": 10})
	if got != "Sending… 3/10" {
		t.Fatalf("progress = %q", got)
	}

	// Unmatched placeholders stay visible rather than vanishing.
	got = c.Format("broadcast.progress", map[string]any{"sent": 3})
	if !strings.Contains(got, "{total}") {
		t.Fatalf("unmatched placeholder dropped: %q", got)
	}
}
