package giveaway

import (
	"testing"

	"rafflebot/internal/storage"
)

func participants(n int) []storage.Participant {
	ps := make([]storage.Participant, n)
	for i := range ps {
		ps[i] = storage.Participant{GiveawayID: 1, UserID: int64(i + 1)}
	}
	return ps
}

func TestDrawWinnersBounds(t *testing.T) {
	t.Parallel()
	if got := drawWinners(1, nil, 3); got != nil {
		t.Fatalf("winners from no participants: %v", got)
	}
	if got := drawWinners(1, participants(5), 0); got != nil {
		t.Fatalf("winners with zero slots: %v", got)
	}

	// More slots than participants: everyone wins.
	got := drawWinners(1, participants(2), 5)
	if len(got) != 2 {
		t.Fatalf("winners = %d, want 2", len(got))
	}
}

func TestDrawWinnersUniqueAndPositioned(t *testing.T) {
	t.Parallel()
	got := drawWinners(7, participants(20), 5)
	if len(got) != 5 {
		t.Fatalf("winners = %d, want 5", len(got))
	}
	seen := map[int64]bool{}
	for i, w := range got {
		if w.Position != i+1 {
			t.Fatalf("position[%d] = %d", i, w.Position)
		}
		if w.GiveawayID != 7 {
			t.Fatalf("giveaway id = %d", w.GiveawayID)
		}
		if seen[w.UserID] {
			t.Fatalf("duplicate winner %d", w.UserID)
		}
		seen[w.UserID] = true
	}
}

func TestDrawWinnersDoesNotMutateInput(t *testing.T) {
	t.Parallel()
	ps := participants(10)
	first := ps[0].UserID
	for i := 0; i < 50; i++ {
		drawWinners(1, ps, 3)
	}
	if ps[0].UserID != first {
		t.Fatal("input slice reordered")
	}
}

func TestFormatWinnerList(t *testing.T) {
	t.Parallel()
	if got := FormatWinnerList(nil); got != "—" {
		t.Fatalf("empty list = %q", got)
	}
	got := FormatWinnerList([]storage.Winner{
		{Position: 1, Username: "alice", UserID: 1},
		{Position: 2, UserID: 99},
	})
	want := "1. @alice\n2. ID: 99"
	if got != want {
		t.Fatalf("list = %q, want %q", got, want)
	}
}
