package giveaway

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rafflebot/internal/mailing"
	"rafflebot/internal/storage"
	"rafflebot/internal/texts"
	"rafflebot/internal/transport"
	"rafflebot/pkg/logx"
)

const testChannelID = int64(-100200300)

type fakeMembership struct {
	mu      sync.Mutex
	members map[int64]bool
	err     error
}

func (f *fakeMembership) IsChannelMember(_ context.Context, _ int64, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.members[userID], nil
}

func (f *fakeMembership) set(userID int64, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[userID] = ok
}

func (f *fakeMembership) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type recordingSender struct {
	mu    sync.Mutex
	sends map[int64][]string
}

func (r *recordingSender) Send(_ context.Context, chatID int64, p transport.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends[chatID] = append(r.sends[chatID], p.Text)
	return nil
}

func (r *recordingSender) sentTo(chatID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends[chatID])
}

func testSetup(t *testing.T) (*Service, *storage.Store, *fakeMembership, *recordingSender) {
	t.Helper()
	store, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cat, err := texts.Load()
	if err != nil {
		t.Fatalf("load texts: %v", err)
	}

	sender := &recordingSender{sends: map[int64][]string{}}
	membership := &fakeMembership{members: map[int64]bool{}}
	mailer := mailing.NewService(sender, logx.Nop())

	svc := New(Config{
		ChannelID:  testChannelID,
		JoinURL:    "https://t.me/testchannel",
		SweepEvery: time.Minute,
		WinnerRate: mailing.RateConfig{PerSecond: 500, Burst: 4, MaxRetries: 0},
	}, store, mailer, sender, membership, cat, logx.Nop())
	return svc, store, membership, sender
}

func createActive(t *testing.T, svc *Service, winners int, endAt time.Time) storage.Giveaway {
	t.Helper()
	g, err := svc.Create(context.Background(), storage.Giveaway{
		Description: "test prize",
		EndAt:       endAt,
		NumWinners:  winners,
		CreatedByID: 1,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return g
}

func TestJoinGate(t *testing.T) {
	t.Parallel()
	svc, _, membership, sender := testSetup(t)
	ctx := context.Background()

	if _, _, err := svc.Join(ctx, 10, "alice"); !errors.Is(err, ErrNoneActive) {
		t.Fatalf("join without active giveaway: %v, want ErrNoneActive", err)
	}

	created := createActive(t, svc, 1, time.Now().Add(time.Hour).UTC())
	if sender.sentTo(testChannelID) != 1 {
		t.Fatal("create must announce to the channel")
	}

	status, _, err := svc.Join(ctx, 10, "alice")
	if err != nil {
		t.Fatalf("join unsubscribed: %v", err)
	}
	if status != NotSubscribed {
		t.Fatalf("status = %v, want NotSubscribed", status)
	}

	membership.set(10, true)
	status, g, err := svc.Join(ctx, 10, "alice")
	if err != nil {
		t.Fatalf("join subscribed: %v", err)
	}
	if status != Joined || g.ID != created.ID {
		t.Fatalf("status = %v, giveaway = %d, want Joined in %d", status, g.ID, created.ID)
	}

	status, _, err = svc.Join(ctx, 10, "alice")
	if err != nil {
		t.Fatalf("second join: %v", err)
	}
	if status != AlreadyJoined {
		t.Fatalf("status = %v, want AlreadyJoined", status)
	}

	membership.fail(errors.New("api down"))
	if _, _, err := svc.Join(ctx, 11, "bob"); err == nil {
		t.Fatal("membership failure must propagate")
	}
}

func TestFinishDrawsWinnersAndNotifies(t *testing.T) {
	t.Parallel()
	svc, store, membership, sender := testSetup(t)
	ctx := context.Background()
	g := createActive(t, svc, 2, time.Now().Add(time.Hour).UTC())

	users := []int64{21, 22, 23}
	for _, u := range users {
		membership.set(u, true)
		status, _, err := svc.Join(ctx, u, fmt.Sprintf("user%d", u))
		if err != nil || status != Joined {
			t.Fatalf("join %d: status=%v err=%v", u, status, err)
		}
	}

	out, err := svc.Finish(ctx, g.ID)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if out.Participants != 3 || len(out.Winners) != 2 {
		t.Fatalf("participants=%d winners=%d, want 3 and 2", out.Participants, len(out.Winners))
	}
	drawn := map[int64]bool{}
	for i, w := range out.Winners {
		if w.Position != i+1 {
			t.Fatalf("winner %d position = %d", i, w.Position)
		}
		if drawn[w.UserID] {
			t.Fatalf("user %d drawn twice", w.UserID)
		}
		drawn[w.UserID] = true
	}

	if _, err := store.ActiveGiveaway(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("giveaway still active after finish: %v", err)
	}
	if _, _, err := svc.Join(ctx, 24, "late"); !errors.Is(err, ErrNoneActive) {
		t.Fatalf("join after finish: %v, want ErrNoneActive", err)
	}

	stored, err := store.Winners(ctx, g.ID)
	if err != nil || len(stored) != 2 {
		t.Fatalf("stored winners: %v (n=%d)", err, len(stored))
	}

	// Announcement at create plus the winner list at finish.
	if n := sender.sentTo(testChannelID); n != 2 {
		t.Fatalf("channel sends = %d, want 2", n)
	}

	// Congratulations go out through the dispatcher; the notified flags
	// follow once the run completes.
	deadline := time.Now().Add(10 * time.Second)
	for {
		stored, err = store.Winners(ctx, g.ID)
		if err != nil {
			t.Fatalf("Winners: %v", err)
		}
		notified := 0
		for _, w := range stored {
			if w.Notified {
				notified++
			}
		}
		if notified == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("winners never marked notified: %+v", stored)
		}
		time.Sleep(5 * time.Millisecond)
	}
	for id := range drawn {
		if n := sender.sentTo(id); n != 1 {
			t.Fatalf("winner %d congrats sends = %d, want 1", id, n)
		}
	}
}

func TestFinishWithoutParticipants(t *testing.T) {
	t.Parallel()
	svc, store, _, sender := testSetup(t)
	ctx := context.Background()
	g := createActive(t, svc, 1, time.Now().Add(time.Hour).UTC())

	out, err := svc.Finish(ctx, g.ID)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(out.Winners) != 0 || out.Participants != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if ws, err := store.Winners(ctx, g.ID); err != nil || len(ws) != 0 {
		t.Fatalf("winners recorded for empty giveaway: %v (n=%d)", err, len(ws))
	}
	// Only the create announcement; no winner post for an empty draw.
	if n := sender.sentTo(testChannelID); n != 1 {
		t.Fatalf("channel sends = %d, want 1", n)
	}
}

func TestSweepClosesDueGiveaways(t *testing.T) {
	t.Parallel()
	svc, store, membership, _ := testSetup(t)
	ctx := context.Background()
	g := createActive(t, svc, 1, time.Now().Add(-time.Minute).UTC())

	membership.set(31, true)
	if status, _, err := svc.Join(ctx, 31, "early"); err != nil || status != Joined {
		t.Fatalf("join: status=%v err=%v", status, err)
	}

	svc.sweep(ctx)

	got, err := store.GiveawayByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("GiveawayByID: %v", err)
	}
	if got.Active || got.EndedAt.IsZero() {
		t.Fatalf("giveaway not closed by sweep: %+v", got)
	}
	ws, err := store.Winners(ctx, g.ID)
	if err != nil || len(ws) != 1 {
		t.Fatalf("sweep winners: %v (n=%d)", err, len(ws))
	}
}
