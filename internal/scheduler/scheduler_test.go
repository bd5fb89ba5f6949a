package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/events"
	"github.com/alanadi/market/internal/scheduler"
)

// ── Test doubles ──────────────────────────────────────────────────────────────

// fakeStore holds auctions in memory and mirrors the conditional transition
// contract: MarkOpen and MarkClosing succeed only from the expected status.
type fakeStore struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*domain.Auction
	stuck    []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{auctions: make(map[uuid.UUID]*domain.Auction)}
}

func (s *fakeStore) add(a *domain.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.ID] = a
}

func (s *fakeStore) ListScheduledDue(_ context.Context, now time.Time) ([]*domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Auction
	for _, a := range s.auctions {
		if a.Status == domain.AuctionScheduled && !a.StartsAt.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) ListExpiredOpen(_ context.Context, now time.Time) ([]*domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Auction
	for _, a := range s.auctions {
		if a.Status == domain.AuctionOpen && !a.EndsAt.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) ListStuckClosing(_ context.Context, _ int) ([]*domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Auction
	for _, id := range s.stuck {
		if a, ok := s.auctions[id]; ok && a.Status == domain.AuctionClosing {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkOpen(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	if !ok || a.Status != domain.AuctionScheduled {
		return domain.ErrAuctionNotOpen
	}
	a.Status = domain.AuctionOpen
	return nil
}

func (s *fakeStore) MarkClosing(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	if !ok || a.Status != domain.AuctionOpen {
		return domain.ErrAlreadySettled
	}
	a.Status = domain.AuctionClosing
	return nil
}

// fakeSettler records Settle calls and flips the auction to settled unless
// told to fail.
type fakeSettler struct {
	mu      sync.Mutex
	store   *fakeStore
	calls   map[uuid.UUID]int
	failing bool
}

func (f *fakeSettler) Settle(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[uuid.UUID]int)
	}
	f.calls[id]++
	if f.failing {
		return domain.ErrPaymentFailed
	}
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	if a, ok := f.store.auctions[id]; ok {
		a.Status = domain.AuctionSettled
	}
	return nil
}

func newClock(store *fakeStore, settler scheduler.Settler) *scheduler.Scheduler {
	cfg := config.SchedulerConfig{
		OpenInterval:      time.Second,
		CloseInterval:     time.Second,
		RetryInterval:     time.Second,
		MaxSettleAttempts: 5,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return scheduler.NewScheduler(store, settler, cfg, events.NopSink{}, logger)
}

func auctionWith(status domain.AuctionStatus, startsAt, endsAt time.Time) *domain.Auction {
	return &domain.Auction{
		ID:       uuid.New(),
		DomainID: uuid.New(),
		SellerID: uuid.New(),
		Status:   status,
		StartsAt: startsAt,
		EndsAt:   endsAt,
	}
}

// ── Scans ─────────────────────────────────────────────────────────────────────

func TestOpenDueAuctions(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	due := auctionWith(domain.AuctionScheduled, now.Add(-time.Minute), now.Add(time.Hour))
	future := auctionWith(domain.AuctionScheduled, now.Add(time.Hour), now.Add(2*time.Hour))
	store.add(due)
	store.add(future)

	clock := newClock(store, &fakeSettler{store: store})
	clock.OpenDueAuctions(context.Background())

	if due.Status != domain.AuctionOpen {
		t.Errorf("due auction status = %s, want open", due.Status)
	}
	if future.Status != domain.AuctionScheduled {
		t.Errorf("future auction status = %s, want still scheduled", future.Status)
	}
}

func TestCloseExpiredAuctions(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	expired := auctionWith(domain.AuctionOpen, now.Add(-2*time.Hour), now.Add(-time.Minute))
	live := auctionWith(domain.AuctionOpen, now.Add(-time.Hour), now.Add(time.Hour))
	store.add(expired)
	store.add(live)

	settler := &fakeSettler{store: store}
	clock := newClock(store, settler)
	clock.CloseExpiredAuctions(context.Background())

	if expired.Status != domain.AuctionSettled {
		t.Errorf("expired auction status = %s, want settled", expired.Status)
	}
	if settler.calls[expired.ID] != 1 {
		t.Errorf("settle calls = %d, want 1", settler.calls[expired.ID])
	}
	if live.Status != domain.AuctionOpen {
		t.Errorf("live auction status = %s, want still open", live.Status)
	}
	if settler.calls[live.ID] != 0 {
		t.Error("live auction should not be settled")
	}
}

// A failing settlement leaves the auction in closing; the scan itself keeps
// going and later scans retry it.
func TestCloseExpiredAuctions_SettleFailureLeavesClosing(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	expired := auctionWith(domain.AuctionOpen, now.Add(-2*time.Hour), now.Add(-time.Minute))
	store.add(expired)

	settler := &fakeSettler{store: store, failing: true}
	clock := newClock(store, settler)
	clock.CloseExpiredAuctions(context.Background())

	if expired.Status != domain.AuctionClosing {
		t.Errorf("auction status = %s, want closing", expired.Status)
	}

	// The retry scan picks it up once it appears in the stuck list.
	store.mu.Lock()
	store.stuck = append(store.stuck, expired.ID)
	store.mu.Unlock()
	settler.failing = false

	clock.RetryStuckSettlements(context.Background())
	if expired.Status != domain.AuctionSettled {
		t.Errorf("auction status after retry = %s, want settled", expired.Status)
	}
	if settler.calls[expired.ID] != 2 {
		t.Errorf("settle calls = %d, want 2", settler.calls[expired.ID])
	}
}

// Two clocks scanning the same expired auction: the closing transition is
// conditional, so exactly one of them runs settlement.
func TestCloseExpiredAuctions_ConcurrentScansSettleOnce(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	expired := auctionWith(domain.AuctionOpen, now.Add(-2*time.Hour), now.Add(-time.Minute))
	store.add(expired)

	settler := &fakeSettler{store: store}
	clockA := newClock(store, settler)
	clockB := newClock(store, settler)

	var wg sync.WaitGroup
	for _, c := range []*scheduler.Scheduler{clockA, clockB} {
		wg.Add(1)
		go func(c *scheduler.Scheduler) {
			defer wg.Done()
			c.CloseExpiredAuctions(context.Background())
		}(c)
	}
	wg.Wait()

	if settler.calls[expired.ID] != 1 {
		t.Errorf("settle calls = %d, want exactly 1 across both clocks", settler.calls[expired.ID])
	}
	if expired.Status != domain.AuctionSettled {
		t.Errorf("auction status = %s, want settled", expired.Status)
	}
}

// ── Loop lifecycle ────────────────────────────────────────────────────────────

func TestScheduler_StartAndShutdown(t *testing.T) {
	store := newFakeStore()
	clock := newClock(store, &fakeSettler{store: store})

	ctx, cancel := context.WithCancel(context.Background())
	clock.Start(ctx)
	cancel()
	// Loops exit on context cancellation; give them a beat and make sure
	// nothing panics or deadlocks.
	time.Sleep(50 * time.Millisecond)
}

// Settle errors surfaced by the store must not abort the scan for the
// remaining auctions.
func TestCloseExpiredAuctions_IsolatesFailures(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore()
	first := auctionWith(domain.AuctionOpen, now.Add(-2*time.Hour), now.Add(-2*time.Minute))
	second := auctionWith(domain.AuctionOpen, now.Add(-2*time.Hour), now.Add(-time.Minute))
	store.add(first)
	store.add(second)

	// Flip the first to closing behind the scan's back so its MarkClosing
	// fails, simulating a racing seller close.
	if err := store.MarkClosing(context.Background(), first.ID); err != nil {
		t.Fatal(err)
	}

	settler := &fakeSettler{store: store}
	clock := newClock(store, settler)
	clock.CloseExpiredAuctions(context.Background())

	if settler.calls[first.ID] != 0 {
		t.Error("auction that lost the closing transition must not be settled by this scan")
	}
	if second.Status != domain.AuctionSettled {
		t.Errorf("second auction status = %s, want settled", second.Status)
	}
}
