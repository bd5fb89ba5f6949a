package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/config"
	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/events"
	"github.com/alanadi/market/internal/service"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fake auction store
// ──────────────────────────────────────────────────────────────────────────────

// lifecycleStore holds one auction behind a mutex and mirrors the store's
// conditional writes: CancelIfUnbid re-checks the no-bid precondition inside
// the same guarded mutation that flips the status, exactly like the SQL
// update it stands in for.  afterSnapshot, when set, runs once after a
// GetByID returns, which lets a test land a bid between a caller's snapshot
// read and its follow-up write.
type lifecycleStore struct {
	mu            sync.Mutex
	auction       *domain.Auction
	afterSnapshot func()
	forcedCancels int
}

func (s *lifecycleStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	s.mu.Lock()
	if s.auction == nil || s.auction.ID != id {
		s.mu.Unlock()
		return nil, domain.ErrAuctionNotFound
	}
	snapshot := *s.auction
	s.mu.Unlock()

	if s.afterSnapshot != nil {
		hook := s.afterSnapshot
		s.afterSnapshot = nil
		hook()
	}
	return &snapshot, nil
}

func (s *lifecycleStore) CancelIfUnbid(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.auction
	if a == nil || a.ID != id {
		return domain.ErrAuctionNotFound
	}
	cancellable := a.Status == domain.AuctionScheduled || a.Status == domain.AuctionOpen
	if !cancellable || a.CurrentBidderID != nil {
		return domain.ErrAuctionHasBids
	}
	now := time.Now().UTC()
	a.Status = domain.AuctionCancelled
	a.SettledAt = &now
	return nil
}

func (s *lifecycleStore) CommitCancelled(_ context.Context, id uuid.UUID, _ *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.auction
	if a == nil || a.ID != id {
		return domain.ErrAuctionNotFound
	}
	if a.Status.IsTerminal() {
		return domain.ErrAlreadySettled
	}
	now := time.Now().UTC()
	a.Status = domain.AuctionCancelled
	a.SettledAt = &now
	s.forcedCancels++
	return nil
}

// commitBid installs a standing bid the way a winning conditional update
// would: amount, bidder and a version bump, all under the store's lock.
func (s *lifecycleStore) commitBid(bidderID uuid.UUID, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amt := decimal.NewFromInt(amount)
	s.auction.CurrentBid = &amt
	s.auction.CurrentBidderID = &bidderID
	s.auction.Version++
}

// Unused AuctionStore surface.
func (s *lifecycleStore) Create(context.Context, *domain.Auction) error { return nil }
func (s *lifecycleStore) GetActiveByDomain(context.Context, uuid.UUID) (*domain.Auction, error) {
	return nil, domain.ErrAuctionNotFound
}
func (s *lifecycleStore) ListByStatus(context.Context, domain.AuctionStatus, int, int) ([]*domain.Auction, error) {
	return nil, nil
}
func (s *lifecycleStore) ListBySeller(context.Context, uuid.UUID) ([]*domain.Auction, error) {
	return nil, nil
}
func (s *lifecycleStore) ListByBidder(context.Context, uuid.UUID) ([]*domain.Auction, error) {
	return nil, nil
}
func (s *lifecycleStore) ListWonBy(context.Context, uuid.UUID) ([]*domain.Auction, error) {
	return nil, nil
}
func (s *lifecycleStore) MarkClosing(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auction == nil || s.auction.ID != id || s.auction.Status != domain.AuctionOpen {
		return domain.ErrAlreadySettled
	}
	s.auction.Status = domain.AuctionClosing
	return nil
}

func newLifecycleService(s *lifecycleStore) *service.AuctionService {
	return service.NewAuctionService(s, nil, nil, s, &config.Config{}, events.NopSink{}, discardLogger())
}

// ──────────────────────────────────────────────────────────────────────────────
// Seller cancel
// ──────────────────────────────────────────────────────────────────────────────

func TestCancel_NoBids(t *testing.T) {
	store := &lifecycleStore{auction: openAuction(100)}
	svc := newLifecycleService(store)

	if err := svc.Cancel(context.Background(), store.auction.SellerID, store.auction.ID, false); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if store.auction.Status != domain.AuctionCancelled {
		t.Errorf("status = %s, want cancelled", store.auction.Status)
	}
}

func TestCancel_NotSellerForbidden(t *testing.T) {
	store := &lifecycleStore{auction: openAuction(100)}
	svc := newLifecycleService(store)

	err := svc.Cancel(context.Background(), uuid.New(), store.auction.ID, false)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("Cancel by stranger = %v, want ErrForbidden", err)
	}
	if store.auction.Status != domain.AuctionOpen {
		t.Errorf("status = %s, want open", store.auction.Status)
	}
}

func TestCancel_StandingBidRejected(t *testing.T) {
	store := &lifecycleStore{auction: openAuction(100)}
	store.commitBid(uuid.New(), 120)
	svc := newLifecycleService(store)

	err := svc.Cancel(context.Background(), store.auction.SellerID, store.auction.ID, false)
	if !errors.Is(err, domain.ErrAuctionHasBids) {
		t.Fatalf("Cancel with standing bid = %v, want ErrAuctionHasBids", err)
	}
	if store.auction.Status != domain.AuctionOpen {
		t.Errorf("status = %s, want open", store.auction.Status)
	}
}

// A bid that commits between the seller's snapshot read and the cancel write
// must win: the cancel sees zero rows from the guarded update and reports the
// conflict, leaving the auction open with the accepted bid intact.
func TestCancel_BidCommitsAfterSnapshot(t *testing.T) {
	store := &lifecycleStore{auction: openAuction(100)}
	bidder := uuid.New()
	store.afterSnapshot = func() { store.commitBid(bidder, 120) }
	svc := newLifecycleService(store)

	err := svc.Cancel(context.Background(), store.auction.SellerID, store.auction.ID, false)
	if !errors.Is(err, domain.ErrAuctionHasBids) {
		t.Fatalf("Cancel racing a bid = %v, want ErrAuctionHasBids", err)
	}

	if store.auction.Status != domain.AuctionOpen {
		t.Errorf("status = %s, want open", store.auction.Status)
	}
	if store.auction.CurrentBid == nil || !store.auction.CurrentBid.Equal(decimal.NewFromInt(120)) {
		t.Errorf("standing bid = %v, want 120 preserved", store.auction.CurrentBid)
	}
	if store.auction.CurrentBidderID == nil || *store.auction.CurrentBidderID != bidder {
		t.Error("standing bidder should be preserved")
	}
}

func TestCancel_ForcedOverridesBids(t *testing.T) {
	store := &lifecycleStore{auction: openAuction(100)}
	store.commitBid(uuid.New(), 120)
	svc := newLifecycleService(store)

	if err := svc.Cancel(context.Background(), uuid.New(), store.auction.ID, true); err != nil {
		t.Fatalf("forced Cancel: %v", err)
	}
	if store.auction.Status != domain.AuctionCancelled {
		t.Errorf("status = %s, want cancelled", store.auction.Status)
	}
	if store.forcedCancels != 1 {
		t.Errorf("forced cancels = %d, want 1", store.forcedCancels)
	}
}
