package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/events"
	"github.com/alanadi/market/internal/service"
)

// ── Test doubles ──────────────────────────────────────────────────────────────

// fakeLedger is an in-memory stand-in for the repository ledger.  It mirrors
// the conditional-update contract: CommitBid applies only when the caller's
// snapshot version still matches the authoritative row, otherwise it returns
// ErrBidConflict and changes nothing.
type fakeLedger struct {
	mu       sync.Mutex
	auction  *domain.Auction
	accepted []*domain.Bid
	rejected []*domain.Bid
}

func (f *fakeLedger) GetByID(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.auction.ID {
		return nil, domain.ErrAuctionNotFound
	}
	cp := *f.auction
	return &cp, nil
}

func (f *fakeLedger) CommitBid(_ context.Context, a *domain.Auction, bid *domain.Bid) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auction.Status != domain.AuctionOpen ||
		f.auction.Version != a.Version ||
		!bid.SubmittedAt.Before(f.auction.EndsAt) {
		return domain.ErrBidConflict
	}
	amount := bid.Amount
	bidder := bid.BidderID
	f.auction.CurrentBid = &amount
	f.auction.CurrentBidderID = &bidder
	f.auction.Version++
	f.accepted = append(f.accepted, bid)
	return nil
}

func (f *fakeLedger) RecordRejectedBid(_ context.Context, bid *domain.Bid) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, bid)
	return nil
}

func (f *fakeLedger) ListByBidder(_ context.Context, bidderID uuid.UUID, _, _ int) ([]*domain.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Bid
	for _, b := range append(append([]*domain.Bid{}, f.accepted...), f.rejected...) {
		if b.BidderID == bidderID {
			out = append(out, b)
		}
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openAuction(startPrice int64) *domain.Auction {
	now := time.Now().UTC()
	return &domain.Auction{
		ID:         uuid.New(),
		DomainID:   uuid.New(),
		SellerID:   uuid.New(),
		Status:     domain.AuctionOpen,
		StartPrice: decimal.NewFromInt(startPrice),
		StartsAt:   now.Add(-time.Hour),
		EndsAt:     now.Add(time.Hour),
	}
}

func newBidService(f *fakeLedger) *service.BidService {
	return service.NewBidService(f, f, f, decimal.NewFromInt(5), events.NopSink{}, discardLogger())
}

func place(t *testing.T, svc *service.BidService, auctionID, bidderID uuid.UUID, amount int64) *domain.BidResult {
	t.Helper()
	res, err := svc.PlaceBid(context.Background(), domain.PlaceBidRequest{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("PlaceBid(%d): %v", amount, err)
	}
	return res
}

// ── Acceptance ladder ─────────────────────────────────────────────────────────

// Start price 100, increment 5: the first bid must reach 100, every later bid
// must reach standing + 5.
func TestPlaceBid_Ladder(t *testing.T) {
	f := &fakeLedger{auction: openAuction(100)}
	svc := newBidService(f)
	alice, bob := uuid.New(), uuid.New()

	if res := place(t, svc, f.auction.ID, alice, 90); res.Accepted || res.Reason != domain.RejectTooLow {
		t.Fatalf("bid(90) = %+v, want rejected below_minimum", res)
	}
	if res := place(t, svc, f.auction.ID, alice, 100); !res.Accepted {
		t.Fatalf("bid(100) = %+v, want accepted", res)
	}
	if res := place(t, svc, f.auction.ID, bob, 103); res.Accepted || res.Reason != domain.RejectTooLow {
		t.Fatalf("bid(103) = %+v, want rejected below_minimum", res)
	}
	if res := place(t, svc, f.auction.ID, bob, 105); !res.Accepted {
		t.Fatalf("bid(105) = %+v, want accepted", res)
	}

	if f.auction.CurrentBid == nil || !f.auction.CurrentBid.Equal(decimal.NewFromInt(105)) {
		t.Errorf("standing bid = %v, want 105", f.auction.CurrentBid)
	}
	if *f.auction.CurrentBidderID != bob {
		t.Error("standing bidder should be the 105 bidder")
	}
	if len(f.accepted) != 2 || len(f.rejected) != 2 {
		t.Errorf("accepted=%d rejected=%d, want 2/2", len(f.accepted), len(f.rejected))
	}
}

func TestPlaceBid_EqualToStandingRejected(t *testing.T) {
	f := &fakeLedger{auction: openAuction(100)}
	svc := newBidService(f)
	alice, bob := uuid.New(), uuid.New()

	place(t, svc, f.auction.ID, alice, 100)
	if res := place(t, svc, f.auction.ID, bob, 100); res.Accepted {
		t.Error("matching the standing bid should be rejected")
	}
	// Exactly standing + increment is the minimum and must pass.
	if res := place(t, svc, f.auction.ID, bob, 105); !res.Accepted {
		t.Error("standing + increment should be accepted")
	}
}

func TestPlaceBid_SelfBidRejected(t *testing.T) {
	f := &fakeLedger{auction: openAuction(100)}
	svc := newBidService(f)

	res := place(t, svc, f.auction.ID, f.auction.SellerID, 150)
	if res.Accepted || res.Reason != domain.RejectSelfBid {
		t.Errorf("seller bid = %+v, want rejected self_bid", res)
	}
}

func TestPlaceBid_NotOpenRejected(t *testing.T) {
	for _, status := range []domain.AuctionStatus{
		domain.AuctionScheduled, domain.AuctionClosing, domain.AuctionSettled, domain.AuctionCancelled,
	} {
		f := &fakeLedger{auction: openAuction(100)}
		f.auction.Status = status
		svc := newBidService(f)

		res := place(t, svc, f.auction.ID, uuid.New(), 150)
		if res.Accepted || res.Reason != domain.RejectNotOpen {
			t.Errorf("bid on %s auction = %+v, want rejected auction_not_open", status, res)
		}
	}
}

func TestPlaceBid_AfterEndRejected(t *testing.T) {
	f := &fakeLedger{auction: openAuction(100)}
	f.auction.EndsAt = time.Now().UTC().Add(-time.Second)
	svc := newBidService(f)

	res := place(t, svc, f.auction.ID, uuid.New(), 150)
	if res.Accepted || res.Reason != domain.RejectEnded {
		t.Errorf("late bid = %+v, want rejected auction_ended", res)
	}
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	f := &fakeLedger{auction: openAuction(100)}
	svc := newBidService(f)

	_, err := svc.PlaceBid(context.Background(), domain.PlaceBidRequest{
		AuctionID: uuid.New(),
		BidderID:  uuid.New(),
		Amount:    decimal.NewFromInt(150),
	})
	if err == nil {
		t.Fatal("expected error for unknown auction")
	}
}

// Rejections are recorded for audit with the original amount and reason.
func TestPlaceBid_RejectionAudited(t *testing.T) {
	f := &fakeLedger{auction: openAuction(100)}
	svc := newBidService(f)

	place(t, svc, f.auction.ID, uuid.New(), 50)
	if len(f.rejected) != 1 {
		t.Fatalf("rejected audit rows = %d, want 1", len(f.rejected))
	}
	r := f.rejected[0]
	if r.Accepted || r.Reason != domain.RejectTooLow || !r.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("audit row = %+v", r)
	}
	// A rejection must never touch auction state.
	if f.auction.CurrentBid != nil || f.auction.Version != 0 {
		t.Error("rejected bid mutated the auction")
	}
}
