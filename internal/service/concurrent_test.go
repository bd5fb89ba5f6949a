package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/domain"
)

// TestConcurrentBids_OneWinnerPerVersion fires many goroutines at the same
// auction snapshot level and verifies the version guard admits exactly one of
// each burst: every accepted bid strictly raises the standing amount, and the
// final standing bid equals the largest accepted one.  Run with -race.
func TestConcurrentBids_OneWinnerPerVersion(t *testing.T) {
	const workers = 40

	f := &fakeLedger{auction: openAuction(100)}
	svc := newBidService(f)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		acceptedAmts []decimal.Decimal
		lostRace     int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			// Every worker offers a distinct valid amount well above the
			// ladder so only the version guard decides the outcome.
			amount := decimal.NewFromInt(int64(1000 + n*10))
			res, err := svc.PlaceBid(context.Background(), domain.PlaceBidRequest{
				AuctionID: f.auction.ID,
				BidderID:  uuid.New(),
				Amount:    amount,
			})
			if err != nil {
				t.Errorf("PlaceBid: %v", err)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			if res.Accepted {
				acceptedAmts = append(acceptedAmts, amount)
			} else if res.Reason == domain.RejectLostRace || res.Reason == domain.RejectTooLow {
				lostRace++
			} else {
				t.Errorf("unexpected rejection reason %q", res.Reason)
			}
		}(i)
	}
	wg.Wait()

	if len(acceptedAmts) == 0 {
		t.Fatal("at least one bid must be accepted")
	}
	if len(acceptedAmts)+lostRace != workers {
		t.Errorf("accepted %d + rejected %d != %d workers", len(acceptedAmts), lostRace, workers)
	}

	// The ledger admitted one bid per version step.
	if int64(len(f.accepted)) != f.auction.Version {
		t.Errorf("accepted bids = %d, version = %d; must match one-to-one",
			len(f.accepted), f.auction.Version)
	}

	// Accepted bids raise the standing amount monotonically, so the final
	// standing bid is the maximum accepted amount.
	max := decimal.Zero
	for _, a := range f.accepted {
		if a.Amount.LessThanOrEqual(max) {
			t.Errorf("accepted amount %s did not raise the standing bid %s", a.Amount, max)
		}
		max = a.Amount
	}
	if !f.auction.CurrentBid.Equal(max) {
		t.Errorf("standing bid %s != max accepted %s", f.auction.CurrentBid, max)
	}
}

// TestConcurrentBids_SameAmount verifies that when several bidders race with
// the same amount, exactly one wins and the rest lose the race or fall below
// the new minimum.
func TestConcurrentBids_SameAmount(t *testing.T) {
	const workers = 25

	f := &fakeLedger{auction: openAuction(100)}
	svc := newBidService(f)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.PlaceBid(context.Background(), domain.PlaceBidRequest{
				AuctionID: f.auction.ID,
				BidderID:  uuid.New(),
				Amount:    decimal.NewFromInt(100),
			})
			if err != nil {
				t.Errorf("PlaceBid: %v", err)
				return
			}
			if res.Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("exactly 1 bid of 100 should be accepted, got %d", accepted)
	}
	if f.auction.Version != 1 {
		t.Errorf("version = %d, want 1", f.auction.Version)
	}
}
