package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/domain"
)

// ── Status machine ────────────────────────────────────────────────────────────

func TestAuctionStatus_CanTransition(t *testing.T) {
	allowed := []struct {
		from, to domain.AuctionStatus
	}{
		{domain.AuctionScheduled, domain.AuctionOpen},
		{domain.AuctionScheduled, domain.AuctionCancelled},
		{domain.AuctionOpen, domain.AuctionClosing},
		{domain.AuctionOpen, domain.AuctionCancelled},
		{domain.AuctionClosing, domain.AuctionSettled},
		{domain.AuctionClosing, domain.AuctionCancelled},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct {
		from, to domain.AuctionStatus
	}{
		{domain.AuctionScheduled, domain.AuctionClosing},
		{domain.AuctionScheduled, domain.AuctionSettled},
		{domain.AuctionOpen, domain.AuctionSettled},
		{domain.AuctionClosing, domain.AuctionOpen},
		{domain.AuctionSettled, domain.AuctionOpen},
		{domain.AuctionCancelled, domain.AuctionOpen},
		{domain.AuctionSettled, domain.AuctionCancelled},
	}
	for _, tc := range forbidden {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("%s -> %s should not be allowed", tc.from, tc.to)
		}
	}
}

func TestAuctionStatus_IsTerminal(t *testing.T) {
	if !domain.AuctionSettled.IsTerminal() {
		t.Error("settled should be terminal")
	}
	if !domain.AuctionCancelled.IsTerminal() {
		t.Error("cancelled should be terminal")
	}
	for _, s := range []domain.AuctionStatus{domain.AuctionScheduled, domain.AuctionOpen, domain.AuctionClosing} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

// ── Bid ladder ────────────────────────────────────────────────────────────────

func TestAuction_MinNextBid_NoBid(t *testing.T) {
	a := &domain.Auction{StartPrice: decimal.NewFromInt(100)}
	inc := decimal.NewFromInt(5)
	// First bid only has to match the start price, not start + increment.
	if got := a.MinNextBid(inc); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("MinNextBid() = %s, want 100", got)
	}
}

func TestAuction_MinNextBid_WithStandingBid(t *testing.T) {
	current := decimal.NewFromInt(100)
	bidder := uuid.New()
	a := &domain.Auction{
		StartPrice:      decimal.NewFromInt(100),
		CurrentBid:      &current,
		CurrentBidderID: &bidder,
	}
	inc := decimal.NewFromInt(5)
	if got := a.MinNextBid(inc); !got.Equal(decimal.NewFromInt(105)) {
		t.Errorf("MinNextBid() = %s, want 105", got)
	}
	// 103 sits between the standing bid and the minimum — too low.
	if decimal.NewFromInt(103).GreaterThanOrEqual(a.MinNextBid(inc)) {
		t.Error("103 should be below the minimum next bid of 105")
	}
}

func TestAuction_ReserveMet(t *testing.T) {
	reserve := decimal.NewFromInt(500)
	a := &domain.Auction{
		StartPrice:   decimal.NewFromInt(100),
		ReservePrice: &reserve,
	}
	// No bid yet: reserve can never be met.
	if a.ReserveMet() {
		t.Error("auction without a bid should not meet its reserve")
	}

	low := decimal.NewFromInt(400)
	bidder := uuid.New()
	a.CurrentBid = &low
	a.CurrentBidderID = &bidder
	if a.ReserveMet() {
		t.Error("bid below reserve should not meet it")
	}

	exact := decimal.NewFromInt(500)
	a.CurrentBid = &exact
	if !a.ReserveMet() {
		t.Error("bid equal to reserve should meet it")
	}
}

func TestAuction_ReserveMet_NoReserve(t *testing.T) {
	bid := decimal.NewFromInt(1)
	bidder := uuid.New()
	a := &domain.Auction{
		StartPrice:      decimal.NewFromInt(1),
		CurrentBid:      &bid,
		CurrentBidderID: &bidder,
	}
	if !a.ReserveMet() {
		t.Error("any accepted bid meets an absent reserve")
	}
}

func TestAuction_TimeLeft(t *testing.T) {
	a := &domain.Auction{EndsAt: time.Now().UTC().Add(2 * time.Minute)}
	tl := a.TimeLeft()
	if tl <= 0 || tl > 2*time.Minute+time.Second {
		t.Errorf("TimeLeft() = %v, expected ~2m0s", tl)
	}
	a.EndsAt = time.Now().UTC().Add(-time.Minute)
	if a.TimeLeft() != 0 {
		t.Errorf("TimeLeft() past end = %v, want 0", a.TimeLeft())
	}
}

func TestAuction_ToSummary(t *testing.T) {
	bid := decimal.NewFromInt(250)
	bidder := uuid.New()
	a := &domain.Auction{
		ID:              uuid.New(),
		SellerID:        uuid.New(),
		Status:          domain.AuctionOpen,
		StartPrice:      decimal.NewFromInt(100),
		CurrentBid:      &bid,
		CurrentBidderID: &bidder,
		EndsAt:          time.Now().UTC().Add(time.Hour),
	}
	s := a.ToSummary("example.com", 7)
	if s.DomainName != "example.com" || s.BidCount != 7 {
		t.Errorf("summary = %+v", s)
	}
	if s.TimeLeftSec <= 0 {
		t.Errorf("TimeLeftSec = %d, want > 0", s.TimeLeftSec)
	}
}

// ── Settlement math ───────────────────────────────────────────────────────────

func TestSplitProceeds(t *testing.T) {
	amount := decimal.NewFromInt(1000)
	rate := decimal.NewFromFloat(0.05)

	proceeds, commission := domain.SplitProceeds(amount, rate)
	if !proceeds.Equal(decimal.NewFromInt(950)) {
		t.Errorf("proceeds = %s, want 950", proceeds)
	}
	if !commission.Equal(decimal.NewFromInt(50)) {
		t.Errorf("commission = %s, want 50", commission)
	}
}

func TestSplitProceeds_SumsToAmount(t *testing.T) {
	// Awkward amounts must still split without losing a cent.
	amounts := []string{"33.33", "0.0001", "999999.9999", "107.77"}
	rate := decimal.NewFromFloat(0.05)
	for _, s := range amounts {
		amount := decimal.RequireFromString(s)
		proceeds, commission := domain.SplitProceeds(amount, rate)
		if !proceeds.Add(commission).Equal(amount) {
			t.Errorf("split of %s does not sum back: %s + %s", amount, proceeds, commission)
		}
		if proceeds.IsNegative() || commission.IsNegative() {
			t.Errorf("split of %s produced a negative part: %s / %s", amount, proceeds, commission)
		}
	}
}

func TestSettlement_IdempotencyKeys(t *testing.T) {
	id := uuid.New()
	pk := domain.PaymentIdempotencyKey(id)
	tk := domain.TransferIdempotencyKey(id)
	if pk == tk {
		t.Error("payment and transfer keys must differ")
	}
	// Keys are derived, not random: the same settlement always yields the same key.
	if pk != domain.PaymentIdempotencyKey(id) {
		t.Error("payment key should be stable across calls")
	}
}

// ── Auto-bid ──────────────────────────────────────────────────────────────────

func TestAutoBid_NextAmount(t *testing.T) {
	ab := &domain.AutoBid{
		MaxAmount: decimal.NewFromInt(200),
		Increment: decimal.NewFromInt(10),
	}

	// Normal step.
	if got := ab.NextAmount(decimal.NewFromInt(100)); !got.Equal(decimal.NewFromInt(110)) {
		t.Errorf("NextAmount(100) = %s, want 110", got)
	}
	// Step would overshoot the ceiling: cap at max.
	if got := ab.NextAmount(decimal.NewFromInt(195)); !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("NextAmount(195) = %s, want 200", got)
	}
	// Ceiling reached: exhausted.
	if got := ab.NextAmount(decimal.NewFromInt(200)); !got.IsZero() {
		t.Errorf("NextAmount(200) = %s, want 0", got)
	}
	if got := ab.NextAmount(decimal.NewFromInt(250)); !got.IsZero() {
		t.Errorf("NextAmount(250) = %s, want 0", got)
	}
}
