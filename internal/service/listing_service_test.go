package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/events"
	"github.com/alanadi/market/internal/service"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fake listing world
// ──────────────────────────────────────────────────────────────────────────────

// listingWorld holds one listing and its domain behind a mutex and mirrors
// the store's conditional writes: ClaimForPurchase checks active status and
// the self-purchase guard inside the same locked mutation that flips the
// listing to pending, exactly like the SQL update it stands in for.
type listingWorld struct {
	mu      sync.Mutex
	listing *domain.Listing
	asset   *domain.DomainAsset
	auction *domain.Auction // non-nil = the domain is mid-auction

	commitErr          error // forced CommitListingSold failure
	releases           int
	sellerProceeds     decimal.Decimal
	platformCommission decimal.Decimal
}

func (w *listingWorld) Create(_ context.Context, l *domain.Listing) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := *l
	w.listing = &cp
	return nil
}

func (w *listingWorld) GetByID(_ context.Context, id uuid.UUID) (*domain.Listing, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listing == nil || w.listing.ID != id {
		return nil, domain.ErrListingNotFound
	}
	cp := *w.listing
	return &cp, nil
}

func (w *listingWorld) GetActiveByDomain(_ context.Context, domainID uuid.UUID) (*domain.Listing, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	l := w.listing
	if l == nil || l.DomainID != domainID ||
		(l.Status != domain.ListingActive && l.Status != domain.ListingPending) {
		return nil, domain.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (w *listingWorld) ListByStatus(_ context.Context, status domain.ListingStatus, _, _ int) ([]*domain.Listing, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listing != nil && w.listing.Status == status {
		cp := *w.listing
		return []*domain.Listing{&cp}, nil
	}
	return nil, nil
}

func (w *listingWorld) ListBySeller(context.Context, uuid.UUID) ([]*domain.Listing, error) {
	return nil, nil
}

func (w *listingWorld) ListPurchasedBy(context.Context, uuid.UUID) ([]*domain.Listing, error) {
	return nil, nil
}

func (w *listingWorld) ClaimForPurchase(_ context.Context, listingID, buyerID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	l := w.listing
	if l == nil || l.ID != listingID || l.Status != domain.ListingActive || l.SellerID == buyerID {
		return domain.ErrListingUnavailable
	}
	l.Status = domain.ListingPending
	l.BuyerID = &buyerID
	return nil
}

func (w *listingWorld) ReleaseClaim(_ context.Context, listingID, buyerID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	l := w.listing
	if l == nil || l.ID != listingID || l.Status != domain.ListingPending ||
		l.BuyerID == nil || *l.BuyerID != buyerID {
		return domain.ErrListingUnavailable
	}
	l.Status = domain.ListingActive
	l.BuyerID = nil
	w.releases++
	return nil
}

func (w *listingWorld) MarkCancelled(_ context.Context, listingID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	l := w.listing
	if l == nil || l.ID != listingID || l.Status != domain.ListingActive {
		return domain.ErrListingUnavailable
	}
	l.Status = domain.ListingCancelled
	return nil
}

func (w *listingWorld) CommitListingSold(_ context.Context, lst *domain.Listing, proceeds, commission decimal.Decimal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.commitErr != nil {
		return w.commitErr
	}
	l := w.listing
	if l == nil || l.ID != lst.ID || l.Status != domain.ListingPending ||
		l.BuyerID == nil || lst.BuyerID == nil || *l.BuyerID != *lst.BuyerID {
		return domain.ErrListingUnavailable
	}
	now := time.Now().UTC()
	l.Status = domain.ListingSold
	l.SoldAt = &now
	w.asset.OwnerID = *l.BuyerID
	w.sellerProceeds = proceeds
	w.platformCommission = commission
	return nil
}

// listingAssets adapts listingWorld to the domain-asset reader without
// colliding with the listing GetByID.
type listingAssets struct{ w *listingWorld }

func (r listingAssets) GetByID(_ context.Context, id uuid.UUID) (*domain.DomainAsset, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if r.w.asset == nil || r.w.asset.ID != id {
		return nil, domain.ErrDomainNotFound
	}
	cp := *r.w.asset
	return &cp, nil
}

// auctionGate adapts listingWorld to the live-auction check.
type auctionGate struct{ w *listingWorld }

func (g auctionGate) GetActiveByDomain(_ context.Context, domainID uuid.UUID) (*domain.Auction, error) {
	g.w.mu.Lock()
	defer g.w.mu.Unlock()
	if g.w.auction != nil && g.w.auction.DomainID == domainID {
		cp := *g.w.auction
		return &cp, nil
	}
	return nil, domain.ErrAuctionNotFound
}

// fakePurchasePayments adds the refund surface to the capture fake.
type fakePurchasePayments struct {
	fakePayments
	refunds    int
	refundRefs []string
	refundKeys []string
}

func (p *fakePurchasePayments) RefundFunds(_ context.Context, providerRef string, idemKey string) error {
	p.refunds++
	p.refundRefs = append(p.refundRefs, providerRef)
	p.refundKeys = append(p.refundKeys, idemKey)
	return nil
}

func activeListing(price int64) *listingWorld {
	now := time.Now().UTC()
	w := &listingWorld{
		asset: &domain.DomainAsset{ID: uuid.New(), Name: "example.org", OwnerID: uuid.New()},
	}
	w.listing = &domain.Listing{
		ID:        uuid.New(),
		DomainID:  w.asset.ID,
		SellerID:  w.asset.OwnerID,
		Price:     decimal.NewFromInt(price),
		Status:    domain.ListingActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return w
}

func newListingService(w *listingWorld, p *fakePurchasePayments, r *fakeRegistrar) *service.ListingService {
	return service.NewListingService(
		w, listingAssets{w}, auctionGate{w}, w, p, r,
		decimal.NewFromFloat(0.05),
		5*time.Second,
		events.NopSink{},
		discardLogger(),
	)
}

// ──────────────────────────────────────────────────────────────────────────────
// Purchase
// ──────────────────────────────────────────────────────────────────────────────

func TestPurchase_HappyPath(t *testing.T) {
	w := activeListing(1000)
	var order []string
	p := &fakePurchasePayments{fakePayments: fakePayments{order: &order}}
	r := &fakeRegistrar{order: &order}
	svc := newListingService(w, p, r)
	buyer := uuid.New()

	got, err := svc.Purchase(context.Background(), buyer, w.listing.ID)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if got.Status != domain.ListingSold || got.SoldAt == nil {
		t.Errorf("returned listing = %s/%v, want sold with timestamp", got.Status, got.SoldAt)
	}
	if w.listing.Status != domain.ListingSold {
		t.Errorf("stored status = %s, want sold", w.listing.Status)
	}
	if w.asset.OwnerID != buyer {
		t.Error("domain ownership should move to the buyer")
	}
	if !w.sellerProceeds.Equal(decimal.NewFromInt(950)) || !w.platformCommission.Equal(decimal.NewFromInt(50)) {
		t.Errorf("split = %s/%s, want 950/50", w.sellerProceeds, w.platformCommission)
	}

	wantCapture := fmt.Sprintf("purchase-%s", w.listing.ID)
	if len(p.keys) != 1 || p.keys[0] != wantCapture {
		t.Errorf("capture keys = %v, want [%s]", p.keys, wantCapture)
	}
	wantTransfer := fmt.Sprintf("purchase-transfer-%s", w.listing.ID)
	if len(r.keys) != 1 || r.keys[0] != wantTransfer {
		t.Errorf("transfer keys = %v, want [%s]", r.keys, wantTransfer)
	}
	if len(order) != 2 || order[0] != "capture" || order[1] != "transfer" {
		t.Errorf("external call order = %v, want capture before transfer", order)
	}
}

func TestPurchase_SelfPurchaseRejected(t *testing.T) {
	w := activeListing(1000)
	p := &fakePurchasePayments{}
	svc := newListingService(w, p, &fakeRegistrar{})

	_, err := svc.Purchase(context.Background(), w.listing.SellerID, w.listing.ID)
	if !errors.Is(err, domain.ErrSelfPurchase) {
		t.Fatalf("self purchase = %v, want ErrSelfPurchase", err)
	}
	if w.listing.Status != domain.ListingActive || p.calls != 0 {
		t.Errorf("status=%s calls=%d, want untouched active listing", w.listing.Status, p.calls)
	}
}

// Two buyers racing for the same listing: the conditional claim lets exactly
// one through, and only the winner is ever charged.
func TestPurchase_ConcurrentBuyersOneWinner(t *testing.T) {
	w := activeListing(1000)
	p := &fakePurchasePayments{}
	svc := newListingService(w, p, &fakeRegistrar{})

	const buyers = 8
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = svc.Purchase(context.Background(), uuid.New(), w.listing.ID)
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrListingUnavailable):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != buyers-1 {
		t.Errorf("won=%d lost=%d, want exactly one winner of %d", won, lost, buyers)
	}
	if p.calls != 1 {
		t.Errorf("captures = %d, want 1", p.calls)
	}
	if w.listing.Status != domain.ListingSold {
		t.Errorf("status = %s, want sold", w.listing.Status)
	}
}

func TestPurchase_CaptureFailureReleasesClaim(t *testing.T) {
	w := activeListing(1000)
	p := &fakePurchasePayments{fakePayments: fakePayments{failNext: 1}}
	r := &fakeRegistrar{}
	svc := newListingService(w, p, r)

	_, err := svc.Purchase(context.Background(), uuid.New(), w.listing.ID)
	if !errors.Is(err, domain.ErrPaymentFailed) {
		t.Fatalf("Purchase = %v, want ErrPaymentFailed in chain", err)
	}
	if w.listing.Status != domain.ListingActive || w.listing.BuyerID != nil {
		t.Errorf("listing = %s/%v, want released back to active", w.listing.Status, w.listing.BuyerID)
	}
	if w.releases != 1 {
		t.Errorf("releases = %d, want 1", w.releases)
	}
	if r.calls != 0 || p.refunds != 0 {
		t.Errorf("transfer=%d refunds=%d, want no transfer and nothing to refund", r.calls, p.refunds)
	}
}

// A transfer failure after a successful capture refunds the buyer before
// releasing the claim: captured money never stays with an unsold domain.
func TestPurchase_TransferFailureRefundsCapture(t *testing.T) {
	w := activeListing(1000)
	p := &fakePurchasePayments{}
	r := &fakeRegistrar{failNext: 1}
	svc := newListingService(w, p, r)

	_, err := svc.Purchase(context.Background(), uuid.New(), w.listing.ID)
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("Purchase = %v, want ErrTransferFailed in chain", err)
	}
	if p.refunds != 1 {
		t.Fatalf("refunds = %d, want 1", p.refunds)
	}
	if p.refundRefs[0] != "pi_test" {
		t.Errorf("refund ref = %s, want the capture's provider ref", p.refundRefs[0])
	}
	wantKey := fmt.Sprintf("purchase-refund-%s", w.listing.ID)
	if p.refundKeys[0] != wantKey {
		t.Errorf("refund key = %s, want %s", p.refundKeys[0], wantKey)
	}
	if w.listing.Status != domain.ListingActive {
		t.Errorf("status = %s, want released back to active", w.listing.Status)
	}
}

// When both external steps succeeded but the local commit fails, the claim
// must stay pending for manual intervention: releasing it would re-sell a
// domain the registrar already transferred.
func TestPurchase_CommitFailureKeepsClaim(t *testing.T) {
	w := activeListing(1000)
	w.commitErr = errors.New("pq: connection reset")
	p := &fakePurchasePayments{}
	svc := newListingService(w, p, &fakeRegistrar{})

	_, err := svc.Purchase(context.Background(), uuid.New(), w.listing.ID)
	if err == nil {
		t.Fatal("Purchase should surface the commit failure")
	}
	if w.listing.Status != domain.ListingPending {
		t.Errorf("status = %s, want pending for back-office", w.listing.Status)
	}
	if w.releases != 0 || p.refunds != 0 {
		t.Errorf("releases=%d refunds=%d, want claim and capture left in place", w.releases, p.refunds)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Create / Cancel
// ──────────────────────────────────────────────────────────────────────────────

func TestCreateListing_Validation(t *testing.T) {
	seller := uuid.New()
	newWorld := func() *listingWorld {
		return &listingWorld{
			asset: &domain.DomainAsset{ID: uuid.New(), Name: "example.org", OwnerID: seller},
		}
	}
	req := func(w *listingWorld, price int64) service.CreateListingRequest {
		return service.CreateListingRequest{DomainID: w.asset.ID, Price: decimal.NewFromInt(price)}
	}

	t.Run("not owner", func(t *testing.T) {
		w := newWorld()
		svc := newListingService(w, &fakePurchasePayments{}, &fakeRegistrar{})
		if _, err := svc.Create(context.Background(), uuid.New(), req(w, 500)); !errors.Is(err, domain.ErrDomainNotOwned) {
			t.Errorf("Create by stranger = %v, want ErrDomainNotOwned", err)
		}
	})

	t.Run("non-positive price", func(t *testing.T) {
		w := newWorld()
		svc := newListingService(w, &fakePurchasePayments{}, &fakeRegistrar{})
		if _, err := svc.Create(context.Background(), seller, req(w, 0)); !errors.Is(err, domain.ErrInvalidPrice) {
			t.Errorf("Create with zero price = %v, want ErrInvalidPrice", err)
		}
	})

	t.Run("domain mid-auction", func(t *testing.T) {
		w := newWorld()
		w.auction = &domain.Auction{ID: uuid.New(), DomainID: w.asset.ID, Status: domain.AuctionOpen}
		svc := newListingService(w, &fakePurchasePayments{}, &fakeRegistrar{})
		if _, err := svc.Create(context.Background(), seller, req(w, 500)); !errors.Is(err, domain.ErrDomainInAuction) {
			t.Errorf("Create during auction = %v, want ErrDomainInAuction", err)
		}
	})

	t.Run("already listed", func(t *testing.T) {
		w := newWorld()
		svc := newListingService(w, &fakePurchasePayments{}, &fakeRegistrar{})
		if _, err := svc.Create(context.Background(), seller, req(w, 500)); err != nil {
			t.Fatalf("first Create: %v", err)
		}
		if _, err := svc.Create(context.Background(), seller, req(w, 600)); !errors.Is(err, domain.ErrDomainListed) {
			t.Errorf("second Create = %v, want ErrDomainListed", err)
		}
	})
}

func TestCancelListing(t *testing.T) {
	t.Run("seller cancels active", func(t *testing.T) {
		w := activeListing(500)
		svc := newListingService(w, &fakePurchasePayments{}, &fakeRegistrar{})
		if err := svc.Cancel(context.Background(), w.listing.SellerID, w.listing.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if w.listing.Status != domain.ListingCancelled {
			t.Errorf("status = %s, want cancelled", w.listing.Status)
		}
	})

	t.Run("stranger forbidden", func(t *testing.T) {
		w := activeListing(500)
		svc := newListingService(w, &fakePurchasePayments{}, &fakeRegistrar{})
		if err := svc.Cancel(context.Background(), uuid.New(), w.listing.ID); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("Cancel by stranger = %v, want ErrForbidden", err)
		}
	})

	t.Run("claimed listing wins over cancel", func(t *testing.T) {
		w := activeListing(500)
		buyer := uuid.New()
		if err := w.ClaimForPurchase(context.Background(), w.listing.ID, buyer); err != nil {
			t.Fatalf("claim: %v", err)
		}
		svc := newListingService(w, &fakePurchasePayments{}, &fakeRegistrar{})
		if err := svc.Cancel(context.Background(), w.listing.SellerID, w.listing.ID); !errors.Is(err, domain.ErrListingUnavailable) {
			t.Errorf("Cancel of claimed listing = %v, want ErrListingUnavailable", err)
		}
		if w.listing.Status != domain.ListingPending {
			t.Errorf("status = %s, want still pending", w.listing.Status)
		}
	})
}
