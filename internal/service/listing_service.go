package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/domain"
	"github.com/alanadi/market/internal/events"
	"github.com/alanadi/market/internal/metrics"
	"github.com/alanadi/market/internal/payment"
)

// ──────────────────────────────────────────────────────────────────────────────
// Collaborator interfaces
// ──────────────────────────────────────────────────────────────────────────────

// ListingStore is the persistence surface of fixed-price listings.
// ClaimForPurchase must enforce its preconditions inside its own conditional
// write: of any set of concurrent buyers exactly one claims the listing.
type ListingStore interface {
	Create(ctx context.Context, l *domain.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	GetActiveByDomain(ctx context.Context, domainID uuid.UUID) (*domain.Listing, error)
	ListByStatus(ctx context.Context, status domain.ListingStatus, limit, offset int) ([]*domain.Listing, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Listing, error)
	ListPurchasedBy(ctx context.Context, buyerID uuid.UUID) ([]*domain.Listing, error)
	ClaimForPurchase(ctx context.Context, listingID, buyerID uuid.UUID) error
	ReleaseClaim(ctx context.Context, listingID, buyerID uuid.UUID) error
	MarkCancelled(ctx context.Context, listingID uuid.UUID) error
}

// PurchasePayments is the payment surface a purchase needs: capture the
// buyer's funds, and refund them when the purchase cannot complete after a
// successful capture.
type PurchasePayments interface {
	CaptureFunds(ctx context.Context, bidderID uuid.UUID, amount decimal.Decimal, idemKey string) (*payment.CaptureResult, error)
	RefundFunds(ctx context.Context, providerRef string, idemKey string) error
}

// ListingLedger commits the sold state atomically.
type ListingLedger interface {
	CommitListingSold(ctx context.Context, lst *domain.Listing, proceeds, commission decimal.Decimal) error
}

// AuctionChecker guards against listing a domain that is mid-auction.
type AuctionChecker interface {
	GetActiveByDomain(ctx context.Context, domainID uuid.UUID) (*domain.Auction, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Request types
// ──────────────────────────────────────────────────────────────────────────────

// CreateListingRequest carries the seller's buy-now parameters.
type CreateListingRequest struct {
	DomainID uuid.UUID       `json:"domain_id" binding:"required"`
	Price    decimal.Decimal `json:"price"     binding:"required"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ListingService
// ──────────────────────────────────────────────────────────────────────────────

// ListingService manages fixed-price listings: create, browse, purchase,
// cancel.
//
// A purchase is synchronous, unlike auction settlement: claim the listing
// with a conditional update, capture the buyer's funds, transfer the domain
// at the registrar, then commit one transaction for the money movement and
// the status flip.  Any failure before the commit releases the claim; a
// failure after the capture also refunds it, so a buyer is never left charged
// for a domain they did not receive.
type ListingService struct {
	listings       ListingStore
	domains        DomainReader
	auctions       AuctionChecker
	ledger         ListingLedger
	payments       PurchasePayments
	registrar      RegistrarProvider
	commissionRate decimal.Decimal
	callTimeout    time.Duration
	sink           events.Sink
	logger         *slog.Logger
}

// NewListingService creates a ListingService.
func NewListingService(
	listings ListingStore,
	domains DomainReader,
	auctions AuctionChecker,
	ledger ListingLedger,
	payments PurchasePayments,
	registrar RegistrarProvider,
	commissionRate decimal.Decimal,
	callTimeout time.Duration,
	sink events.Sink,
	logger *slog.Logger,
) *ListingService {
	return &ListingService{
		listings:       listings,
		domains:        domains,
		auctions:       auctions,
		ledger:         ledger,
		payments:       payments,
		registrar:      registrar,
		commissionRate: commissionRate,
		callTimeout:    callTimeout,
		sink:           sink,
		logger:         logger,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Create
// ──────────────────────────────────────────────────────────────────────────────

// Create lists a domain at a fixed price.  The seller must own the domain,
// and the domain must not already be listed or in a live auction.
func (s *ListingService) Create(ctx context.Context, sellerID uuid.UUID, req CreateListingRequest) (*domain.Listing, error) {
	asset, err := s.domains.GetByID(ctx, req.DomainID)
	if err != nil {
		return nil, err
	}
	if !asset.OwnedBy(sellerID) {
		return nil, domain.ErrDomainNotOwned
	}
	if !req.Price.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", domain.ErrInvalidPrice, req.Price)
	}

	if _, err := s.auctions.GetActiveByDomain(ctx, req.DomainID); err == nil {
		return nil, domain.ErrDomainInAuction
	} else if !errors.Is(err, domain.ErrAuctionNotFound) {
		return nil, err
	}
	if _, err := s.listings.GetActiveByDomain(ctx, req.DomainID); err == nil {
		return nil, domain.ErrDomainListed
	} else if !errors.Is(err, domain.ErrListingNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	listing := &domain.Listing{
		ID:        uuid.New(),
		DomainID:  req.DomainID,
		SellerID:  sellerID,
		Price:     req.Price,
		Status:    domain.ListingActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, err
	}

	s.logger.Info("listing created",
		"listing_id", listing.ID, "domain", asset.Name, "price", req.Price.String())
	s.sink.Emit(events.TypeListingCreated, listing.ToSummary(asset.Name))
	return listing, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// Get returns a listing by ID.
func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return s.listings.GetByID(ctx, id)
}

// GetSummary returns the public read-model of a listing.
func (s *ListingService) GetSummary(ctx context.Context, id uuid.UUID) (*domain.ListingSummary, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	asset, err := s.domains.GetByID(ctx, listing.DomainID)
	if err != nil {
		return nil, err
	}
	summary := listing.ToSummary(asset.Name)
	return &summary, nil
}

// ListActive returns currently buyable listings, newest first.
func (s *ListingService) ListActive(ctx context.Context, limit, offset int) ([]*domain.Listing, error) {
	return s.listings.ListByStatus(ctx, domain.ListingActive, limit, offset)
}

// ListBySeller returns a seller's listings.
func (s *ListingService) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Listing, error) {
	return s.listings.ListBySeller(ctx, sellerID)
}

// ListPurchases returns sold listings the user bought.
func (s *ListingService) ListPurchases(ctx context.Context, buyerID uuid.UUID) ([]*domain.Listing, error) {
	return s.listings.ListPurchasedBy(ctx, buyerID)
}

// ──────────────────────────────────────────────────────────────────────────────
// Purchase / Cancel
// ──────────────────────────────────────────────────────────────────────────────

// Purchase buys an active listing outright.  The decisive step is the
// conditional claim: validation runs against a snapshot, and a listing gone
// stale between validation and claim simply loses the conditional update
// with ErrListingUnavailable, never half-applied.
func (s *ListingService) Purchase(ctx context.Context, buyerID, listingID uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.SellerID == buyerID {
		return nil, domain.ErrSelfPurchase
	}
	if !listing.IsActive() {
		return nil, fmt.Errorf("%w: status is %s", domain.ErrListingUnavailable, listing.Status)
	}

	if err := s.listings.ClaimForPurchase(ctx, listingID, buyerID); err != nil {
		return nil, err
	}
	listing.Status = domain.ListingPending
	listing.BuyerID = &buyerID

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	capture, err := s.payments.CaptureFunds(callCtx, buyerID, listing.Price, domain.PurchaseIdempotencyKey(listingID))
	cancel()
	if err != nil {
		s.releaseClaim(ctx, listingID, buyerID)
		return nil, fmt.Errorf("listing_service.Purchase capture: %w", err)
	}

	asset, err := s.domains.GetByID(ctx, listing.DomainID)
	if err != nil {
		s.refund(ctx, listingID, capture.ProviderRef)
		s.releaseClaim(ctx, listingID, buyerID)
		return nil, err
	}

	callCtx, cancel = context.WithTimeout(ctx, s.callTimeout)
	err = s.registrar.TransferDomain(callCtx, asset.Name, listing.SellerID, buyerID, domain.PurchaseTransferIdempotencyKey(listingID))
	cancel()
	if err != nil {
		s.refund(ctx, listingID, capture.ProviderRef)
		s.releaseClaim(ctx, listingID, buyerID)
		return nil, fmt.Errorf("listing_service.Purchase transfer: %w", err)
	}

	proceeds, commission := domain.SplitProceeds(listing.Price, s.commissionRate)
	if err := s.ledger.CommitListingSold(ctx, listing, proceeds, commission); err != nil {
		// Money captured and domain transferred, but the commit failed.  The
		// claim stays pending for the back-office rather than refunding a
		// transfer that already happened.
		s.logger.Error("listing commit failed after external steps",
			"listing_id", listingID, "buyer_id", buyerID, "error", err)
		return nil, fmt.Errorf("listing_service.Purchase commit: %w", err)
	}
	now := time.Now().UTC()
	listing.Status = domain.ListingSold
	listing.SoldAt = &now

	metrics.ListingsSold.Inc()
	s.logger.Info("listing sold",
		"listing_id", listingID,
		"domain", asset.Name,
		"buyer_id", buyerID,
		"price", listing.Price.String(),
		"commission", commission.String())

	s.sink.Emit(events.TypeListingSold, listing.ToSummary(asset.Name))
	s.sink.EmitTo(listing.SellerID.String(), events.TypeListingSold, map[string]interface{}{
		"listing_id": listingID,
		"price":      listing.Price,
	})
	return listing, nil
}

// Cancel withdraws an active listing at the seller's request.  Conditional on
// the status, so a purchase claiming the listing concurrently wins.
func (s *ListingService) Cancel(ctx context.Context, sellerID, listingID uuid.UUID) error {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.SellerID != sellerID {
		return domain.ErrForbidden
	}

	if err := s.listings.MarkCancelled(ctx, listingID); err != nil {
		return err
	}
	s.logger.Info("listing cancelled", "listing_id", listingID)
	s.sink.Emit(events.TypeListingCancelled, map[string]interface{}{"listing_id": listingID})
	return nil
}

func (s *ListingService) releaseClaim(ctx context.Context, listingID, buyerID uuid.UUID) {
	if err := s.listings.ReleaseClaim(ctx, listingID, buyerID); err != nil {
		s.logger.Error("failed to release listing claim",
			"listing_id", listingID, "buyer_id", buyerID, "error", err)
	}
}

func (s *ListingService) refund(ctx context.Context, listingID uuid.UUID, providerRef string) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if err := s.payments.RefundFunds(callCtx, providerRef, domain.PurchaseRefundIdempotencyKey(listingID)); err != nil {
		s.logger.Error("failed to refund purchase capture",
			"listing_id", listingID, "provider_ref", providerRef, "error", err)
	}
}
