package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/alanadi/market/internal/domain"
)

// Ledger composes the repositories into the atomic multi-table operations the
// services depend on.  Every method here is a single transaction: either the
// whole state change commits or none of it does.
type Ledger struct {
	db          *sqlx.DB
	auctions    *AuctionRepository
	bids        *BidRepository
	settlements *SettlementRepository
	domains     *DomainRepository
	wallets     *WalletRepository
	listings    *ListingRepository
}

// NewLedger creates a Ledger over the given repositories.
func NewLedger(db *sqlx.DB, auctions *AuctionRepository, bids *BidRepository, settlements *SettlementRepository, domains *DomainRepository, wallets *WalletRepository, listings *ListingRepository) *Ledger {
	return &Ledger{
		db:          db,
		auctions:    auctions,
		bids:        bids,
		settlements: settlements,
		domains:     domains,
		wallets:     wallets,
		listings:    listings,
	}
}

// CommitBid installs a bid as the new standing bid and records it, atomically.
// The auction update is version-guarded, so of any number of concurrent
// callers holding the same snapshot, exactly one commits; the rest get
// ErrBidConflict and nothing is written for them here.
func (l *Ledger) CommitBid(ctx context.Context, a *domain.Auction, bid *domain.Bid) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger.CommitBid begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := l.auctions.TryOutbid(ctx, tx, a.ID, a.Version, bid.Amount, bid.BidderID, bid.SubmittedAt); err != nil {
		return err
	}
	if err := l.bids.Insert(ctx, tx, bid); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger.CommitBid commit: %w", err)
	}
	return nil
}

// RecordRejectedBid stores a rejected bid for audit.  Outside any transaction:
// a rejection never touches auction state.
func (l *Ledger) RecordRejectedBid(ctx context.Context, bid *domain.Bid) error {
	return l.bids.Insert(ctx, nil, bid)
}

// CommitSettled finalises a winning settlement: flips the auction to settled,
// transfers domain ownership, credits the seller's wallet and the platform
// wallet, and marks the settlement completed.  One transaction, so a crash at
// any point leaves the auction still closing and the settlement retryable.
//
// Both external steps (capture, transfer) must already have succeeded before
// this is called.
func (l *Ledger) CommitSettled(ctx context.Context, a *domain.Auction, s *domain.Settlement) error {
	if s.WinnerID == nil {
		return fmt.Errorf("ledger.CommitSettled: %w: settlement %s has no winner", domain.ErrLedgerInconsistent, s.ID)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger.CommitSettled begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := l.auctions.MarkSettled(ctx, tx, a.ID, *s.WinnerID); err != nil {
		return err
	}
	if err := l.domains.TransferOwnership(ctx, tx, a.DomainID, *s.WinnerID, s.Amount); err != nil {
		return err
	}

	sellerWallet, err := l.wallets.GetByUserID(ctx, a.SellerID)
	if err != nil {
		return err
	}
	if err := l.wallets.Credit(ctx, tx, sellerWallet.ID, s.SellerProceeds,
		domain.TxSaleProceeds, &s.ID, fmt.Sprintf("sale of auction %s", a.ID)); err != nil {
		return err
	}

	if s.Commission.IsPositive() {
		platform, err := l.wallets.GetPlatform(ctx)
		if err != nil {
			return err
		}
		if err := l.wallets.Credit(ctx, tx, platform.ID, s.Commission,
			domain.TxCommission, &s.ID, fmt.Sprintf("commission on auction %s", a.ID)); err != nil {
			return err
		}
	}

	if err := l.settlements.MarkCompleted(ctx, tx, s.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger.CommitSettled commit: %w", err)
	}
	return nil
}

// CommitCancelled terminates an auction with no winner and completes its
// settlement, atomically.  The domain stays with the seller and no money
// moves.
func (l *Ledger) CommitCancelled(ctx context.Context, auctionID uuid.UUID, settlementID *uuid.UUID) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger.CommitCancelled begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := l.auctions.MarkCancelled(ctx, tx, auctionID); err != nil {
		return err
	}
	if settlementID != nil {
		if err := l.settlements.MarkCompleted(ctx, tx, *settlementID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger.CommitCancelled commit: %w", err)
	}
	return nil
}

// CommitListingSold finalises a fixed-price purchase: marks the claimed
// listing sold, transfers domain ownership, and credits the seller's wallet
// and the platform wallet, atomically.  The buyer's capture and the registrar
// transfer must already have succeeded before this is called.
func (l *Ledger) CommitListingSold(ctx context.Context, lst *domain.Listing, proceeds, commission decimal.Decimal) error {
	if lst.BuyerID == nil {
		return fmt.Errorf("ledger.CommitListingSold: %w: listing %s has no buyer", domain.ErrLedgerInconsistent, lst.ID)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger.CommitListingSold begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := l.listings.MarkSold(ctx, tx, lst.ID, *lst.BuyerID, time.Now().UTC()); err != nil {
		return err
	}
	if err := l.domains.TransferOwnership(ctx, tx, lst.DomainID, *lst.BuyerID, lst.Price); err != nil {
		return err
	}

	sellerWallet, err := l.wallets.GetByUserID(ctx, lst.SellerID)
	if err != nil {
		return err
	}
	if err := l.wallets.Credit(ctx, tx, sellerWallet.ID, proceeds,
		domain.TxSaleProceeds, &lst.ID, fmt.Sprintf("sale of listing %s", lst.ID)); err != nil {
		return err
	}

	if commission.IsPositive() {
		platform, err := l.wallets.GetPlatform(ctx)
		if err != nil {
			return err
		}
		if err := l.wallets.Credit(ctx, tx, platform.ID, commission,
			domain.TxCommission, &lst.ID, fmt.Sprintf("commission on listing %s", lst.ID)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger.CommitListingSold commit: %w", err)
	}
	return nil
}

// CreateSettlementFor derives and inserts the settlement row for a closing
// auction.  Safe to race: ON CONFLICT leaves the first writer's row in place
// and the caller re-reads it.
func (l *Ledger) CreateSettlementFor(ctx context.Context, a *domain.Auction, commissionRate decimal.Decimal) (*domain.Settlement, error) {
	s := &domain.Settlement{
		ID:        uuid.New(),
		AuctionID: a.ID,
		Status:    domain.SettlementPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if a.HasBid() && a.ReserveMet() {
		s.WinnerID = a.CurrentBidderID
		s.Amount = *a.CurrentBid
		s.SellerProceeds, s.Commission = domain.SplitProceeds(*a.CurrentBid, commissionRate)
	}
	s.PaymentKey = domain.PaymentIdempotencyKey(s.ID)
	s.TransferKey = domain.TransferIdempotencyKey(s.ID)

	if err := l.settlements.Create(ctx, s); err != nil {
		return nil, err
	}
	// Re-read so a racing creator's row wins consistently.
	return l.settlements.GetByAuction(ctx, a.ID)
}
