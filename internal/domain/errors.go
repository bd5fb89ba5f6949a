package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Auction errors
var (
	// ErrAuctionNotFound is returned when no auction matches the given criteria.
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrAuctionNotOpen is returned when a bid is placed on an auction that is
	// not in AuctionOpen.
	ErrAuctionNotOpen = errors.New("auction is not open for bidding")

	// ErrAuctionEnded is returned when a bid is submitted at or after the
	// auction's end time, regardless of whether the clock has closed it yet.
	ErrAuctionEnded = errors.New("auction has already ended")

	// ErrAuctionNotClosing is returned when settlement is requested for an
	// auction that never passed through the closing transition.
	ErrAuctionNotClosing = errors.New("auction is not in closing state")

	// ErrAlreadySettled is returned when a terminal auction is asked to change.
	ErrAlreadySettled = errors.New("auction is already settled or cancelled")

	// ErrAuctionHasBids is returned when a seller tries to cancel an auction
	// that holds an accepted bid, including one that landed concurrently.
	ErrAuctionHasBids = errors.New("auction already has an accepted bid")

	// ErrDomainInAuction is returned when creating an auction for a domain that
	// is already being auctioned.
	ErrDomainInAuction = errors.New("domain is already in an active auction")

	// ErrInvalidWindow is returned when an auction's time window is malformed.
	ErrInvalidWindow = errors.New("auction end time must be after start time")
)

// Bid errors
var (
	// ErrSelfBid is returned when a seller bids on their own auction.
	ErrSelfBid = errors.New("sellers cannot bid on their own auction")

	// ErrBidTooLow is returned when an amount does not reach the start price or
	// the standing bid plus the minimum increment.
	ErrBidTooLow = errors.New("bid amount is below the required minimum")

	// ErrBidConflict is returned when a bid loses the conditional-update race
	// to a concurrent bid.  Callers may resubmit with a fresh amount.
	ErrBidConflict = errors.New("bid lost to a concurrent higher bid")

	// ErrAutoBidNotFound is returned when no auto-bid matches the given criteria.
	ErrAutoBidNotFound = errors.New("auto-bid not found")

	// ErrAutoBidExists is returned when a bidder already holds an active
	// auto-bid for the auction.
	ErrAutoBidExists = errors.New("an active auto-bid already exists for this auction")
)

// Domain-asset errors
var (
	// ErrDomainNotFound is returned when no domain matches the given criteria.
	ErrDomainNotFound = errors.New("domain not found")

	// ErrDomainNotOwned is returned when a user acts on a domain they do not own.
	ErrDomainNotOwned = errors.New("you do not own this domain")
)

// Listing errors
var (
	// ErrListingNotFound is returned when no listing matches the given criteria.
	ErrListingNotFound = errors.New("listing not found")

	// ErrListingUnavailable is returned when a listing is not active, including
	// when a concurrent buyer claimed it first.
	ErrListingUnavailable = errors.New("listing is not available")

	// ErrDomainListed is returned when creating a listing for a domain that is
	// already listed for sale.
	ErrDomainListed = errors.New("domain is already listed for sale")

	// ErrSelfPurchase is returned when a seller tries to buy their own listing.
	ErrSelfPurchase = errors.New("sellers cannot purchase their own listing")

	// ErrInvalidPrice is returned when a listing price is not positive.
	ErrInvalidPrice = errors.New("price must be positive")
)

// Settlement / external-collaborator errors
var (
	// ErrSettlementNotFound is returned when no settlement exists for an auction.
	ErrSettlementNotFound = errors.New("settlement not found")

	// ErrPaymentFailed wraps payment-collaborator failures; the settlement is
	// left retryable, never corrupted.
	ErrPaymentFailed = errors.New("payment capture failed")

	// ErrTransferFailed wraps registrar-collaborator failures after a
	// successful capture; retried with the same idempotency key.
	ErrTransferFailed = errors.New("domain transfer failed")

	// ErrLedgerInconsistent flags state that should be impossible (e.g. a
	// settlement without a terminal auction).  Never swallowed: logged loudly
	// and surfaced for manual intervention.
	ErrLedgerInconsistent = errors.New("ledger state is inconsistent")
)

// User / wallet errors
var (
	// ErrUserNotFound is returned when no user matches the given criteria.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned on registration when the email already exists.
	ErrEmailTaken = errors.New("email address is already registered")

	// ErrUsernameTaken is returned on registration when the username already exists.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrInvalidCredentials is returned when login credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserInactive is returned when a suspended/banned user attempts an action.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrWalletNotFound is returned when no wallet exists for the requested user.
	ErrWalletNotFound = errors.New("wallet not found")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated user lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenExpired is returned when a JWT or refresh token has passed its TTL.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or its signature
	// does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrAuctionNotFound,
	ErrDomainNotFound,
	ErrListingNotFound,
	ErrSettlementNotFound,
	ErrAutoBidNotFound,
	ErrUserNotFound,
	ErrWalletNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors. Use this instead of comparing error values directly
// when you need to translate domain errors to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict (e.g.
// a lost bid race, a double settlement, or a duplicate registration).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrBidConflict,
		ErrAlreadySettled,
		ErrAuctionHasBids,
		ErrAuctionNotOpen,
		ErrDomainInAuction,
		ErrDomainListed,
		ErrListingUnavailable,
		ErrAutoBidExists,
		ErrEmailTaken,
		ErrUsernameTaken,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsExternal returns true for external-collaborator failures that leave the
// settlement in a retryable state.
func IsExternal(err error) bool {
	return errors.Is(err, ErrPaymentFailed) || errors.Is(err, ErrTransferFailed)
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidCredentials,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
