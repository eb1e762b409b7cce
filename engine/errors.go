package engine

import (
	"errors"
	"fmt"
)

// Rejection reason codes assigned before a bid reaches the resolver.
// Resolver-assigned codes (below_minimum, cannot_lower_proxy) live in core.
const (
	ReasonInvalidAmount    = "invalid_amount"
	ReasonAuctionNotFound  = "auction_not_found"
	ReasonAuctionNotActive = "auction_not_active"
	ReasonBidderIsSeller   = "bidder_is_seller"
)

// ValidationError is a synchronous bid rejection. It is never retried; the
// Reason field is the machine-readable code surfaced to the bidder.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bid rejected: %s", e.Reason)
}

// ErrTransient is surfaced when the gateway exhausted its internal
// retries against a contended ledger. The bidder may resubmit.
var ErrTransient = errors.New("transient failure, please retry")

// ErrAuctionNotFound is returned by lifecycle operations on unknown
// auctions.
var ErrAuctionNotFound = errors.New("auction not found")

// ErrNotCancellable is returned when a cancel request arrives after the
// auction already reached a terminal state other than cancelled.
var ErrNotCancellable = errors.New("auction can no longer be cancelled")
