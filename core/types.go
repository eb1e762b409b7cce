package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// monetaryPrecision is the number of decimal places for USD amounts
// (whole cents). All money comparisons round to this precision first.
const monetaryPrecision int32 = 2

// AuctionKind selects which clock rule applies to an auction.
type AuctionKind string

const (
	// KindFixed closes exactly at scheduled_end, no extensions.
	KindFixed AuctionKind = "fixed"
	// KindAntiSnipe pushes scheduled_end forward when a bid lands inside
	// the extension window.
	KindAntiSnipe AuctionKind = "anti_snipe"
)

// AuctionState is the lifecycle state of an auction. Transitions are
// monotonic and never reversed.
type AuctionState string

const (
	StateScheduled     AuctionState = "scheduled"
	StateActive        AuctionState = "active"
	StateEnding        AuctionState = "ending"
	StateSold          AuctionState = "sold"
	StateReserveNotMet AuctionState = "reserve_not_met"
	StateExpired       AuctionState = "expired"
	StateCancelled     AuctionState = "cancelled"
)

// Terminal reports whether s is an absorbing state.
func (s AuctionState) Terminal() bool {
	switch s {
	case StateSold, StateReserveNotMet, StateExpired, StateCancelled:
		return true
	}
	return false
}

// Auction is a single vehicle listing up for bidding.
type Auction struct {
	ID        string `json:"id"`
	VehicleID string `json:"vehicle_id"`
	SellerID  string `json:"seller_id"`

	Kind AuctionKind `json:"kind"`

	// ReservePrice is the seller-set minimum below which no sale occurs.
	// nil means no reserve.
	ReservePrice *decimal.Decimal  `json:"reserve_price,omitempty"`
	StartPrice   decimal.Decimal   `json:"start_price"`
	Increments   IncrementSchedule `json:"increments"`

	ScheduledStart  time.Time     `json:"scheduled_start"`
	ScheduledEnd    time.Time     `json:"scheduled_end"`
	ExtensionWindow time.Duration `json:"extension_window"`

	State        AuctionState `json:"state"`
	WinningBidID string       `json:"winning_bid_id,omitempty"`

	// LastExtensionSeq is the highest bid sequence number that has already
	// triggered an anti-snipe extension. Reprocessing a bid with sequence
	// at or below this value never extends again.
	LastExtensionSeq uint64 `json:"last_extension_seq,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasReserve reports whether the seller set a reserve price.
func (a *Auction) HasReserve() bool {
	return a.ReservePrice != nil
}

// ReserveMet reports whether price meets the reserve. Auctions without a
// reserve always satisfy it.
func (a *Auction) ReserveMet(price decimal.Decimal) bool {
	if a.ReservePrice == nil {
		return true
	}
	return price.Round(monetaryPrecision).GreaterThanOrEqual(a.ReservePrice.Round(monetaryPrecision))
}

// Bid is one bid attempt as recorded in the ledger. Sequence and
// SubmittedAt are assigned by the server at intake, never taken from the
// client.
type Bid struct {
	ID        string `json:"id"`
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id"`

	// ProxyMax is the bidder's private maximum willingness-to-pay.
	ProxyMax decimal.Decimal `json:"proxy_max"`
	// Displayed is the public current price immediately after this bid
	// was applied.
	Displayed decimal.Decimal `json:"displayed"`
	IsProxy   bool            `json:"is_proxy"`

	SubmittedAt time.Time `json:"submitted_at"`
	Sequence    uint64    `json:"sequence"`

	Accepted        bool   `json:"accepted"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// LeadingBidSnapshot is the derived read model for one auction: who leads
// and at what public price, as of a ledger sequence. It is cacheable but
// never authoritative; the ledger is.
type LeadingBidSnapshot struct {
	AuctionID string `json:"auction_id"`

	LeadingBidID    string          `json:"leading_bid_id,omitempty"`
	LeadingBidderID string          `json:"leading_bidder_id,omitempty"`
	DisplayedPrice  decimal.Decimal `json:"displayed_price"`
	LeadingProxyMax decimal.Decimal `json:"leading_proxy_max"`

	// ComputedAtSeq is the highest ledger sequence folded into this
	// snapshot (0 for an empty ledger).
	ComputedAtSeq    uint64 `json:"computed_at_sequence"`
	AcceptedBidCount int    `json:"accepted_bid_count"`
	BidAttemptCount  int    `json:"bid_attempt_count"`
}

// HasLeader reports whether any bid has been accepted.
func (s *LeadingBidSnapshot) HasLeader() bool {
	return s.LeadingBidID != ""
}

// Settlement is the financial outcome of a sold auction. Exactly one is
// created per auction; AuctionID is the idempotency key.
type Settlement struct {
	SettlementID string          `json:"settlement_id"`
	AuctionID    string          `json:"auction_id"`
	FinalPrice   decimal.Decimal `json:"final_price"`
	BuyerID      string          `json:"buyer_id"`
	SellerID     string          `json:"seller_id"`
	BuyerFee     decimal.Decimal `json:"buyer_fee"`
	SellerFee    decimal.Decimal `json:"seller_fee"`
	SettledAt    time.Time       `json:"settled_at"`
}
