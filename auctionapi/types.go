// Package auctionapi defines the JSON wire types for the auction engine's
// external interface. Money crosses the wire as float64 dollars and is
// converted to decimal at the boundary; the engine itself never does float
// arithmetic on money.
package auctionapi

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sss97133/nuke-sub017/core"
)

// Request type discriminators, matched by the server's dispatch switch.
const (
	TypeSubmitBid     = "submit_bid"
	TypeAuctionState  = "auction_state"
	TypeCreateAuction = "create_auction"
	TypeCancelAuction = "cancel_auction"
	TypeTick          = "tick"
	TypePing          = "ping"
)

// SubmitBidRequest submits one proxy bid.
type SubmitBidRequest struct {
	Type      string  `json:"type"`
	AuctionID string  `json:"auction_id"`
	BidderID  string  `json:"bidder_id"`
	ProxyMax  float64 `json:"proxy_max"`
}

// SubmitBidResponse reports the bidder-visible outcome. RejectionReason is
// a machine-readable code, empty on acceptance.
type SubmitBidResponse struct {
	Type            string  `json:"type"`
	Accepted        bool    `json:"accepted"`
	Leading         bool    `json:"leading"`
	BidID           string  `json:"bid_id,omitempty"`
	DisplayedPrice  float64 `json:"displayed_price"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	ProcessingTime  int64   `json:"processing_time_ms"`
}

// AuctionStateRequest polls public auction state. RequesterID is optional;
// when it matches the leading bidder the leader ID is returned unmasked.
type AuctionStateRequest struct {
	Type        string `json:"type"`
	AuctionID   string `json:"auction_id"`
	RequesterID string `json:"requester_id,omitempty"`
}

// AuctionStateResponse is the public status of one auction.
type AuctionStateResponse struct {
	Type            string    `json:"type"`
	AuctionID       string    `json:"auction_id"`
	State           string    `json:"state"`
	DisplayedPrice  float64   `json:"displayed_price"`
	ScheduledEnd    time.Time `json:"scheduled_end"`
	LeadingBidderID string    `json:"leading_bidder_id,omitempty"`
	BidCount        int       `json:"bid_count"`
}

// CreateAuctionRequest registers a new auction. Increment tiers are
// optional; the marketplace default schedule applies when omitted.
type CreateAuctionRequest struct {
	Type            string          `json:"type"`
	VehicleID       string          `json:"vehicle_id"`
	SellerID        string          `json:"seller_id"`
	Kind            string          `json:"kind"` // "fixed" or "anti_snipe"
	StartPrice      float64         `json:"start_price"`
	ReservePrice    *float64        `json:"reserve_price,omitempty"`
	ScheduledStart  time.Time       `json:"scheduled_start"`
	ScheduledEnd    time.Time       `json:"scheduled_end"`
	ExtensionWindow int64           `json:"extension_window_sec"`
	Increments      []IncrementTier `json:"increments,omitempty"`
}

// IncrementTier is one step of a custom increment schedule.
type IncrementTier struct {
	Ceiling float64 `json:"ceiling"`
	Step    float64 `json:"step"`
}

// CreateAuctionResponse returns the server-assigned auction ID.
type CreateAuctionResponse struct {
	Type      string `json:"type"`
	AuctionID string `json:"auction_id"`
}

// CancelAuctionRequest aborts an auction before it closes, voiding its
// bids.
type CancelAuctionRequest struct {
	Type        string `json:"type"`
	AuctionID   string `json:"auction_id"`
	RequestedBy string `json:"requested_by"`
}

// TickResult is one state change produced by a scheduler tick.
type TickResult struct {
	AuctionID string `json:"auction_id"`
	NewState  string `json:"new_state"`
}

// TickResponse lists the state changes from one tick pass.
type TickResponse struct {
	Type    string       `json:"type"`
	Results []TickResult `json:"results"`
}

// ErrorResponse carries a failure back to the client.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SettlementEvent is the record handed to the external payment
// collaborator. The engine computes numbers; it never moves money.
type SettlementEvent struct {
	AuctionID     string    `json:"auction_id"`
	FinalPrice    float64   `json:"final_price"`
	BuyerID       string    `json:"buyer_id"`
	SellerID      string    `json:"seller_id"`
	BuyerFee      float64   `json:"buyer_fee"`
	SellerFee     float64   `json:"seller_fee"`
	SettledAt     time.Time `json:"settled_at"`
	IntegrityHash string    `json:"integrity_hash,omitempty"`
}

// Money converts a wire amount to the engine's decimal representation,
// rounded to whole cents.
func Money(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(2)
}

// WireAmount converts a decimal back to a wire float64.
func WireAmount(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// MaskBidderID hides a bidder's identity for non-owners while leaving
// enough of a prefix to correlate across polls of the same auction.
func MaskBidderID(bidderID string) string {
	if bidderID == "" {
		return ""
	}
	if len(bidderID) <= 4 {
		return strings.Repeat("*", len(bidderID))
	}
	return bidderID[:4] + strings.Repeat("*", 4)
}

// SettlementEventFrom flattens a core settlement for the payment
// collaborator.
func SettlementEventFrom(s core.Settlement, integrityHash string) SettlementEvent {
	return SettlementEvent{
		AuctionID:     s.AuctionID,
		FinalPrice:    WireAmount(s.FinalPrice),
		BuyerID:       s.BuyerID,
		SellerID:      s.SellerID,
		BuyerFee:      WireAmount(s.BuyerFee),
		SellerFee:     WireAmount(s.SellerFee),
		SettledAt:     s.SettledAt,
		IntegrityHash: integrityHash,
	}
}
