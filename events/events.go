// Package events publishes engine notifications for external consumers:
// bidder notifications, auction lifecycle changes, and the settlement
// handoff to the payment collaborator. The engine never waits on a
// consumer; publishing is fire-and-forget from its point of view.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sss97133/nuke-sub017/auctionapi"
	"github.com/sss97133/nuke-sub017/core"
)

// Type identifies an event kind. It doubles as the AMQP routing key.
type Type string

const (
	TypeBidAccepted       Type = "bid_accepted"
	TypeBidOutbid         Type = "bid_outbid"
	TypeAuctionExtended   Type = "auction_extended"
	TypeAuctionClosed     Type = "auction_closed"
	TypeSettlementCreated Type = "settlement_created"
)

// Event is one engine notification. Only the fields relevant to the event
// type are populated.
type Event struct {
	Type      Type   `json:"type"`
	AuctionID string `json:"auction_id"`

	BidID    string `json:"bid_id,omitempty"`
	BidderID string `json:"bidder_id,omitempty"`

	DisplayedPrice *decimal.Decimal `json:"displayed_price,omitempty"`
	ScheduledEnd   *time.Time       `json:"scheduled_end,omitempty"`

	NewState core.AuctionState `json:"new_state,omitempty"`

	// Settlement is the flattened handoff record the payment collaborator
	// consumes, integrity hash included.
	Settlement *auctionapi.SettlementEvent `json:"settlement,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events to external consumers.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
