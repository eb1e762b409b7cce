package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sss97133/nuke-sub017/core"
	"github.com/sss97133/nuke-sub017/events"
	"github.com/sss97133/nuke-sub017/ledger"
)

// submitMaxRetries bounds internal retries after a ledger sequence
// conflict before the failure surfaces to the bidder.
const submitMaxRetries = 3

// Gateway is the single serialization point for bid submission.
// Validation, evaluation, the ledger append, and the clock extension all
// run inside the auction store's update lock, which orders every
// submission against lifecycle transitions: a bid either lands before a
// close replays the ledger or is rejected against the terminal state,
// never both. The ledger's compare-and-append still guards the log
// itself, which may be shared with gateways in other processes.
type Gateway struct {
	auctions *AuctionStore
	ledger   ledger.Ledger
	events   events.Publisher
	now      func() time.Time
}

func NewGateway(auctions *AuctionStore, led ledger.Ledger, pub events.Publisher) *Gateway {
	return &Gateway{
		auctions: auctions,
		ledger:   led,
		events:   pub,
		now:      time.Now,
	}
}

// SetNow overrides the gateway's time source, for tests.
func (g *Gateway) SetNow(now func() time.Time) { g.now = now }

// SubmitResult is the bidder-visible outcome of one submission.
type SubmitResult struct {
	BidID           string
	Accepted        bool
	Leading         bool
	DisplayedPrice  decimal.Decimal
	RejectionReason string
}

// Submit validates and records one bid. Validation failures return a
// *ValidationError and touch nothing; bids that reach resolver evaluation
// are appended to the ledger (accepted or not) with a server-assigned
// sequence number and timestamp. Sequence conflicts from gateways in
// other processes are retried internally against the freshly appended
// state, invisible to the bidder except as latency.
func (g *Gateway) Submit(ctx context.Context, auctionID, bidderID string, proxyMax decimal.Decimal) (*SubmitResult, error) {
	if !proxyMax.IsPositive() {
		return nil, &ValidationError{Reason: ReasonInvalidAmount}
	}

	var (
		result   *SubmitResult
		bid      core.Bid
		outcome  core.BidOutcome
		extended bool
	)
	updated, err := g.auctions.Update(auctionID, func(a *core.Auction) error {
		if a.State != core.StateActive {
			return &ValidationError{Reason: ReasonAuctionNotActive}
		}
		if bidderID == a.SellerID {
			return &ValidationError{Reason: ReasonBidderIsSeller}
		}

		submittedAt := g.now()
		if !submittedAt.Before(a.ScheduledEnd) {
			// Past scheduled_end but not yet ticked into a terminal state.
			return &ValidationError{Reason: ReasonAuctionNotActive}
		}

		for attempt := 0; attempt <= submitMaxRetries; attempt++ {
			bids, err := g.ledger.ReadSince(ctx, auctionID, 0)
			if err != nil {
				return fmt.Errorf("failed to read ledger for auction %s: %w", auctionID, err)
			}
			snap := core.Replay(a, bids)
			outcome = core.Evaluate(a, snap, bidderID, proxyMax)

			bid = core.Bid{
				ID:              uuid.NewString(),
				AuctionID:       auctionID,
				BidderID:        bidderID,
				ProxyMax:        proxyMax,
				Displayed:       outcome.DisplayedPrice,
				IsProxy:         true,
				SubmittedAt:     submittedAt,
				Accepted:        outcome.Accepted,
				RejectionReason: outcome.RejectionReason,
			}

			seq, err := g.ledger.AppendIf(ctx, bid, snap.ComputedAtSeq)
			if errors.Is(err, ledger.ErrSequenceConflict) {
				log.Printf("INFO: Sequence conflict on auction %s (attempt %d), re-evaluating", auctionID, attempt+1)
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to append bid for auction %s: %w", auctionID, err)
			}

			if outcome.Accepted {
				extended = ApplyExtension(a, seq, submittedAt)
			}
			result = &SubmitResult{
				BidID:           bid.ID,
				Accepted:        outcome.Accepted,
				Leading:         outcome.Leading,
				DisplayedPrice:  outcome.DisplayedPrice,
				RejectionReason: outcome.RejectionReason,
			}
			return nil
		}

		log.Printf("ERROR: Gave up on auction %s after %d sequence conflicts", auctionID, submitMaxRetries+1)
		return ErrTransient
	})
	if errors.Is(err, ErrAuctionNotFound) {
		return nil, &ValidationError{Reason: ReasonAuctionNotFound}
	}
	if err != nil {
		return nil, err
	}

	if outcome.Accepted {
		g.publishAccepted(ctx, auctionID, bid, outcome, extended, updated)
	}
	return result, nil
}

// publishAccepted emits the notification events for an accepted bid,
// outside the store lock. Publishing is best effort: a broker failure
// never unwinds an appended bid.
func (g *Gateway) publishAccepted(ctx context.Context, auctionID string, bid core.Bid, outcome core.BidOutcome, extended bool, a *core.Auction) {
	g.publish(ctx, events.Event{
		Type:           events.TypeBidAccepted,
		AuctionID:      auctionID,
		BidID:          bid.ID,
		BidderID:       bid.BidderID,
		DisplayedPrice: &outcome.DisplayedPrice,
		OccurredAt:     bid.SubmittedAt,
	})
	if outcome.OutbidBidderID != "" {
		g.publish(ctx, events.Event{
			Type:           events.TypeBidOutbid,
			AuctionID:      auctionID,
			BidderID:       outcome.OutbidBidderID,
			DisplayedPrice: &outcome.DisplayedPrice,
			OccurredAt:     bid.SubmittedAt,
		})
	}
	if extended {
		g.publish(ctx, events.Event{
			Type:         events.TypeAuctionExtended,
			AuctionID:    auctionID,
			ScheduledEnd: &a.ScheduledEnd,
			OccurredAt:   bid.SubmittedAt,
		})
	}
}

func (g *Gateway) publish(ctx context.Context, evt events.Event) {
	if err := g.events.Publish(ctx, evt); err != nil {
		log.Printf("ERROR: Failed to publish %s event for auction %s: %v", evt.Type, evt.AuctionID, err)
	}
}

// Snapshot re-derives the current leading-bid snapshot for an auction from
// the ledger. Safe to call concurrently with submissions; the result may
// trail the newest append by a moment, which status reads tolerate.
func (g *Gateway) Snapshot(ctx context.Context, auctionID string) (*core.LeadingBidSnapshot, error) {
	a, ok := g.auctions.Get(auctionID)
	if !ok {
		return nil, ErrAuctionNotFound
	}
	bids, err := g.ledger.ReadSince(ctx, auctionID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger for auction %s: %w", auctionID, err)
	}
	return core.Replay(a, bids), nil
}
