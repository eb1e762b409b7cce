package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sss97133/nuke-sub017/auctionapi"
	"github.com/sss97133/nuke-sub017/core"
	"github.com/sss97133/nuke-sub017/events"
	"github.com/sss97133/nuke-sub017/ledger"
)

// Controller drives the auction state machine:
//
//	scheduled → active → ending → {sold | reserve_not_met | expired | cancelled}
//
// Transitions are triggered by recurring ticks from an external scheduler
// (or the daemon's own tick loop). Every tick is idempotent and
// re-entrant: re-evaluating a terminal auction is a no-op and settlement
// never double-fires, so redundant or racing ticks are harmless.
type Controller struct {
	auctions    *AuctionStore
	ledger      ledger.Ledger
	settlements *SettlementStore
	events      events.Publisher
	fees        core.FeePolicy
	now         func() time.Time
}

func NewController(auctions *AuctionStore, led ledger.Ledger, settlements *SettlementStore, pub events.Publisher, fees core.FeePolicy) *Controller {
	return &Controller{
		auctions:    auctions,
		ledger:      led,
		settlements: settlements,
		events:      pub,
		fees:        fees,
		now:         time.Now,
	}
}

// SetNow overrides the controller's time source, for tests.
func (c *Controller) SetNow(now func() time.Time) { c.now = now }

// TickResult reports a state change produced by a tick.
type TickResult struct {
	AuctionID string            `json:"auction_id"`
	NewState  core.AuctionState `json:"new_state"`
}

// Tick advances one auction as far as the wall clock allows. Returns nil
// when nothing changed.
func (c *Controller) Tick(ctx context.Context, auctionID string) (*TickResult, error) {
	a, ok := c.auctions.Get(auctionID)
	if !ok {
		return nil, ErrAuctionNotFound
	}
	if a.State.Terminal() {
		return nil, nil
	}

	now := c.now()
	var result *TickResult

	if a.State == core.StateScheduled && !now.Before(a.ScheduledStart) {
		updated, err := c.transition(auctionID, core.StateScheduled, core.StateActive)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			// Another tick got there first; re-read and continue below.
			a, _ = c.auctions.Get(auctionID)
		} else {
			a = updated
			result = &TickResult{AuctionID: auctionID, NewState: a.State}
			log.Printf("INFO: Auction %s is now active", auctionID)
		}
	}

	if a == nil || a.State != core.StateActive {
		return result, nil
	}
	if Remaining(a, now) > 0 {
		return result, nil
	}

	closed, err := c.close(ctx, auctionID, now)
	if err != nil {
		return nil, err
	}
	if closed != nil {
		return closed, nil
	}
	return result, nil
}

// close takes an active auction through ending to its terminal state and
// settles it when sold. Returns nil when another tick already closed it.
func (c *Controller) close(ctx context.Context, auctionID string, now time.Time) (*TickResult, error) {
	var snap *core.LeadingBidSnapshot
	var terminal core.AuctionState
	updated, err := c.auctions.Update(auctionID, func(a *core.Auction) error {
		if a.State != core.StateActive {
			return errAlreadyClosed
		}
		// Submissions extend the clock under this same lock, so the end
		// time here is current.
		if Remaining(a, now) > 0 {
			return errAlreadyClosed
		}

		// Read under the lock: a bid appended before this point is part of
		// the replay, one after it sees the terminal state and is rejected.
		bids, err := c.ledger.ReadSince(ctx, auctionID, 0)
		if err != nil {
			return fmt.Errorf("failed to read ledger for auction %s: %w", auctionID, err)
		}

		a.State = core.StateEnding
		snap = core.Replay(a, bids)
		switch {
		case !snap.HasLeader():
			terminal = core.StateExpired
		case a.ReserveMet(snap.DisplayedPrice):
			terminal = core.StateSold
			a.WinningBidID = snap.LeadingBidID
		default:
			terminal = core.StateReserveNotMet
		}
		a.State = terminal
		return nil
	})
	if err == errAlreadyClosed {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	log.Printf("INFO: Auction %s closed: %s", auctionID, terminal)

	if terminal == core.StateSold {
		c.settle(ctx, updated, snap, now)
	}
	c.publish(ctx, events.Event{
		Type:       events.TypeAuctionClosed,
		AuctionID:  auctionID,
		NewState:   terminal,
		OccurredAt: now,
	})
	return &TickResult{AuctionID: auctionID, NewState: terminal}, nil
}

var errAlreadyClosed = fmt.Errorf("auction already closed")

// transition moves an auction from one state to the next. Returns nil when
// the auction was no longer in the from state, which a re-entrant tick
// treats as "someone else did it".
func (c *Controller) transition(auctionID string, from, to core.AuctionState) (*core.Auction, error) {
	moved := true
	updated, err := c.auctions.Update(auctionID, func(a *core.Auction) error {
		if a.State != from {
			moved = false
			return nil
		}
		a.State = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, nil
	}
	return updated, nil
}

// settle computes and records the settlement exactly once. A second
// attempt for the same auction is detected by the idempotency key and
// silently ignored.
func (c *Controller) settle(ctx context.Context, a *core.Auction, snap *core.LeadingBidSnapshot, now time.Time) {
	settlement := core.ComputeSettlement(c.fees, a, snap, uuid.NewString(), now)
	if !c.settlements.PutOnce(settlement) {
		log.Printf("INFO: Settlement for auction %s already exists, ignoring", a.ID)
		return
	}

	headHash, err := c.ledger.HeadHash(ctx, a.ID)
	if err != nil {
		log.Printf("ERROR: Failed to read ledger head for auction %s: %v", a.ID, err)
	}
	payload := auctionapi.SettlementEventFrom(settlement, core.ComputeSettlementHash(settlement, headHash))
	c.publish(ctx, events.Event{
		Type:       events.TypeSettlementCreated,
		AuctionID:  a.ID,
		Settlement: &payload,
		OccurredAt: now,
	})
	log.Printf("INFO: Settlement created for auction %s: final=%s seller_fee=%s buyer_fee=%s",
		a.ID, settlement.FinalPrice, settlement.SellerFee, settlement.BuyerFee)
}

// TickAllDue advances every non-terminal auction and reports the state
// changes. Safe to run redundantly and concurrently.
func (c *Controller) TickAllDue(ctx context.Context) ([]TickResult, error) {
	results := make([]TickResult, 0)
	for _, a := range c.auctions.List() {
		if a.State.Terminal() {
			continue
		}
		res, err := c.Tick(ctx, a.ID)
		if err != nil {
			log.Printf("ERROR: Tick failed for auction %s: %v", a.ID, err)
			continue
		}
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, nil
}

// Cancel aborts an auction before it reaches ending, voiding all placed
// bids as a batch. Cancelling an already cancelled auction is a no-op;
// cancelling one that closed any other way fails.
func (c *Controller) Cancel(ctx context.Context, auctionID, requestedBy string) error {
	already := false
	_, err := c.auctions.Update(auctionID, func(a *core.Auction) error {
		switch {
		case a.State == core.StateCancelled:
			already = true
			return nil
		case a.State.Terminal() || a.State == core.StateEnding:
			return ErrNotCancellable
		}
		a.State = core.StateCancelled
		return nil
	})
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	now := c.now()
	log.Printf("INFO: Auction %s cancelled by %s, all bids voided", auctionID, requestedBy)
	c.publish(ctx, events.Event{
		Type:       events.TypeAuctionClosed,
		AuctionID:  auctionID,
		NewState:   core.StateCancelled,
		OccurredAt: now,
	})
	return nil
}

// StartTickLoop runs TickAllDue on a fixed interval until ctx is
// cancelled. The daemon uses this as its built-in scheduler; an external
// scheduler calling the tick endpoint on top of it is harmless because
// ticks are idempotent.
func (c *Controller) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.TickAllDue(ctx); err != nil {
					log.Printf("ERROR: Tick loop failed: %v", err)
				}
			}
		}
	}()
}

func (c *Controller) publish(ctx context.Context, evt events.Event) {
	if err := c.events.Publish(ctx, evt); err != nil {
		log.Printf("ERROR: Failed to publish %s event for auction %s: %v", evt.Type, evt.AuctionID, err)
	}
}
