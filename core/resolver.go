package core

import (
	"github.com/shopspring/decimal"
)

// Rejection reason codes assigned by the resolver.
const (
	ReasonBelowMinimum     = "below_minimum"
	ReasonCannotLowerProxy = "cannot_lower_proxy"
)

// BidOutcome is the effect of evaluating one bid against a snapshot.
type BidOutcome struct {
	Accepted        bool
	Leading         bool
	RejectionReason string

	// DisplayedPrice is the public price after the bid is applied
	// (unchanged when the bid is rejected).
	DisplayedPrice decimal.Decimal

	// OutbidBidderID identifies the previous leader displaced by this bid,
	// empty when the lead did not change hands.
	OutbidBidderID string
}

// EmptySnapshot returns the snapshot of an auction with no bids: no leader,
// displayed price at the start price.
func EmptySnapshot(a *Auction) *LeadingBidSnapshot {
	return &LeadingBidSnapshot{
		AuctionID:       a.ID,
		DisplayedPrice:  a.StartPrice.Round(monetaryPrecision),
		LeadingProxyMax: decimal.Zero,
	}
}

// MinimumProxy returns the smallest proxy max that the next bid from a
// non-leading bidder must carry: the start price for the first bid, the
// displayed price plus one increment step afterwards.
func MinimumProxy(a *Auction, snap *LeadingBidSnapshot) decimal.Decimal {
	if snap == nil || !snap.HasLeader() {
		return a.StartPrice.Round(monetaryPrecision)
	}
	return snap.DisplayedPrice.Add(a.Increments.StepFor(snap.DisplayedPrice)).Round(monetaryPrecision)
}

// Evaluate computes the outcome of a bid with the given proxy max against
// the current snapshot. It is a pure function: given identical snapshots
// and inputs it always returns identical outcomes, which is what makes the
// ledger replayable.
func Evaluate(a *Auction, snap *LeadingBidSnapshot, bidderID string, proxyMax decimal.Decimal) BidOutcome {
	proxyMax = proxyMax.Round(monetaryPrecision)

	// First bid: must reach the start price.
	if !snap.HasLeader() {
		if proxyMax.LessThan(a.StartPrice.Round(monetaryPrecision)) {
			return rejected(snap, ReasonBelowMinimum)
		}
		return BidOutcome{
			Accepted:       true,
			Leading:        true,
			DisplayedPrice: a.StartPrice.Round(monetaryPrecision),
		}
	}

	// Self-outbid guard: the leader may only raise their own proxy.
	if bidderID == snap.LeadingBidderID {
		if proxyMax.LessThanOrEqual(snap.LeadingProxyMax) {
			return rejected(snap, ReasonCannotLowerProxy)
		}
		return BidOutcome{
			Accepted:       true,
			Leading:        true,
			DisplayedPrice: snap.DisplayedPrice,
		}
	}

	if proxyMax.LessThan(MinimumProxy(a, snap)) {
		return rejected(snap, ReasonBelowMinimum)
	}

	step := a.Increments.StepFor(snap.DisplayedPrice)

	// Overtaking bid: strictly higher proxy takes the lead; the price
	// settles one step above the displaced proxy, capped at the new max.
	if proxyMax.GreaterThan(snap.LeadingProxyMax) {
		return BidOutcome{
			Accepted:       true,
			Leading:        true,
			DisplayedPrice: decimal.Min(proxyMax, snap.LeadingProxyMax.Add(step)),
			OutbidBidderID: snap.LeadingBidderID,
		}
	}

	// Non-overtaking bid, including exact ties: the incumbent keeps the
	// lead (earliest sequence wins) and the price rises against them.
	return BidOutcome{
		Accepted:       true,
		Leading:        false,
		DisplayedPrice: decimal.Min(snap.LeadingProxyMax, proxyMax.Add(step)),
	}
}

func rejected(snap *LeadingBidSnapshot, reason string) BidOutcome {
	return BidOutcome{
		RejectionReason: reason,
		DisplayedPrice:  snap.DisplayedPrice,
	}
}

// ApplyBid folds one ledger entry into a snapshot, re-deriving the outcome
// from the entry's proxy max. The entry's stored accepted/displayed fields
// are deliberately ignored so that replay never trusts cached results.
func ApplyBid(a *Auction, snap *LeadingBidSnapshot, bid Bid) (*LeadingBidSnapshot, BidOutcome) {
	outcome := Evaluate(a, snap, bid.BidderID, bid.ProxyMax)

	next := *snap
	next.ComputedAtSeq = bid.Sequence
	next.BidAttemptCount++
	next.DisplayedPrice = outcome.DisplayedPrice
	if outcome.Accepted {
		next.AcceptedBidCount++
	}
	if outcome.Leading {
		next.LeadingBidID = bid.ID
		next.LeadingBidderID = bid.BidderID
		next.LeadingProxyMax = bid.ProxyMax.Round(monetaryPrecision)
	}
	return &next, outcome
}

// Replay derives the leading-bid snapshot from an ordered ledger prefix.
// Identical prefixes always yield identical snapshots.
func Replay(a *Auction, bids []Bid) *LeadingBidSnapshot {
	snap := EmptySnapshot(a)
	for _, bid := range bids {
		snap, _ = ApplyBid(a, snap, bid)
	}
	return snap
}
