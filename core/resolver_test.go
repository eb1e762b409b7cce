package core

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func testAuction(startPrice int64, step int64) *Auction {
	return &Auction{
		ID:         "auction-1",
		VehicleID:  "vehicle-1",
		SellerID:   "seller-1",
		Kind:       KindAntiSnipe,
		StartPrice: decimal.NewFromInt(startPrice),
		Increments: FlatIncrementSchedule(decimal.NewFromInt(step)),
		State:      StateActive,
	}
}

func bidAt(seq uint64, bidder string, proxyMax int64) Bid {
	return Bid{
		ID:        "bid-" + bidder,
		AuctionID: "auction-1",
		BidderID:  bidder,
		ProxyMax:  decimal.NewFromInt(proxyMax),
		Sequence:  seq,
	}
}

func TestEvaluate_FirstBidLeadsAtStartPrice(t *testing.T) {
	a := testAuction(10_000, 500)
	snap := EmptySnapshot(a)

	outcome := Evaluate(a, snap, "bidder_a", decimal.NewFromInt(15_000))

	check.True(t, outcome.Accepted)
	check.True(t, outcome.Leading)
	check.Equal(t, "10000.00", outcome.DisplayedPrice.StringFixed(2))
}

func TestEvaluate_FirstBidBelowStartPriceRejected(t *testing.T) {
	a := testAuction(10_000, 500)
	snap := EmptySnapshot(a)

	outcome := Evaluate(a, snap, "bidder_a", decimal.NewFromInt(9_999))

	check.False(t, outcome.Accepted)
	check.Equal(t, ReasonBelowMinimum, outcome.RejectionReason)
	// Rejection leaves the displayed price untouched.
	check.Equal(t, "10000.00", outcome.DisplayedPrice.StringFixed(2))
}

// The worked proxy-bidding scenario: A bids 15k and leads at the start
// price; B's 12k pushes the price to 12.5k without taking the lead; C ties
// A's 15k and loses the tie to the earlier sequence, pushing the price to
// A's max.
func TestReplay_ProxyEscalationScenario(t *testing.T) {
	a := testAuction(10_000, 500)

	snap, outcome := ApplyBid(a, EmptySnapshot(a), bidAt(1, "bidder_a", 15_000))
	check.True(t, outcome.Leading)
	check.Equal(t, "bidder_a", snap.LeadingBidderID)
	check.Equal(t, "10000.00", snap.DisplayedPrice.StringFixed(2))

	snap, outcome = ApplyBid(a, snap, bidAt(2, "bidder_b", 12_000))
	check.True(t, outcome.Accepted)
	check.False(t, outcome.Leading)
	check.Equal(t, "bidder_a", snap.LeadingBidderID)
	check.Equal(t, "12500.00", snap.DisplayedPrice.StringFixed(2))

	snap, outcome = ApplyBid(a, snap, bidAt(3, "bidder_c", 15_000))
	check.True(t, outcome.Accepted)
	check.False(t, outcome.Leading)
	check.Equal(t, "bidder_a", snap.LeadingBidderID)
	check.Equal(t, "15000.00", snap.DisplayedPrice.StringFixed(2))

	check.Equal(t, uint64(3), snap.ComputedAtSeq)
	check.Equal(t, 3, snap.AcceptedBidCount)
}

func TestEvaluate_OvertakingBidTakesLead(t *testing.T) {
	a := testAuction(10_000, 500)
	snap, _ := ApplyBid(a, EmptySnapshot(a), bidAt(1, "bidder_a", 12_000))

	outcome := Evaluate(a, snap, "bidder_b", decimal.NewFromInt(20_000))

	check.True(t, outcome.Accepted)
	check.True(t, outcome.Leading)
	check.Equal(t, "bidder_a", outcome.OutbidBidderID)
	// One step above the displaced proxy max.
	check.Equal(t, "12500.00", outcome.DisplayedPrice.StringFixed(2))
}

func TestEvaluate_OvertakeCappedAtNewProxyMax(t *testing.T) {
	a := testAuction(10_000, 500)
	snap, _ := ApplyBid(a, EmptySnapshot(a), bidAt(1, "bidder_a", 12_000))

	// 12,200 beats the incumbent proxy but cannot reach 12,000+500.
	outcome := Evaluate(a, snap, "bidder_b", decimal.NewFromInt(12_200))

	check.True(t, outcome.Accepted)
	check.True(t, outcome.Leading)
	check.Equal(t, "12200.00", outcome.DisplayedPrice.StringFixed(2))
}

func TestEvaluate_BelowMinimumIncrementRejected(t *testing.T) {
	a := testAuction(10_000, 500)
	snap, _ := ApplyBid(a, EmptySnapshot(a), bidAt(1, "bidder_a", 15_000))

	// Displayed is 10,000, so the next bid must reach 10,500.
	outcome := Evaluate(a, snap, "bidder_b", decimal.NewFromInt(10_200))

	check.False(t, outcome.Accepted)
	check.Equal(t, ReasonBelowMinimum, outcome.RejectionReason)
}

func TestEvaluate_LeaderMayRaiseOwnProxy(t *testing.T) {
	a := testAuction(10_000, 500)
	snap, _ := ApplyBid(a, EmptySnapshot(a), bidAt(1, "bidder_a", 15_000))

	outcome := Evaluate(a, snap, "bidder_a", decimal.NewFromInt(18_000))

	check.True(t, outcome.Accepted)
	check.True(t, outcome.Leading)
	// Raising a proxy is private: the public price does not move.
	check.Equal(t, "10000.00", outcome.DisplayedPrice.StringFixed(2))
	check.Equal(t, "", outcome.OutbidBidderID)
}

func TestEvaluate_LeaderCannotLowerProxy(t *testing.T) {
	a := testAuction(10_000, 500)
	snap, _ := ApplyBid(a, EmptySnapshot(a), bidAt(1, "bidder_a", 15_000))

	outcome := Evaluate(a, snap, "bidder_a", decimal.NewFromInt(12_000))

	check.False(t, outcome.Accepted)
	check.Equal(t, ReasonCannotLowerProxy, outcome.RejectionReason)

	// An equal resubmission is also a lowering attempt.
	outcome = Evaluate(a, snap, "bidder_a", decimal.NewFromInt(15_000))
	check.False(t, outcome.Accepted)
	check.Equal(t, ReasonCannotLowerProxy, outcome.RejectionReason)
}

func TestReplay_Deterministic(t *testing.T) {
	a := testAuction(10_000, 500)
	bids := []Bid{
		bidAt(1, "bidder_a", 15_000),
		bidAt(2, "bidder_b", 12_000),
		bidAt(3, "bidder_c", 15_000),
		bidAt(4, "bidder_b", 11_000), // below minimum by now, rejected
		bidAt(5, "bidder_d", 22_000),
	}

	first := Replay(a, bids)
	second := Replay(a, bids)

	check.Equal(t, first.LeadingBidderID, second.LeadingBidderID)
	check.Equal(t, first.LeadingBidID, second.LeadingBidID)
	check.Equal(t, first.DisplayedPrice.StringFixed(2), second.DisplayedPrice.StringFixed(2))
	check.Equal(t, first.ComputedAtSeq, second.ComputedAtSeq)
	check.Equal(t, first.AcceptedBidCount, second.AcceptedBidCount)
	check.Equal(t, first.BidAttemptCount, second.BidAttemptCount)

	// Folding incrementally matches replaying from scratch.
	snap := EmptySnapshot(a)
	for _, bid := range bids {
		snap, _ = ApplyBid(a, snap, bid)
	}
	check.Equal(t, first.LeadingBidderID, snap.LeadingBidderID)
	check.Equal(t, first.DisplayedPrice.StringFixed(2), snap.DisplayedPrice.StringFixed(2))
}

func TestReplay_RejectedBidsCountedButIgnored(t *testing.T) {
	a := testAuction(10_000, 500)
	bids := []Bid{
		bidAt(1, "bidder_a", 15_000),
		bidAt(2, "bidder_b", 3_000), // below minimum
	}

	snap := Replay(a, bids)

	assert.NotNil(t, snap)
	check.Equal(t, "bidder_a", snap.LeadingBidderID)
	check.Equal(t, 1, snap.AcceptedBidCount)
	check.Equal(t, 2, snap.BidAttemptCount)
	check.Equal(t, uint64(2), snap.ComputedAtSeq)
}

func TestReplay_DisplayedPriceNeverDecreases(t *testing.T) {
	a := testAuction(1_000, 100)
	proxies := []int64{1_000, 5_000, 2_000, 5_000, 4_999, 800, 7_500, 7_600, 6_000, 20_000}

	snap := EmptySnapshot(a)
	prev := snap.DisplayedPrice
	for i, max := range proxies {
		bid := bidAt(uint64(i+1), "bidder-"+string(rune('a'+i)), max)
		snap, _ = ApplyBid(a, snap, bid)
		check.True(t, snap.DisplayedPrice.GreaterThanOrEqual(prev))
		prev = snap.DisplayedPrice
	}
}

func TestReplay_NoBelowMinimumBidEverLeads(t *testing.T) {
	a := testAuction(10_000, 500)
	snap := EmptySnapshot(a)

	attempts := []struct {
		bidder string
		max    int64
	}{
		{"bidder_a", 9_000},  // below start
		{"bidder_b", 10_000}, // leads at start
		{"bidder_c", 10_250}, // below displayed+step
		{"bidder_d", 10_500}, // overtakes
	}
	for i, at := range attempts {
		var outcome BidOutcome
		snap, outcome = ApplyBid(a, snap, bidAt(uint64(i+1), at.bidder, at.max))
		if outcome.Leading {
			min := decimal.NewFromInt(at.max)
			check.True(t, min.GreaterThanOrEqual(a.StartPrice))
		}
	}
	check.Equal(t, "bidder_d", snap.LeadingBidderID)
	check.Equal(t, "10500.00", snap.DisplayedPrice.StringFixed(2))
}

func TestEmptySnapshot_NoLeader(t *testing.T) {
	a := testAuction(10_000, 500)
	snap := EmptySnapshot(a)

	check.False(t, snap.HasLeader())
	check.Equal(t, "10000.00", snap.DisplayedPrice.StringFixed(2))
	check.Equal(t, uint64(0), snap.ComputedAtSeq)
}

func TestMinimumProxy_StepFollowsSchedule(t *testing.T) {
	a := testAuction(500, 0)
	a.Increments = DefaultIncrementSchedule()

	// No leader yet: the minimum is the start price.
	check.Equal(t, "500.00", MinimumProxy(a, EmptySnapshot(a)).StringFixed(2))

	snap, _ := ApplyBid(a, EmptySnapshot(a), bidAt(1, "bidder_a", 600))
	// Displayed 500 is in the $25 band.
	check.Equal(t, "525.00", MinimumProxy(a, snap).StringFixed(2))
}

func TestAuction_ReserveMet(t *testing.T) {
	a := testAuction(10_000, 500)
	check.True(t, a.ReserveMet(decimal.NewFromInt(1))) // no reserve

	reserve := decimal.NewFromInt(20_000)
	a.ReservePrice = &reserve
	check.False(t, a.ReserveMet(decimal.NewFromInt(18_000)))
	check.True(t, a.ReserveMet(decimal.NewFromInt(20_000)))
}

func TestAuctionState_Terminal(t *testing.T) {
	check.False(t, StateScheduled.Terminal())
	check.False(t, StateActive.Terminal())
	check.False(t, StateEnding.Terminal())
	check.True(t, StateSold.Terminal())
	check.True(t, StateReserveNotMet.Terminal())
	check.True(t, StateExpired.Terminal())
	check.True(t, StateCancelled.Terminal())
}

func TestBid_ServerAssignedFieldsOnly(t *testing.T) {
	// Replay only consults proxy max, bidder and sequence; a lying
	// client-side timestamp changes nothing.
	a := testAuction(10_000, 500)
	honest := bidAt(1, "bidder_a", 15_000)
	honest.SubmittedAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lying := honest
	lying.SubmittedAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)

	first := Replay(a, []Bid{honest})
	second := Replay(a, []Bid{lying})

	check.Equal(t, first.LeadingBidderID, second.LeadingBidderID)
	check.Equal(t, first.DisplayedPrice.StringFixed(2), second.DisplayedPrice.StringFixed(2))
}
