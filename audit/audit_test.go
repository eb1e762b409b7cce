package audit

import (
	"context"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/sss97133/nuke-sub017/core"
	"github.com/sss97133/nuke-sub017/ledger"
)

func auditAuction() *core.Auction {
	return &core.Auction{
		ID:         "auction-1",
		VehicleID:  "vehicle-1",
		SellerID:   "seller-1",
		Kind:       core.KindAntiSnipe,
		StartPrice: decimal.NewFromInt(10_000),
		Increments: core.FlatIncrementSchedule(decimal.NewFromInt(500)),
		State:      core.StateSold,
	}
}

// auditRecords appends the given bids through a ledger so the records carry
// real chain hashes, then returns them.
func auditRecords(t *testing.T, a *core.Auction, bids ...core.Bid) []ledger.Record {
	t.Helper()
	l := ledger.NewMemoryLedger()
	for _, b := range bids {
		_, err := l.Append(context.Background(), b)
		assert.NoError(t, err)
	}
	return l.Records(a.ID)
}

func acceptedBid(bidder string, proxyMax int64) core.Bid {
	return core.Bid{
		ID:        "bid-" + bidder,
		AuctionID: "auction-1",
		BidderID:  bidder,
		ProxyMax:  decimal.NewFromInt(proxyMax),
		Accepted:  true,
	}
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestVerifyAuction_ReportedOutcomeMatchesReplay(t *testing.T) {
	a := auditAuction()
	records := auditRecords(t, a,
		acceptedBid("bidder_a", 15_000),
		acceptedBid("bidder_b", 12_000),
	)

	result, err := VerifyAuction(&Input{
		Auction:          a,
		Records:          records,
		ReportedWinnerID: "bidder_a",
		ReportedPrice:    price("12500"),
	})
	assert.NoError(t, err)

	check.True(t, result.IsValid())
	check.Equal(t, 0, len(result.Details))
}

func TestVerifyAuction_WrongWinnerFlagged(t *testing.T) {
	a := auditAuction()
	records := auditRecords(t, a, acceptedBid("bidder_a", 15_000))

	result, err := VerifyAuction(&Input{
		Auction:          a,
		Records:          records,
		ReportedWinnerID: "bidder_b",
		ReportedPrice:    price("10000"),
	})
	assert.NoError(t, err)

	check.False(t, result.IsValid())
	check.False(t, result.WinnerValid)
	check.True(t, result.PriceValid)
}

func TestVerifyAuction_WrongPriceFlagged(t *testing.T) {
	a := auditAuction()
	records := auditRecords(t, a, acceptedBid("bidder_a", 15_000))

	result, err := VerifyAuction(&Input{
		Auction:          a,
		Records:          records,
		ReportedWinnerID: "bidder_a",
		ReportedPrice:    price("15000"),
	})
	assert.NoError(t, err)

	check.False(t, result.PriceValid)
	check.True(t, result.WinnerValid)
}

func TestVerifyAuction_NoBidsNoWinner(t *testing.T) {
	a := auditAuction()
	a.State = core.StateExpired

	result, err := VerifyAuction(&Input{
		Auction:          a,
		ReportedWinnerID: "",
		ReportedPrice:    nil,
	})
	assert.NoError(t, err)

	check.True(t, result.IsValid())
}

func TestVerifyAuction_MissingPriceWithLeaderFlagged(t *testing.T) {
	a := auditAuction()
	records := auditRecords(t, a, acceptedBid("bidder_a", 15_000))

	result, err := VerifyAuction(&Input{
		Auction:          a,
		Records:          records,
		ReportedWinnerID: "bidder_a",
		ReportedPrice:    nil,
	})
	assert.NoError(t, err)

	check.False(t, result.PriceValid)
}

func TestVerifyAuction_TamperedRecordBreaksChain(t *testing.T) {
	a := auditAuction()
	records := auditRecords(t, a,
		acceptedBid("bidder_a", 15_000),
		acceptedBid("bidder_b", 12_000),
	)
	// Rewrite history: lower the first bidder's proxy max without
	// recomputing hashes.
	records[0].Bid.ProxyMax = decimal.NewFromInt(11_000)

	result, err := VerifyAuction(&Input{
		Auction:          a,
		Records:          records,
		ReportedWinnerID: "bidder_a",
		ReportedPrice:    price("12500"),
	})
	assert.NoError(t, err)

	check.False(t, result.ChainValid)
	check.False(t, result.IsValid())
}

func TestVerifyAuction_SettlementHashTiedToLedgerHead(t *testing.T) {
	a := auditAuction()
	records := auditRecords(t, a, acceptedBid("bidder_a", 15_000))

	bids := []core.Bid{records[0].Bid}
	snap := core.Replay(a, bids)
	settlement := core.ComputeSettlement(core.DefaultFeePolicy(), a, snap, "settlement-1", time.Now())
	headHash := records[len(records)-1].Hash

	result, err := VerifyAuction(&Input{
		Auction:          a,
		Records:          records,
		ReportedWinnerID: "bidder_a",
		ReportedPrice:    price("10000"),
		Settlement:       &settlement,
		IntegrityHash:    core.ComputeSettlementHash(settlement, headHash),
	})
	assert.NoError(t, err)
	check.True(t, result.IsValid())

	// A hash computed over a different ledger head must not verify.
	result, err = VerifyAuction(&Input{
		Auction:          a,
		Records:          records,
		ReportedWinnerID: "bidder_a",
		ReportedPrice:    price("10000"),
		Settlement:       &settlement,
		IntegrityHash:    core.ComputeSettlementHash(settlement, "forged-head"),
	})
	assert.NoError(t, err)
	check.False(t, result.HashValid)
}

func TestVerifyAuction_RequiresAuction(t *testing.T) {
	_, err := VerifyAuction(&Input{})
	check.Error(t, err)
}
