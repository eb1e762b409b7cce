// Package audit independently verifies auction outcomes against the bid
// ledger. Because the resolver is a pure replay of the log, anyone holding
// the ledger records can recompute the winner and final price and check
// them against what the engine reported, without trusting the engine.
package audit

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sss97133/nuke-sub017/core"
	"github.com/sss97133/nuke-sub017/ledger"
)

// Input carries everything needed to audit one auction.
type Input struct {
	Auction *core.Auction
	Records []ledger.Record

	// Reported outcome to validate. FinalPrice is nil when the auction is
	// expected to have closed without a winner.
	ReportedWinnerID string
	ReportedPrice    *decimal.Decimal

	// Settlement to validate, optional.
	Settlement    *core.Settlement
	IntegrityHash string
}

// Result reports each verification separately so a caller can tell a
// tampered ledger from a mis-reported price.
type Result struct {
	ChainValid  bool
	WinnerValid bool
	PriceValid  bool
	HashValid   bool

	Details []string
}

// IsValid reports whether every performed check passed.
func (r *Result) IsValid() bool {
	return r.ChainValid && r.WinnerValid && r.PriceValid && r.HashValid
}

// VerifyAuction replays the ledger records and checks the reported outcome
// against the recomputed one.
func VerifyAuction(input *Input) (*Result, error) {
	if input.Auction == nil {
		return nil, fmt.Errorf("auction is required")
	}

	result := &Result{ChainValid: true, WinnerValid: true, PriceValid: true, HashValid: true}

	if err := ledger.VerifyChain(input.Records); err != nil {
		result.ChainValid = false
		result.Details = append(result.Details, fmt.Sprintf("ledger chain broken: %v", err))
	}

	bids := make([]core.Bid, 0, len(input.Records))
	for _, rec := range input.Records {
		bids = append(bids, rec.Bid)
	}
	snap := core.Replay(input.Auction, bids)

	if snap.LeadingBidderID != input.ReportedWinnerID {
		result.WinnerValid = false
		result.Details = append(result.Details, fmt.Sprintf(
			"winner mismatch: reported %q, replay says %q", input.ReportedWinnerID, snap.LeadingBidderID))
	}

	switch {
	case input.ReportedPrice == nil && snap.HasLeader():
		result.PriceValid = false
		result.Details = append(result.Details, fmt.Sprintf(
			"no price reported but replay found leader at %s", snap.DisplayedPrice.StringFixed(2)))
	case input.ReportedPrice != nil && !input.ReportedPrice.Round(2).Equal(snap.DisplayedPrice.Round(2)):
		result.PriceValid = false
		result.Details = append(result.Details, fmt.Sprintf(
			"price mismatch: reported %s, replay says %s",
			input.ReportedPrice.StringFixed(2), snap.DisplayedPrice.StringFixed(2)))
	}

	if input.Settlement != nil {
		headHash := ""
		if n := len(input.Records); n > 0 {
			headHash = input.Records[n-1].Hash
		}
		if got := core.ComputeSettlementHash(*input.Settlement, headHash); got != input.IntegrityHash {
			result.HashValid = false
			result.Details = append(result.Details, "settlement integrity hash does not match ledger head")
		}
	}

	return result, nil
}
