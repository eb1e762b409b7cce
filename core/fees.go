package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeTier maps a final-price band to a seller commission rate. A tier
// applies to final prices strictly below Ceiling.
type FeeTier struct {
	Ceiling decimal.Decimal `json:"ceiling"`
	Rate    decimal.Decimal `json:"rate"`
}

// FeePolicy holds the marketplace commission schedule. SellerFee is a
// tiered percentage of the final price with a floor; BuyerFee is a flat
// facilitation fee.
type FeePolicy struct {
	SellerTiers   []FeeTier       `json:"seller_tiers"`
	SellerTopRate decimal.Decimal `json:"seller_top_rate"`
	SellerFeeMin  decimal.Decimal `json:"seller_fee_min"`
	BuyerFee      decimal.Decimal `json:"buyer_fee"`
}

// DefaultFeePolicy returns the standard marketplace commission schedule:
// 5% below $10k, 4% below $50k, 3% above, with a $250 seller minimum and a
// flat $250 buyer facilitation fee.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		SellerTiers: []FeeTier{
			{Ceiling: decimal.NewFromInt(10_000), Rate: decimal.NewFromFloat(0.05)},
			{Ceiling: decimal.NewFromInt(50_000), Rate: decimal.NewFromFloat(0.04)},
		},
		SellerTopRate: decimal.NewFromFloat(0.03),
		SellerFeeMin:  decimal.NewFromInt(250),
		BuyerFee:      decimal.NewFromInt(250),
	}
}

// SellerFeeFor computes the seller commission on a final price.
func (p FeePolicy) SellerFeeFor(finalPrice decimal.Decimal) decimal.Decimal {
	rate := p.SellerTopRate
	rounded := finalPrice.Round(monetaryPrecision)
	for _, tier := range p.SellerTiers {
		if rounded.LessThan(tier.Ceiling) {
			rate = tier.Rate
			break
		}
	}
	fee := rounded.Mul(rate).Round(monetaryPrecision)
	if fee.LessThan(p.SellerFeeMin) {
		return p.SellerFeeMin
	}
	return fee
}

// ComputeSettlement computes the settlement record for a sold auction from
// its final snapshot. It is pure; emitting the record exactly once is the
// lifecycle controller's responsibility.
func ComputeSettlement(policy FeePolicy, a *Auction, snap *LeadingBidSnapshot, settlementID string, now time.Time) Settlement {
	finalPrice := snap.DisplayedPrice.Round(monetaryPrecision)
	return Settlement{
		SettlementID: settlementID,
		AuctionID:    a.ID,
		FinalPrice:   finalPrice,
		BuyerID:      snap.LeadingBidderID,
		SellerID:     a.SellerID,
		BuyerFee:     policy.BuyerFee.Round(monetaryPrecision),
		SellerFee:    policy.SellerFeeFor(finalPrice),
		SettledAt:    now,
	}
}
