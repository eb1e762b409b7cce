package core

import (
	"crypto/sha256"
	"fmt"
)

// ComputeRecordHash computes the ledger record hash for one bid, chained to
// the hash of the preceding record. The first record of an auction chains
// to the empty string.
//
// Formula: SHA256(prev_hash + "|" + bid_id + "|" + sequence + "|" +
// bidder_id + "|" + proxy_max + "|" + accepted)
//
// The proxy max is formatted to exactly 2 decimal places so the hash is
// independent of the decimal's internal representation.
func ComputeRecordHash(prevHash string, bid Bid) string {
	data := fmt.Sprintf("%s|%s|%d|%s|%s|%t",
		prevHash, bid.ID, bid.Sequence, bid.BidderID,
		bid.ProxyMax.StringFixed(monetaryPrecision), bid.Accepted)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeSettlementHash computes an integrity hash over a settlement record
// and the ledger head it was derived from, for audit trails handed to the
// payment collaborator.
//
// Formula: SHA256(auction_id + "|" + final_price + "|" + buyer_id + "|" +
// seller_id + "|" + ledger_head_hash)
func ComputeSettlementHash(s Settlement, ledgerHeadHash string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s",
		s.AuctionID, s.FinalPrice.StringFixed(monetaryPrecision),
		s.BuyerID, s.SellerID, ledgerHeadHash)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
