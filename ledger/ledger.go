// Package ledger implements the durable, append-only, per-auction bid log
// that is the engine's source of truth. Appends are serialized per auction
// and assign strictly increasing sequence numbers; records are never
// mutated or deleted.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/sss97133/nuke-sub017/core"
)

var (
	// ErrSequenceConflict is returned by AppendIf when another bid claimed
	// the expected sequence slot first. Callers re-read and retry.
	ErrSequenceConflict = errors.New("ledger sequence conflict")
)

// Record is one persisted ledger entry: the bid plus its chain hash.
type Record struct {
	Bid  core.Bid `json:"bid"`
	Hash string   `json:"hash"`
}

// Ledger is the append-only bid log. Implementations must serialize
// appends per auction, assign the sequence number atomically at append
// time, and never advance the counter on a failed append.
type Ledger interface {
	// Append appends a bid attempt, assigning the next sequence number.
	Append(ctx context.Context, bid core.Bid) (uint64, error)

	// AppendIf appends only when the auction's last sequence equals
	// expectedSeq (compare-and-append). Returns ErrSequenceConflict when
	// the log has moved past expectedSeq.
	AppendIf(ctx context.Context, bid core.Bid, expectedSeq uint64) (uint64, error)

	// ReadSince returns all bids for an auction with sequence > afterSeq,
	// in sequence order. An unknown auction yields an empty slice.
	ReadSince(ctx context.Context, auctionID string, afterSeq uint64) ([]core.Bid, error)

	// LastSequence returns the highest assigned sequence for an auction,
	// zero when no bids have been appended.
	LastSequence(ctx context.Context, auctionID string) (uint64, error)

	// HeadHash returns the chain hash of the newest record, empty for an
	// auction with no records.
	HeadHash(ctx context.Context, auctionID string) (string, error)
}

// VerifyChain checks that records form a contiguous, untampered log:
// sequences run 1..n without gaps and every record's hash chains to its
// predecessor. A hash mismatch means tampering or corruption; a sequence
// gap means records were lost rather than never written.
func VerifyChain(records []Record) error {
	prevHash := ""
	for i, rec := range records {
		want := uint64(i + 1)
		if rec.Bid.Sequence != want {
			return fmt.Errorf("sequence gap at position %d: have %d, want %d", i, rec.Bid.Sequence, want)
		}
		if got := core.ComputeRecordHash(prevHash, rec.Bid); got != rec.Hash {
			return fmt.Errorf("hash mismatch at sequence %d", rec.Bid.Sequence)
		}
		prevHash = rec.Hash
	}
	return nil
}
