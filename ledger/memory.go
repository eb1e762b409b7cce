package ledger

import (
	"context"
	"sync"

	"github.com/sss97133/nuke-sub017/core"
)

// MemoryLedger is an in-process Ledger used in tests and single-node
// deployments. Each auction's log is guarded by its own mutex so appends
// for different auctions never contend.
type MemoryLedger struct {
	mu   sync.RWMutex
	logs map[string]*auctionLog
}

type auctionLog struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{logs: make(map[string]*auctionLog)}
}

func (l *MemoryLedger) logFor(auctionID string) *auctionLog {
	l.mu.RLock()
	log, ok := l.logs[auctionID]
	l.mu.RUnlock()
	if ok {
		return log
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if log, ok = l.logs[auctionID]; ok {
		return log
	}
	log = &auctionLog{}
	l.logs[auctionID] = log
	return log
}

// appendLocked assigns the next sequence and chain hash. Caller holds
// log.mu.
func (log *auctionLog) appendLocked(bid core.Bid) uint64 {
	seq := uint64(len(log.records)) + 1
	bid.Sequence = seq

	prevHash := ""
	if n := len(log.records); n > 0 {
		prevHash = log.records[n-1].Hash
	}
	log.records = append(log.records, Record{
		Bid:  bid,
		Hash: core.ComputeRecordHash(prevHash, bid),
	})
	return seq
}

func (l *MemoryLedger) Append(ctx context.Context, bid core.Bid) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	log := l.logFor(bid.AuctionID)
	log.mu.Lock()
	defer log.mu.Unlock()
	return log.appendLocked(bid), nil
}

func (l *MemoryLedger) AppendIf(ctx context.Context, bid core.Bid, expectedSeq uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	log := l.logFor(bid.AuctionID)
	log.mu.Lock()
	defer log.mu.Unlock()
	if uint64(len(log.records)) != expectedSeq {
		return 0, ErrSequenceConflict
	}
	return log.appendLocked(bid), nil
}

func (l *MemoryLedger) ReadSince(ctx context.Context, auctionID string, afterSeq uint64) ([]core.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := l.logFor(auctionID)
	log.mu.Lock()
	defer log.mu.Unlock()

	bids := make([]core.Bid, 0, len(log.records))
	for _, rec := range log.records {
		if rec.Bid.Sequence > afterSeq {
			bids = append(bids, rec.Bid)
		}
	}
	return bids, nil
}

func (l *MemoryLedger) LastSequence(ctx context.Context, auctionID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	log := l.logFor(auctionID)
	log.mu.Lock()
	defer log.mu.Unlock()
	return uint64(len(log.records)), nil
}

func (l *MemoryLedger) HeadHash(ctx context.Context, auctionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	log := l.logFor(auctionID)
	log.mu.Lock()
	defer log.mu.Unlock()
	if n := len(log.records); n > 0 {
		return log.records[n-1].Hash, nil
	}
	return "", nil
}

// Records returns a copy of an auction's full record log, for chain
// verification and audit.
func (l *MemoryLedger) Records(auctionID string) []Record {
	log := l.logFor(auctionID)
	log.mu.Lock()
	defer log.mu.Unlock()
	out := make([]Record, len(log.records))
	copy(out, log.records)
	return out
}
