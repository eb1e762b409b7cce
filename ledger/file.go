package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/sss97133/nuke-sub017/core"
)

const ledgerFileSuffix = ".log"

// FileLedger is a durable Ledger keeping one append-only file per auction.
// Each record is CBOR-encoded and framed with a big-endian uint32 length
// prefix. The file is synced after every append; the in-memory index and
// sequence counter advance only after the record is durably written, so a
// failed append never consumes a sequence number.
type FileLedger struct {
	dir string

	mu   sync.RWMutex
	logs map[string]*fileLog
}

type fileLog struct {
	mu      sync.Mutex
	file    *os.File
	records []Record
}

// NewFileLedger opens (or creates) a ledger directory and replays every
// per-auction log file into memory. A truncated final record, left by an
// append that failed mid-write, is discarded and the file is trimmed back
// to the last complete record.
func NewFileLedger(dir string) (*FileLedger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	l := &FileLedger{dir: dir, logs: make(map[string]*fileLog)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ledgerFileSuffix) {
			continue
		}
		auctionID := strings.TrimSuffix(name, ledgerFileSuffix)
		if _, err := l.openLog(auctionID); err != nil {
			return nil, fmt.Errorf("failed to replay ledger for auction %s: %w", auctionID, err)
		}
	}
	return l, nil
}

// Close closes all open log files.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, fl := range l.logs {
		fl.mu.Lock()
		if err := fl.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		fl.mu.Unlock()
	}
	l.logs = make(map[string]*fileLog)
	return firstErr
}

func (l *FileLedger) pathFor(auctionID string) string {
	// Auction IDs are server-generated UUIDs; Base guards against a path
	// separator sneaking in regardless.
	return filepath.Join(l.dir, filepath.Base(auctionID)+ledgerFileSuffix)
}

// logFor returns the auction's log, creating the backing file when it does
// not exist yet. Only the append paths call this; reads go through lookup
// so that querying an unknown auction never writes to disk.
func (l *FileLedger) logFor(auctionID string) (*fileLog, error) {
	l.mu.RLock()
	fl, ok := l.logs[auctionID]
	l.mu.RUnlock()
	if ok {
		return fl, nil
	}
	return l.openLog(auctionID)
}

// lookup returns the auction's log without creating one. Every existing
// log file was replayed into memory at open, so a miss means the auction
// has no records.
func (l *FileLedger) lookup(auctionID string) (*fileLog, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fl, ok := l.logs[auctionID]
	return fl, ok
}

func (l *FileLedger) openLog(auctionID string) (*fileLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fl, ok := l.logs[auctionID]; ok {
		return fl, nil
	}

	path := l.pathFor(auctionID)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}

	records, goodOffset, err := readAllRecords(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	// Trim a partial final record so the next append starts clean.
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat ledger file: %w", err)
	}
	if info.Size() > goodOffset {
		log.Printf("WARNING: Ledger file %s has incomplete final record, truncating %d bytes",
			path, info.Size()-goodOffset)
		if err := file.Truncate(goodOffset); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to truncate partial record: %w", err)
		}
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to seek ledger file: %w", err)
	}

	fl := &fileLog{file: file, records: records}
	l.logs[auctionID] = fl
	return fl, nil
}

// readAllRecords decodes length-prefixed CBOR records from the start of
// the file, returning the records and the offset of the last complete one.
func readAllRecords(file *os.File) ([]Record, int64, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("failed to seek ledger file: %w", err)
	}

	records := make([]Record, 0)
	var offset int64
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(file, lenBuf[:]); err != nil {
			// EOF here is a clean end; anything partial is a torn append.
			break
		}
		size := binary.BigEndian.Uint32(lenBuf[:])
		payload := make([]byte, size)
		if _, err := io.ReadFull(file, payload); err != nil {
			break
		}
		var rec Record
		if err := cbor.Unmarshal(payload, &rec); err != nil {
			return nil, 0, fmt.Errorf("corrupt ledger record at offset %d: %w", offset, err)
		}
		records = append(records, rec)
		offset += int64(4 + size)
	}
	return records, offset, nil
}

// appendLocked durably writes a record and only then advances the
// in-memory log. Caller holds fl.mu.
func (fl *fileLog) appendLocked(bid core.Bid) (uint64, error) {
	seq := uint64(len(fl.records)) + 1
	bid.Sequence = seq

	prevHash := ""
	if n := len(fl.records); n > 0 {
		prevHash = fl.records[n-1].Hash
	}
	rec := Record{Bid: bid, Hash: core.ComputeRecordHash(prevHash, bid)}

	payload, err := cbor.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to encode ledger record: %w", err)
	}
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	if _, err := fl.file.Write(frame); err != nil {
		return 0, fmt.Errorf("failed to write ledger record: %w", err)
	}
	if err := fl.file.Sync(); err != nil {
		return 0, fmt.Errorf("failed to sync ledger record: %w", err)
	}

	fl.records = append(fl.records, rec)
	return seq, nil
}

func (l *FileLedger) Append(ctx context.Context, bid core.Bid) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fl, err := l.logFor(bid.AuctionID)
	if err != nil {
		return 0, err
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.appendLocked(bid)
}

func (l *FileLedger) AppendIf(ctx context.Context, bid core.Bid, expectedSeq uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fl, err := l.logFor(bid.AuctionID)
	if err != nil {
		return 0, err
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if uint64(len(fl.records)) != expectedSeq {
		return 0, ErrSequenceConflict
	}
	return fl.appendLocked(bid)
}

func (l *FileLedger) ReadSince(ctx context.Context, auctionID string, afterSeq uint64) ([]core.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fl, ok := l.lookup(auctionID)
	if !ok {
		return []core.Bid{}, nil
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()

	bids := make([]core.Bid, 0, len(fl.records))
	for _, rec := range fl.records {
		if rec.Bid.Sequence > afterSeq {
			bids = append(bids, rec.Bid)
		}
	}
	return bids, nil
}

func (l *FileLedger) LastSequence(ctx context.Context, auctionID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fl, ok := l.lookup(auctionID)
	if !ok {
		return 0, nil
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return uint64(len(fl.records)), nil
}

func (l *FileLedger) HeadHash(ctx context.Context, auctionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fl, ok := l.lookup(auctionID)
	if !ok {
		return "", nil
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if n := len(fl.records); n > 0 {
		return fl.records[n-1].Hash, nil
	}
	return "", nil
}

// Records returns a copy of an auction's full record log, for chain
// verification and audit.
func (l *FileLedger) Records(auctionID string) ([]Record, error) {
	fl, ok := l.lookup(auctionID)
	if !ok {
		return []Record{}, nil
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	out := make([]Record, len(fl.records))
	copy(out, fl.records)
	return out, nil
}
