package engine

import (
	"fmt"
	"sync"

	"github.com/sss97133/nuke-sub017/core"
)

// AuctionStore holds auction records in memory. Reads return copies;
// all mutation goes through Update so state transitions are serialized
// per store.
type AuctionStore struct {
	mu       sync.RWMutex
	auctions map[string]*core.Auction
}

func NewAuctionStore() *AuctionStore {
	return &AuctionStore{auctions: make(map[string]*core.Auction)}
}

// Put registers a new auction after validating its scheduling invariants.
func (s *AuctionStore) Put(a *core.Auction) error {
	if a.ID == "" {
		return fmt.Errorf("auction id is required")
	}
	if a.ScheduledEnd.Before(a.ScheduledStart) {
		return fmt.Errorf("scheduled_end %s precedes scheduled_start %s", a.ScheduledEnd, a.ScheduledStart)
	}
	if !a.StartPrice.IsPositive() {
		return fmt.Errorf("start_price must be positive")
	}
	if !a.Increments.IsValid() {
		return fmt.Errorf("increment schedule is invalid")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.auctions[a.ID]; exists {
		return fmt.Errorf("auction %s already exists", a.ID)
	}
	cp := *a
	s.auctions[a.ID] = &cp
	return nil
}

// Get returns a copy of the auction, so callers never observe concurrent
// mutation mid-read.
func (s *AuctionStore) Get(id string) (*core.Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// List returns copies of all auctions.
func (s *AuctionStore) List() []*core.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

// Update applies fn to the stored auction under the store lock and returns
// a copy of the result. fn returning an error leaves the record untouched.
func (s *AuctionStore) Update(id string, fn func(*core.Auction) error) (*core.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	scratch := *a
	if err := fn(&scratch); err != nil {
		return nil, err
	}
	*a = scratch
	cp := scratch
	return &cp, nil
}

// SettlementStore holds settlement records keyed by auction ID, which is
// the settlement idempotency key.
type SettlementStore struct {
	mu          sync.Mutex
	settlements map[string]core.Settlement
}

func NewSettlementStore() *SettlementStore {
	return &SettlementStore{settlements: make(map[string]core.Settlement)}
}

// PutOnce stores the settlement unless one already exists for the auction.
// The second and later attempts report created=false, which is how double
// settlement is detected and ignored.
func (s *SettlementStore) PutOnce(settlement core.Settlement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.settlements[settlement.AuctionID]; exists {
		return false
	}
	s.settlements[settlement.AuctionID] = settlement
	return true
}

// Get returns the settlement for an auction, if one was created.
func (s *SettlementStore) Get(auctionID string) (core.Settlement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settlement, ok := s.settlements[auctionID]
	return settlement, ok
}
