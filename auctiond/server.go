package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sss97133/nuke-sub017/auctionapi"
	"github.com/sss97133/nuke-sub017/core"
	"github.com/sss97133/nuke-sub017/engine"
	"github.com/sss97133/nuke-sub017/events"
	"github.com/sss97133/nuke-sub017/ledger"
)

// AuctionServer serves the engine's JSON interface over TCP: one request
// per connection, switch-on-type dispatch. Concurrency is bounded by a
// semaphore worker pool; when the pool is full new connections are
// rejected rather than queued.
type AuctionServer struct {
	port int

	auctions   *engine.AuctionStore
	gateway    *engine.Gateway
	controller *engine.Controller
	ledger     ledger.Ledger
	publisher  events.Publisher
}

func NewAuctionServer(port int, auctions *engine.AuctionStore, gateway *engine.Gateway, controller *engine.Controller, led ledger.Ledger, publisher events.Publisher) *AuctionServer {
	return &AuctionServer{
		port:       port,
		auctions:   auctions,
		gateway:    gateway,
		controller: controller,
		ledger:     led,
		publisher:  publisher,
	}
}

func (s *AuctionServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Printf("ERROR: Failed to close listener: %v", err)
		}
	}()

	log.Printf("INFO: Auction server listening on port %d", s.port)

	maxWorkers, err := getRequiredEnvInt("AUCTIOND_MAX_WORKERS")
	if err != nil {
		return fmt.Errorf("failed to get max workers config: %w", err)
	}
	semaphore := make(chan struct{}, maxWorkers)

	log.Printf("INFO: Worker pool initialized with %d max concurrent workers", maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("ERROR: Failed to accept connection: %v", err)
			continue
		}

		// Acquire worker slot - immediate rejection if pool full
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }() // Release worker slot
				s.handleConnection(ctx, c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (s *AuctionServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in handleConnection: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		log.Printf("ERROR: Failed to read request: %v", err)
		return
	}

	var baseReq struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(buf.Bytes(), &baseReq); err != nil {
		log.Printf("ERROR: Failed to decode base request: %v", err)
		return
	}

	log.Printf("INFO: Received request type: %s", baseReq.Type)

	var response any

	switch baseReq.Type {
	case auctionapi.TypePing:
		response = map[string]any{
			"type":      "pong",
			"message":   "auction server is healthy",
			"timestamp": time.Now().Unix(),
		}

	case auctionapi.TypeSubmitBid:
		response = s.handleSubmitBid(ctx, buf.Bytes())

	case auctionapi.TypeAuctionState:
		response = s.handleAuctionState(ctx, buf.Bytes())

	case auctionapi.TypeCreateAuction:
		response = s.handleCreateAuction(buf.Bytes())

	case auctionapi.TypeCancelAuction:
		response = s.handleCancelAuction(ctx, buf.Bytes())

	case auctionapi.TypeTick:
		response = s.handleTick(ctx)

	default:
		response = errorResponse(fmt.Sprintf("Unknown request type: %s", baseReq.Type))
	}

	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(response); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

func (s *AuctionServer) handleSubmitBid(ctx context.Context, raw []byte) any {
	startTime := time.Now()

	var req auctionapi.SubmitBidRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(fmt.Sprintf("Failed to decode submit_bid request: %v", err))
	}

	result, err := s.gateway.Submit(ctx, req.AuctionID, req.BidderID, auctionapi.Money(req.ProxyMax))

	var vErr *engine.ValidationError
	switch {
	case errors.As(err, &vErr):
		return auctionapi.SubmitBidResponse{
			Type:            "submit_bid_response",
			Accepted:        false,
			RejectionReason: vErr.Reason,
			ProcessingTime:  time.Since(startTime).Milliseconds(),
		}
	case errors.Is(err, engine.ErrTransient):
		return errorResponse("Submission contended, please retry")
	case err != nil:
		log.Printf("ERROR: Bid submission failed: %v", err)
		return errorResponse("Internal error during bid submission")
	}

	return auctionapi.SubmitBidResponse{
		Type:            "submit_bid_response",
		Accepted:        result.Accepted,
		Leading:         result.Leading,
		BidID:           result.BidID,
		DisplayedPrice:  auctionapi.WireAmount(result.DisplayedPrice),
		RejectionReason: result.RejectionReason,
		ProcessingTime:  time.Since(startTime).Milliseconds(),
	}
}

func (s *AuctionServer) handleAuctionState(ctx context.Context, raw []byte) any {
	var req auctionapi.AuctionStateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(fmt.Sprintf("Failed to decode auction_state request: %v", err))
	}

	a, ok := s.auctions.Get(req.AuctionID)
	if !ok {
		return errorResponse(fmt.Sprintf("Unknown auction: %s", req.AuctionID))
	}
	snap, err := s.gateway.Snapshot(ctx, req.AuctionID)
	if err != nil {
		log.Printf("ERROR: Failed to compute snapshot for auction %s: %v", req.AuctionID, err)
		return errorResponse("Internal error reading auction state")
	}

	leader := snap.LeadingBidderID
	if leader != "" && req.RequesterID != snap.LeadingBidderID {
		leader = auctionapi.MaskBidderID(leader)
	}

	return auctionapi.AuctionStateResponse{
		Type:            "auction_state_response",
		AuctionID:       a.ID,
		State:           string(a.State),
		DisplayedPrice:  auctionapi.WireAmount(snap.DisplayedPrice),
		ScheduledEnd:    a.ScheduledEnd,
		LeadingBidderID: leader,
		BidCount:        snap.AcceptedBidCount,
	}
}

func (s *AuctionServer) handleCreateAuction(raw []byte) any {
	var req auctionapi.CreateAuctionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(fmt.Sprintf("Failed to decode create_auction request: %v", err))
	}

	kind := core.AuctionKind(req.Kind)
	if kind == "" {
		kind = core.KindAntiSnipe
	}
	if kind != core.KindFixed && kind != core.KindAntiSnipe {
		return errorResponse(fmt.Sprintf("Unknown auction kind: %s", req.Kind))
	}

	increments := core.DefaultIncrementSchedule()
	if len(req.Increments) > 0 {
		increments = incrementScheduleFrom(req.Increments)
	}

	var reserve *decimal.Decimal
	if req.ReservePrice != nil {
		r := auctionapi.Money(*req.ReservePrice)
		reserve = &r
	}

	a := &core.Auction{
		ID:              uuid.NewString(),
		VehicleID:       req.VehicleID,
		SellerID:        req.SellerID,
		Kind:            kind,
		ReservePrice:    reserve,
		StartPrice:      auctionapi.Money(req.StartPrice),
		Increments:      increments,
		ScheduledStart:  req.ScheduledStart,
		ScheduledEnd:    req.ScheduledEnd,
		ExtensionWindow: time.Duration(req.ExtensionWindow) * time.Second,
		State:           core.StateScheduled,
		CreatedAt:       time.Now(),
	}
	if err := s.auctions.Put(a); err != nil {
		return errorResponse(fmt.Sprintf("Failed to create auction: %v", err))
	}

	log.Printf("INFO: Created auction %s for vehicle %s (kind=%s, start=%s)",
		a.ID, a.VehicleID, a.Kind, a.StartPrice)
	return auctionapi.CreateAuctionResponse{
		Type:      "create_auction_response",
		AuctionID: a.ID,
	}
}

func (s *AuctionServer) handleCancelAuction(ctx context.Context, raw []byte) any {
	var req auctionapi.CancelAuctionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(fmt.Sprintf("Failed to decode cancel_auction request: %v", err))
	}
	if err := s.controller.Cancel(ctx, req.AuctionID, req.RequestedBy); err != nil {
		return errorResponse(fmt.Sprintf("Failed to cancel auction: %v", err))
	}
	return map[string]any{
		"type":       "cancel_auction_response",
		"auction_id": req.AuctionID,
		"new_state":  string(core.StateCancelled),
	}
}

func (s *AuctionServer) handleTick(ctx context.Context) any {
	results, err := s.controller.TickAllDue(ctx)
	if err != nil {
		return errorResponse(fmt.Sprintf("Tick failed: %v", err))
	}
	out := make([]auctionapi.TickResult, 0, len(results))
	for _, res := range results {
		out = append(out, auctionapi.TickResult{
			AuctionID: res.AuctionID,
			NewState:  string(res.NewState),
		})
	}
	return auctionapi.TickResponse{Type: "tick_response", Results: out}
}

func incrementScheduleFrom(tiers []auctionapi.IncrementTier) core.IncrementSchedule {
	schedule := core.IncrementSchedule{}
	for i, tier := range tiers {
		// The last tier's step carries upward as the fallback.
		if i == len(tiers)-1 {
			schedule.FinalStep = auctionapi.Money(tier.Step)
		}
		schedule.Tiers = append(schedule.Tiers, core.IncrementTier{
			Ceiling: auctionapi.Money(tier.Ceiling),
			Step:    auctionapi.Money(tier.Step),
		})
	}
	return schedule
}

func errorResponse(message string) auctionapi.ErrorResponse {
	return auctionapi.ErrorResponse{Type: "error", Message: message}
}

// Helper functions for environment variable parsing
func getRequiredEnvInt(key string) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, fmt.Errorf("required environment variable %s is not set", key)
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}

	log.Printf("INFO: Using %s=%d from environment", key, intValue)
	return intValue, nil
}

func getEnvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("WARNING: Invalid value for %s: %s, using default %d", key, value, fallback)
		return fallback
	}
	return intValue
}
