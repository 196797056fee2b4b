// Package web exposes the trade, approval and reward endpoints plus an SSE
// stream of ledger activity.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tokenpost/tradecore/internal/clients"
	"github.com/tokenpost/tradecore/internal/domain"
	"github.com/tokenpost/tradecore/internal/services/broadcaster"
	"github.com/tokenpost/tradecore/internal/services/executor"
	"github.com/tokenpost/tradecore/internal/services/quote"
	"github.com/tokenpost/tradecore/internal/storage/rewards"
	"go.uber.org/zap"
)

const ledgerPollInterval = 2 * time.Second

type tradeExecutor interface {
	SubmitTrade(ctx context.Context, intent domain.TradeIntent) (domain.TradeOutcome, error)
	PendingApproval() (domain.PendingApproval, bool)
	Resolve(confirm bool) error
}

type ledgerReader interface {
	Balance(beneficiary string) uint64
	Claim(ctx context.Context, beneficiary string, disburse rewards.DisburseFunc) (domain.Claim, error)
	ClaimsFor(beneficiary string) []domain.Claim
	EntriesAfter(index uint64) ([]domain.LedgerEntryRecord, error)
}

// Server exposes the HTTP API and a small HTML dashboard.
type Server struct {
	addr     string
	executor tradeExecutor
	ledger   ledgerReader
	disburse rewards.DisburseFunc
	logger   *zap.Logger
}

// NewServer creates a web server. disburse performs the on-chain payout
// when a claim is accepted.
func NewServer(addr string, exec tradeExecutor, ledger ledgerReader, disburse rewards.DisburseFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:     addr,
		executor: exec,
		ledger:   ledger,
		disburse: disburse,
		logger:   logger,
	}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /trade", s.handleTrade)
	mux.HandleFunc("GET /approval", s.handleApproval)
	mux.HandleFunc("POST /approval/resolve", s.handleApprovalResolve)
	mux.HandleFunc("GET /rewards/stream", s.handleRewardStream)
	mux.HandleFunc("GET /rewards/{beneficiary}", s.handleRewardBalance)
	mux.HandleFunc("GET /rewards/{beneficiary}/claims", s.handleRewardClaims)
	mux.HandleFunc("POST /rewards/{beneficiary}/claim", s.handleRewardClaim)
	return mux
}

type tradeRequest struct {
	Direction string `json:"direction"`
	TokenMint string `json:"token_mint"`
	UIAmount  string `json:"ui_amount"`
	// SlippageBps of zero falls back to the configured default tolerance.
	SlippageBps uint16 `json:"slippage_bps"`
	Creator     string `json:"creator"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	direction, err := domain.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.UIAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ui_amount")
		return
	}

	intent := domain.TradeIntent{
		Direction:   direction,
		TokenMint:   req.TokenMint,
		UIAmount:    amount,
		SlippageBps: req.SlippageBps,
		Creator:     req.Creator,
	}

	outcome, err := s.executor.SubmitTrade(r.Context(), intent)
	if err != nil && !errors.Is(err, executor.ErrApprovalCancelled) {
		s.logger.Warn("trade failed",
			zap.String("trade_id", outcome.ID),
			zap.String("direction", intent.Direction.String()),
			zap.Error(err))
		writeJSON(w, tradeStatus(err), outcome)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// tradeStatus maps pipeline errors to HTTP statuses. Broadcast failures
// after submission still carry the signature in the outcome body.
func tradeStatus(err error) int {
	switch {
	case errors.Is(err, executor.ErrApprovalInProgress):
		return http.StatusConflict
	case errors.Is(err, executor.ErrInsufficientBalance),
		errors.Is(err, clients.ErrNoRoute),
		errors.Is(err, clients.ErrMintNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, quote.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, broadcaster.ErrConfirmationTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, broadcaster.ErrBroadcastFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request) {
	approval, ok := s.executor.PendingApproval()
	if !ok {
		writeError(w, http.StatusNotFound, "no trade is awaiting approval")
		return
	}
	writeJSON(w, http.StatusOK, approval)
}

func (s *Server) handleApprovalResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.executor.Resolve(req.Confirm); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"confirm": req.Confirm})
}

func (s *Server) handleRewardBalance(w http.ResponseWriter, r *http.Request) {
	beneficiary := r.PathValue("beneficiary")
	writeJSON(w, http.StatusOK, map[string]any{
		"beneficiary": beneficiary,
		"balance":     s.ledger.Balance(beneficiary),
	})
}

func (s *Server) handleRewardClaims(w http.ResponseWriter, r *http.Request) {
	beneficiary := r.PathValue("beneficiary")
	writeJSON(w, http.StatusOK, s.ledger.ClaimsFor(beneficiary))
}

func (s *Server) handleRewardClaim(w http.ResponseWriter, r *http.Request) {
	beneficiary := r.PathValue("beneficiary")

	claim, err := s.ledger.Claim(r.Context(), beneficiary, s.disburse)
	if err != nil {
		if errors.Is(err, rewards.ErrNothingToClaim) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Warn("claim failed",
			zap.String("beneficiary", beneficiary),
			zap.Error(err))
		writeJSON(w, http.StatusBadGateway, claim)
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

func (s *Server) handleRewardStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat every 30s so proxies keep connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(ledgerPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendEntries := func() error {
		records, err := s.ledger.EntriesAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Entry)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: ledger\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendEntries(); err != nil {
		http.Error(w, "failed to load ledger entries", http.StatusInternalServerError)
		s.logger.Error("reward stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendEntries(); err != nil {
				s.logger.Warn("reward stream poll", zap.Error(err))
			}
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
