package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"RewardsLedger/internal/engine"
	fpmath "RewardsLedger/internal/math"
	"RewardsLedger/internal/observability"
	"RewardsLedger/internal/projection"
	"RewardsLedger/internal/query"
)

// HTTPServer serves the JSON API: command submission for tooling and tests,
// read queries backed by projections, and admin endpoints. NATS remains the
// primary high-throughput ingestion surface; HTTP commands go through the
// same engine entry points and the same idempotency layer.
type HTTPServer struct {
	engine        *engine.Engine
	queryService  *query.QueryService
	db            *sql.DB
	healthChecker *observability.HealthChecker
	httpServer    *http.Server
	addr          string
}

func NewHTTPServer(
	addr string,
	eng *engine.Engine,
	qs *query.QueryService,
	db *sql.DB,
	hc *observability.HealthChecker,
) *HTTPServer {
	return &HTTPServer{
		engine:        eng,
		queryService:  qs,
		db:            db,
		healthChecker: hc,
		addr:          addr,
	}
}

// Start runs the HTTP server (blocking).
func (s *HTTPServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	// Commands
	mux.HandleFunc("POST /v1/transfer", s.handleTransfer)
	mux.HandleFunc("POST /v1/mint", s.handleMint)
	mux.HandleFunc("POST /v1/distribution/tick", s.handleTick)
	mux.HandleFunc("POST /v1/conversion", s.handleConvert)
	mux.HandleFunc("POST /v1/liquidity", s.handleLiquidity)

	// Queries
	mux.HandleFunc("GET /v1/holders/{holder}/balance", s.handleBalance)
	mux.HandleFunc("GET /v1/holders/{holder}/payouts", s.handlePayouts)
	mux.HandleFunc("GET /v1/holders/{holder}/journal", s.handleJournal)
	mux.HandleFunc("GET /v1/pool", s.handlePool)
	mux.HandleFunc("GET /v1/distributions", s.handleDistributions)
	mux.HandleFunc("GET /v1/conversions", s.handleConversions)
	mux.HandleFunc("GET /v1/liquidity-adds", s.handleLiquidityAdds)

	// Admin
	mux.HandleFunc("POST /v1/admin/rebuild-projections", s.handleRebuildProjections)
	mux.HandleFunc("GET /v1/admin/integrity", s.handleIntegrity)

	// Health
	if s.healthChecker != nil {
		mux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		mux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	}

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		log.Println("INFO: HTTP server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// --- command handlers ---

type transferRequest struct {
	TransferID  string `json:"transfer_id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Kind        string `json:"kind"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
}

func (s *HTTPServer) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	transferID, err := uuid.Parse(req.TransferID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transfer_id")
		return
	}
	senderID, err := uuid.Parse(req.SenderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sender_id")
		return
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recipient_id")
		return
	}
	kind, ok := fpmath.ParseTransferKind(req.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", req.Kind))
		return
	}

	receipt, err := s.engine.Transfer(&engine.TransferCommand{
		TransferID:     transferID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Kind:           kind,
		Amount:         req.Amount,
		SourceSequence: req.Sequence,
		Timestamp:      time.Now(),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transfer_id":       receipt.TransferID,
		"fee":               receipt.Fee,
		"net":               receipt.Net,
		"sequence":          receipt.Sequence,
		"sender_balance":    receipt.SenderBalance,
		"recipient_balance": receipt.RecipientBalance,
		"duplicate":         receipt.Duplicate,
	})
}

type mintRequest struct {
	MintID      string `json:"mint_id"`
	RecipientID string `json:"recipient_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
}

func (s *HTTPServer) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	mintID, err := uuid.Parse(req.MintID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid mint_id")
		return
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recipient_id")
		return
	}

	receipt, err := s.engine.Mint(&engine.MintCommand{
		MintID:         mintID,
		RecipientID:    recipientID,
		Amount:         req.Amount,
		SourceSequence: req.Sequence,
		Timestamp:      time.Now(),
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mint_id":           receipt.MintID,
		"sequence":          receipt.Sequence,
		"recipient_balance": receipt.RecipientBalance,
		"total_supply":      receipt.TotalSupply,
		"duplicate":         receipt.Duplicate,
	})
}

func (s *HTTPServer) handleTick(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Tick(time.Now())
	if err != nil {
		if errors.Is(err, engine.ErrDistributionSkipped) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"fired": false})
			return
		}
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fired":         true,
		"epoch_id":      result.EpochID,
		"pending":       result.Pending,
		"holder_share":  result.HolderShare,
		"reserve_share": result.ReserveShare,
		"residual":      result.Residual,
		"holder_count":  result.HolderCount,
		"total_supply":  result.TotalSupply,
		"sequence":      result.Sequence,
	})
}

func (s *HTTPServer) handleConvert(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ConvertFees(r.Context(), time.Now())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"converted": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"converted":      true,
		"conversion_id":  result.ConversionID,
		"token_amount":   result.TokenAmount,
		"settled_amount": result.SettledAmount,
		"gateway_ref":    result.GatewayRef,
		"sequence":       result.Sequence,
	})
}

func (s *HTTPServer) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.ProvisionLiquidity(r.Context(), time.Now())
	if err != nil {
		if errors.Is(err, engine.ErrLiquidityBelowThreshold) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"provisioned": false})
			return
		}
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provisioned":  true,
		"provision_id": result.ProvisionID,
		"amount":       result.Amount,
		"venue_ref":    result.VenueRef,
		"sequence":     result.Sequence,
	})
}

// --- query handlers ---

func (s *HTTPServer) handleBalance(w http.ResponseWriter, r *http.Request) {
	holderID, err := uuid.Parse(r.PathValue("holder"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	bal, err := s.queryService.GetBalance(r.Context(), holderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (s *HTTPServer) handlePayouts(w http.ResponseWriter, r *http.Request) {
	holderID, err := uuid.Parse(r.PathValue("holder"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	limit := queryLimit(r, 50, 100)
	var beforeEpoch *int64
	if v := r.URL.Query().Get("before_epoch"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before_epoch")
			return
		}
		beforeEpoch = &n
	}

	history, err := s.queryService.GetPayoutHistory(r.Context(), holderID, limit, beforeEpoch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payouts": history})
}

func (s *HTTPServer) handleJournal(w http.ResponseWriter, r *http.Request) {
	holderID, err := uuid.Parse(r.PathValue("holder"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid holder id")
		return
	}

	limit := queryLimit(r, 100, 500)
	var afterSeq *int64
	if v := r.URL.Query().Get("before_sequence"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before_sequence")
			return
		}
		afterSeq = &n
	}

	entries, err := s.queryService.GetJournalHistory(r.Context(), holderID, limit, afterSeq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"journals": entries})
}

func (s *HTTPServer) handlePool(w http.ResponseWriter, r *http.Request) {
	// Live engine stats, not projections: pool balances must be exact.
	stats := s.engine.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fee_pool":             stats.FeePool,
		"rewards_pending":      stats.RewardsPending,
		"reserve":              stats.Reserve,
		"total_supply":         stats.TotalSupply,
		"last_distribution":    stats.LastDistribution,
		"distribution_epoch":   stats.DistributionEpoch,
		"conversion_in_flight": stats.ConversionInFlight,
		"as_of_sequence":       stats.Sequence,
	})
}

func (s *HTTPServer) handleDistributions(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 100)
	var beforeEpoch *int64
	if v := r.URL.Query().Get("before_epoch"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before_epoch")
			return
		}
		beforeEpoch = &n
	}

	epochs, err := s.queryService.ListDistributions(r.Context(), limit, beforeEpoch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"distributions": epochs})
}

func (s *HTTPServer) handleConversions(w http.ResponseWriter, r *http.Request) {
	results, err := s.queryService.ListConversions(r.Context(), queryLimit(r, 50, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conversions": results})
}

func (s *HTTPServer) handleLiquidityAdds(w http.ResponseWriter, r *http.Request) {
	results, err := s.queryService.ListLiquidityAdds(r.Context(), queryLimit(r, 50, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"liquidity_adds": results})
}

// --- admin handlers ---

func (s *HTTPServer) handleRebuildProjections(w http.ResponseWriter, r *http.Request) {
	if err := projection.RebuildProjections(r.Context(), s.db); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rebuilt": true})
}

func (s *HTTPServer) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.queryService.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- helpers ---

// writeEngineError maps engine sentinel errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, engine.ErrConversionInProgress),
		errors.Is(err, engine.ErrLiquidityInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrConversionFailed),
		errors.Is(err, engine.ErrLiquidityVenueFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryLimit(r *http.Request, def, max int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
