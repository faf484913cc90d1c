// Package httpserver exposes the number-marketplace bounded context's
// command/query surface (spec.md §6) over plain net/http, the same
// decode/dispatch/writeJSON shape the rest of this stack uses for every
// context's transport layer.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	activationservice "solomon/contexts/number-marketplace/activation-service"
	activationerrors "solomon/contexts/number-marketplace/activation-service/domain/errors"
	activationhttp "solomon/contexts/number-marketplace/activation-service/transport/http"
	catalogservice "solomon/contexts/number-marketplace/catalog-service"
	catalogerrors "solomon/contexts/number-marketplace/catalog-service/domain/errors"
	cataloghttp "solomon/contexts/number-marketplace/catalog-service/transport/http"
	orderorchestratorservice "solomon/contexts/number-marketplace/order-orchestrator-service"
	orderorchestratorerrors "solomon/contexts/number-marketplace/order-orchestrator-service/domain/errors"
	orderhttp "solomon/contexts/number-marketplace/order-orchestrator-service/transport/http"
	walletservice "solomon/contexts/number-marketplace/wallet-service"
	walleterrors "solomon/contexts/number-marketplace/wallet-service/domain/errors"
	wallethttp "solomon/contexts/number-marketplace/wallet-service/transport/http"
)

// Server mounts every number-marketplace service's router-agnostic Handler
// onto one net/http.ServeMux.
type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	addr       string
	httpServer *http.Server

	wallet            walletservice.Module
	catalog           catalogservice.Module
	activation        activationservice.Module
	orderOrchestrator orderorchestratorservice.Module
}

func New(
	wallet walletservice.Module,
	catalog catalogservice.Module,
	activation activationservice.Module,
	orderOrchestrator orderorchestratorservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}
	s := &Server{
		mux:               http.NewServeMux(),
		logger:            logger,
		addr:              addr,
		wallet:            wallet,
		catalog:           catalog,
		activation:        activation,
		orderOrchestrator: orderOrchestrator,
	}
	s.registerRoutes()
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.mux}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	// wallet-service — internal ledger surface, driven by the saga and the
	// admin dashboard, never called directly by an end user.
	s.mux.HandleFunc("POST /internal/v1/wallet/reserve", s.handleWalletReserve)
	s.mux.HandleFunc("POST /internal/v1/wallet/commit", s.handleWalletCommit)
	s.mux.HandleFunc("POST /internal/v1/wallet/rollback", s.handleWalletRollback)
	s.mux.HandleFunc("POST /internal/v1/wallet/refund", s.handleWalletRefund)
	s.mux.HandleFunc("GET /internal/v1/wallet/{user_id}/balance", s.handleWalletBalance)
	s.mux.HandleFunc("GET /internal/v1/wallet/{user_id}/history", s.handleWalletHistory)

	// catalog-service — offer resolution/search/aggregation (spec.md §6).
	s.mux.HandleFunc("POST /api/v1/catalog/resolve", s.handleCatalogResolve)
	s.mux.HandleFunc("GET /api/v1/catalog/search", s.handleCatalogSearch)
	s.mux.HandleFunc("GET /api/v1/catalog/aggregate", s.handleCatalogAggregate)

	// order-orchestrator-service — the purchase command surface of §6.
	s.mux.HandleFunc("POST /api/v1/orders", s.handleOrderPurchase)
	s.mux.HandleFunc("GET /api/v1/orders/{activation_id}", s.handleOrderStatus)
	s.mux.HandleFunc("POST /api/v1/orders/{activation_id}/cancel", s.handleOrderCancel)
	s.mux.HandleFunc("POST /api/v1/orders/{activation_id}/resend", s.handleOrderResend)

	// activation-service — read-only, for support tooling and the admin
	// dashboard; every write happens through the Kernel in-process.
	s.mux.HandleFunc("GET /internal/v1/activations/{activation_id}", s.handleActivationGet)
	s.mux.HandleFunc("GET /internal/v1/activations/{activation_id}/history", s.handleActivationHistory)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, wallethttp.ErrorResponse{Code: "invalid_json", Message: "request body must be valid JSON"})
		return false
	}
	return true
}

func getUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

func getIdempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func getTraceID(r *http.Request) string {
	if traceID := strings.TrimSpace(r.Header.Get("X-Trace-Id")); traceID != "" {
		return traceID
	}
	return getIdempotencyKey(r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// --- wallet-service ---------------------------------------------------

func (s *Server) handleWalletReserve(w http.ResponseWriter, r *http.Request) {
	var req wallethttp.ReserveRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.wallet.Handler.ReserveHandler(r.Context(), getIdempotencyKey(r), req)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWalletCommit(w http.ResponseWriter, r *http.Request) {
	var req wallethttp.SettleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.wallet.Handler.CommitHandler(r.Context(), getIdempotencyKey(r), req)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWalletRollback(w http.ResponseWriter, r *http.Request) {
	var req wallethttp.SettleRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.wallet.Handler.RollbackHandler(r.Context(), getIdempotencyKey(r), req)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWalletRefund(w http.ResponseWriter, r *http.Request) {
	var req wallethttp.RefundRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.wallet.Handler.RefundHandler(r.Context(), getIdempotencyKey(r), req)
	if err != nil {
		writeWalletError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	resp, err := s.wallet.Handler.BalanceHandler(r.Context(), r.PathValue("user_id"))
	if err != nil {
		writeWalletError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWalletHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	resp, err := s.wallet.Handler.HistoryHandler(r.Context(), wallethttp.HistoryRequest{
		UserID: r.PathValue("user_id"),
		Limit:  limit,
	})
	if err != nil {
		writeWalletError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeWalletError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, walleterrors.ErrReservationNotFound), errors.Is(err, walleterrors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, wallethttp.ErrorResponse{Code: "not_found", Message: err.Error()})
	case errors.Is(err, walleterrors.ErrInsufficientBalance):
		writeJSON(w, http.StatusUnprocessableEntity, wallethttp.ErrorResponse{Code: "insufficient_balance", Message: err.Error()})
	case errors.Is(err, walleterrors.ErrReservationClosed), errors.Is(err, walleterrors.ErrIdempotencyConflict):
		writeJSON(w, http.StatusConflict, wallethttp.ErrorResponse{Code: "conflict", Message: err.Error()})
	case errors.Is(err, walleterrors.ErrInvalidInput), errors.Is(err, walleterrors.ErrIdempotencyKeyMissing):
		writeJSON(w, http.StatusBadRequest, wallethttp.ErrorResponse{Code: "invalid_request", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, wallethttp.ErrorResponse{Code: "internal_error", Message: "internal server error"})
	}
}

// --- catalog-service ----------------------------------------------------

func (s *Server) handleCatalogResolve(w http.ResponseWriter, r *http.Request) {
	var req cataloghttp.ResolveRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.catalog.Handler.ResolveHandler(r.Context(), req)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	resp, err := s.catalog.Handler.SearchHandler(r.Context(), cataloghttp.SearchRequest{
		Query: r.URL.Query().Get("q"),
		Limit: limit,
	})
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCatalogAggregate(w http.ResponseWriter, r *http.Request) {
	resp, err := s.catalog.Handler.AggregateHandler(r.Context(), r.URL.Query().Get("group_by"))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalogerrors.ErrOfferNotFound), errors.Is(err, catalogerrors.ErrReservationNotFound), errors.Is(err, catalogerrors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, cataloghttp.ErrorResponse{Code: "not_found", Message: err.Error()})
	case errors.Is(err, catalogerrors.ErrNoMatchingOffer), errors.Is(err, catalogerrors.ErrInsufficientStock):
		writeJSON(w, http.StatusUnprocessableEntity, cataloghttp.ErrorResponse{Code: "unprocessable", Message: err.Error()})
	case errors.Is(err, catalogerrors.ErrReservationNotPending), errors.Is(err, catalogerrors.ErrIdempotencyConflict):
		writeJSON(w, http.StatusConflict, cataloghttp.ErrorResponse{Code: "conflict", Message: err.Error()})
	case errors.Is(err, catalogerrors.ErrInvalidRequest), errors.Is(err, catalogerrors.ErrIdempotencyKeyRequired):
		writeJSON(w, http.StatusBadRequest, cataloghttp.ErrorResponse{Code: "invalid_request", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, cataloghttp.ErrorResponse{Code: "internal_error", Message: "internal server error"})
	}
}

// --- order-orchestrator-service ------------------------------------------

func (s *Server) handleOrderPurchase(w http.ResponseWriter, r *http.Request) {
	var req orderhttp.PurchaseRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp := s.orderOrchestrator.Handler.PurchaseHandler(r.Context(), getTraceID(r), req)
	status := http.StatusOK
	if !resp.OK {
		status = orderErrCodeStatus(resp.ErrCode)
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.orderOrchestrator.Handler.GetOrderStatusHandler(r.Context(), r.PathValue("activation_id"), getUserID(r))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOrderCancel(w http.ResponseWriter, r *http.Request) {
	resp := s.orderOrchestrator.Handler.CancelOrderHandler(r.Context(), r.PathValue("activation_id"), getUserID(r), getTraceID(r))
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleOrderResend(w http.ResponseWriter, r *http.Request) {
	resp := s.orderOrchestrator.Handler.RequestResendHandler(r.Context(), r.PathValue("activation_id"), getUserID(r))
	status := http.StatusOK
	if !resp.OK {
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

func orderErrCodeStatus(code string) int {
	switch code {
	case "INSUFFICIENT_BALANCE":
		return http.StatusUnprocessableEntity
	case "INVALID_REQUEST":
		return http.StatusBadRequest
	case "PROVIDER_ERROR":
		return http.StatusBadGateway
	case "NOT_SUPPORTED":
		return http.StatusConflict
	case "ACTIVATION_CONFLICT":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orderorchestratorerrors.ErrInsufficientBalance):
		writeJSON(w, http.StatusUnprocessableEntity, orderhttp.OKResponse{Err: err.Error()})
	case errors.Is(err, orderorchestratorerrors.ErrActivationConflict):
		writeJSON(w, http.StatusConflict, orderhttp.OKResponse{Err: err.Error()})
	case errors.Is(err, orderorchestratorerrors.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, orderhttp.OKResponse{Err: err.Error()})
	case errors.Is(err, orderorchestratorerrors.ErrNotSupported):
		writeJSON(w, http.StatusConflict, orderhttp.OKResponse{Err: err.Error()})
	case errors.Is(err, activationerrors.ErrActivationNotFound):
		writeJSON(w, http.StatusNotFound, orderhttp.OKResponse{Err: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, orderhttp.OKResponse{Err: "internal server error"})
	}
}

// --- activation-service ---------------------------------------------------

func (s *Server) handleActivationGet(w http.ResponseWriter, r *http.Request) {
	resp, err := s.activation.Handler.GetActivationHandler(r.Context(), r.PathValue("activation_id"))
	if err != nil {
		writeActivationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActivationHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := s.activation.Handler.HistoryHandler(r.Context(), r.PathValue("activation_id"))
	if err != nil {
		writeActivationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeActivationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, activationerrors.ErrActivationNotFound):
		writeJSON(w, http.StatusNotFound, activationhttp.ErrorResponse{Error: err.Error()})
	case errors.Is(err, activationerrors.ErrInvalidInput), errors.Is(err, activationerrors.ErrInvalidTransition):
		writeJSON(w, http.StatusBadRequest, activationhttp.ErrorResponse{Error: err.Error()})
	case errors.Is(err, activationerrors.ErrIdempotencyConflict), errors.Is(err, activationerrors.ErrDuplicateMessage):
		writeJSON(w, http.StatusConflict, activationhttp.ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, activationhttp.ErrorResponse{Error: "internal server error"})
	}
}
