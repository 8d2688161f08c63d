package observer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
	"github.com/oshokin/deadman-vault/internal/logger"
	rpc "github.com/oshokin/deadman-vault/internal/rpc/v1"
	"github.com/oshokin/deadman-vault/internal/service/ledger"
)

// Service is the read side of the ledger.
type Service interface {
	GetVault(ctx context.Context, address domain.Address) (*ledger.View, error)
	ListVaults(ctx context.Context) []*ledger.View
	Records(ctx context.Context, address domain.Address, afterSeq uint64, limit int) ([]*domain.Record, error)
	LastSeq() uint64
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// healthResponse reports liveness and the journal head.
type healthResponse struct {
	Status  string `json:"status"`
	LastSeq uint64 `json:"last_seq"`
}

// vaultsResponse lists vaults in deployment order.
type vaultsResponse struct {
	Vaults []*rpc.Vault `json:"vaults"`
}

// recordsResponse lists journal entries in sequence order.
type recordsResponse struct {
	Records []*rpc.Record `json:"records"`
}

// handler serves the observer routes.
type handler struct {
	service Service
}

// NewRouter builds the observer router.
func NewRouter(service Service) *chi.Mux {
	h := &handler{service: service}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Route("/vaults", func(r chi.Router) {
		r.Get("/", h.listVaults)
		r.Get("/{address}", h.getVault)
		r.Get("/{address}/records", h.listRecords)
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, &healthResponse{Status: "ok", LastSeq: h.service.LastSeq()})
}

func (h *handler) listVaults(w http.ResponseWriter, r *http.Request) {
	views := h.service.ListVaults(r.Context())

	response := &vaultsResponse{Vaults: make([]*rpc.Vault, 0, len(views))}
	for _, view := range views {
		response.Vaults = append(response.Vaults, rpc.NewVault(view.Vault, view.Now))
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *handler) getVault(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetVault(r.Context(), address)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, rpc.NewVault(view.Vault, view.Now))
}

func (h *handler) listRecords(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()

	var (
		afterSeq uint64
		limit    int
		err      error
	)

	if value := query.Get("after_seq"); value != "" {
		if afterSeq, err = strconv.ParseUint(value, 10, 64); err != nil {
			writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "after_seq must be a non-negative integer"})
			return
		}
	}

	if value := query.Get("limit"); value != "" {
		if limit, err = strconv.Atoi(value); err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, &errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
	}

	records, err := h.service.Records(r.Context(), address, afterSeq, limit)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, &recordsResponse{Records: rpc.NewRecords(records)})
}

// addressParam parses the {address} URL parameter, answering 400 when it is malformed.
func addressParam(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	value := chi.URLParam(r, "address")
	if !common.IsHexAddress(value) {
		writeJSON(w, http.StatusBadRequest, &errorResponse{
			Error:  "address must be a hex address",
			Reason: rpc.ReasonInvalidAddress,
		})

		return domain.Address{}, false
	}

	return common.HexToAddress(value), true
}

// writeError maps a ledger error to an HTTP status.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrVaultNotFound) {
		writeJSON(w, http.StatusNotFound, &errorResponse{Error: err.Error(), Reason: rpc.ReasonVaultNotFound})
		return
	}

	logger.ErrorKV(ctx, "Observer request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, &errorResponse{Error: "internal ledger error"})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	// The status line is already sent, nothing useful can be done on failure.
	_ = json.NewEncoder(w).Encode(body)
}

// requestLogger logs every request through the shared zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()

		next.ServeHTTP(ww, r)

		logger.DebugKV(r.Context(), "Observer request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started).String(),
		)
	})
}
