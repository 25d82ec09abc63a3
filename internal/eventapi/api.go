// Package eventapi exposes the ingestion and outcome-lookup HTTP endpoints.
package eventapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/beacon/internal/dispatch"
	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/reconcile"
)

const defaultOutcomeLimit = 50

// BatchService defines the dispatch operation eventapi needs.
type BatchService interface {
	Dispatch(ctx context.Context, batch *event.Batch) (*dispatch.BatchResult, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    BatchService
	store  reconcile.Store
}

// New creates a new API handler.
func New(logger log.Logger, svc BatchService, store reconcile.Store) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("batch service is required"))
	}
	if store == nil {
		panic(xerrors.New("outcome store is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
		store:  store,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", a.handleIngestBatch)
		r.Get("/outcomes", a.handleListOutcomes)
		r.Get("/outcomes/{id}", a.handleGetOutcome)
	})
}

func (a *API) handleGetOutcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("beacon.outcome.id", id))

	o, ok, err := a.store.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get outcome", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (a *API) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	limit := defaultOutcomeLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	outcomes, err := a.store.Recent(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list outcomes")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if outcomes == nil {
		outcomes = []*reconcile.Outcome{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
