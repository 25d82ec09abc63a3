package eventapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/jira"
)

// batchResponse is the ingestion endpoint's reply. Status is "ok" only when
// every record in the batch succeeded.
type batchResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed,omitempty"`
	Results   any    `json:"results,omitempty"`
}

func (a *API) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var batch event.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		http.Error(w, `{"error":"invalid envelope"}`, http.StatusBadRequest)
		return
	}
	if len(batch.Records) == 0 {
		http.Error(w, `{"error":"empty batch"}`, http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("beacon.batch.records", len(batch.Records)))

	res, err := a.svc.Dispatch(r.Context(), &batch)
	if err != nil {
		var credErr *jira.CredentialError
		if errors.As(err, &credErr) {
			a.logger.Error(r.Context(), err, "tracker configuration unavailable")
			http.Error(w, `{"error":"tracker configuration unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		a.logger.Error(r.Context(), err, "batch aborted")
		writeJSON(w, http.StatusBadGateway, batchResponse{
			Status:    "failed",
			Processed: res.Processed,
			Failed:    res.Failed,
			Results:   res.Results,
		})
		return
	}

	span.SetAttributes(
		attribute.Int("beacon.batch.processed", res.Processed),
		attribute.Int("beacon.batch.failed", res.Failed),
	)

	if !res.OK() {
		writeJSON(w, http.StatusMultiStatus, batchResponse{
			Status:    "partial",
			Processed: res.Processed,
			Failed:    res.Failed,
			Results:   res.Results,
		})
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{
		Status:    "ok",
		Processed: res.Processed,
		Results:   res.Results,
	})
}
