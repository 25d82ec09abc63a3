// Package dispatch drives the per-record pipeline over an inbound batch:
// decode, normalize, classify, reconcile, record the outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/jira"
	"github.com/linnemanlabs/beacon/internal/reconcile"
)

// FailMode names the batch-failure semantics. The upstream variants were
// inconsistent about whether one record's failure aborts the rest of the
// batch, so it is an explicit configuration choice here.
type FailMode string

const (
	// FailModeContinue records per-record failures and keeps processing.
	FailModeContinue FailMode = "continue"

	// FailModeAbort stops at the first fatal record failure.
	FailModeAbort FailMode = "abort"
)

// ParseFailMode validates a fail mode string from configuration.
func ParseFailMode(s string) (FailMode, error) {
	switch FailMode(s) {
	case FailModeContinue, FailModeAbort:
		return FailMode(s), nil
	}
	return "", fmt.Errorf("invalid batch fail mode %q (must be continue or abort)", s)
}

// RecordResult is the outcome of one batch record.
type RecordResult struct {
	Index   int                `json:"index"`
	Outcome *reconcile.Outcome `json:"outcome,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// BatchResult aggregates a whole ingested batch.
type BatchResult struct {
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Results   []RecordResult `json:"results"`
}

// OK reports whether every record in the batch succeeded.
func (b *BatchResult) OK() bool { return b.Failed == 0 }

// Dispatcher iterates batch records sequentially through the pipeline.
// Records are independent: dedup logic assumes no concurrent tracker calls
// for identical summaries within one batch.
type Dispatcher struct {
	rec      *reconcile.Reconciler
	store    reconcile.Store
	metrics  *reconcile.Metrics
	failMode FailMode
	logger   log.Logger
}

// NewDispatcher creates a dispatcher with the given batch-failure semantics.
func NewDispatcher(rec *reconcile.Reconciler, store reconcile.Store, m *reconcile.Metrics, failMode FailMode, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		rec:      rec,
		store:    store,
		metrics:  m,
		failMode: failMode,
		logger:   logger,
	}
}

// Dispatch processes every record in the batch. The returned error is
// non-nil only for a credential failure (fatal for the whole invocation)
// or, in abort mode, the first fatal record error; the BatchResult always
// reflects whatever work was completed.
func (d *Dispatcher) Dispatch(ctx context.Context, batch *event.Batch) (*BatchResult, error) {
	res := &BatchResult{}
	if d.metrics != nil {
		d.metrics.BatchSize.Observe(float64(len(batch.Records)))
	}

	for i, rec := range batch.Records {
		outcome, err := d.processRecord(ctx, rec)
		rr := RecordResult{Index: i, Outcome: outcome}
		if err != nil {
			rr.Error = err.Error()
			res.Failed++
			res.Results = append(res.Results, rr)
			d.countRecord("error")
			d.logger.Error(ctx, err, "record processing failed", "record", i)

			// Missing or invalid tracker credentials fail every record the
			// same way; stop before touching the rest of the batch.
			var credErr *jira.CredentialError
			if errors.As(err, &credErr) {
				return res, fmt.Errorf("record %d: %w", i, err)
			}
			if d.failMode == FailModeAbort {
				return res, fmt.Errorf("record %d: %w", i, err)
			}
			continue
		}

		res.Processed++
		res.Results = append(res.Results, rr)
		d.countRecord("ok")
	}

	return res, nil
}

func (d *Dispatcher) processRecord(ctx context.Context, rec event.Record) (*reconcile.Outcome, error) {
	in, err := incident.Normalize(ctx, []byte(rec.SNS.Message), rec.SNS.Delivery())
	if err != nil {
		return nil, err
	}
	if d.metrics != nil {
		d.metrics.IncidentsTotal.WithLabelValues(string(in.Source)).Inc()
	}

	pri := incident.Decide(in)

	outcome, err := d.rec.Reconcile(ctx, in, pri)
	if err != nil {
		return nil, err
	}

	// The outcome store is an audit trail; losing one entry must not fail a
	// reconciliation that already mutated the tracker.
	if err := d.store.Put(ctx, outcome); err != nil {
		d.logger.Error(ctx, err, "failed to persist outcome",
			"outcome_id", outcome.ID, "ticket_key", outcome.TicketKey)
	}

	d.logger.Info(ctx, "record reconciled",
		"ticket_key", outcome.TicketKey,
		"action", outcome.Action,
		"priority", outcome.Priority,
		"source", outcome.Source,
	)
	return outcome, nil
}

func (d *Dispatcher) countRecord(result string) {
	if d.metrics != nil {
		d.metrics.RecordsTotal.WithLabelValues(result).Inc()
	}
}
