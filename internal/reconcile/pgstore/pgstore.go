// Package pgstore provides a PostgreSQL implementation of reconcile.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/reconcile"
)

var tracer = otel.Tracer("github.com/linnemanlabs/beacon/internal/reconcile/pgstore")

//go:embed schema.sql
var schema string

// Store persists reconciliation outcomes in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const outcomeColumns = `id, fingerprint, source, summary, ticket_key, action, priority, state, processed_at`

// Get retrieves an outcome by ID.
func (s *Store) Get(ctx context.Context, id string) (*reconcile.Outcome, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + outcomeColumns + ` FROM outcomes WHERE id = $1`
	o, err := scanOutcomeRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if o == nil {
		return nil, false, nil
	}
	return o, true, nil
}

// GetByFingerprint retrieves the most recent outcome for a fingerprint.
func (s *Store) GetByFingerprint(ctx context.Context, fingerprint string) (*reconcile.Outcome, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByFingerprint", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + outcomeColumns + ` FROM outcomes WHERE fingerprint = $1 ORDER BY processed_at DESC LIMIT 1`
	o, err := scanOutcomeRow(s.pool.QueryRow(ctx, query, fingerprint))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if o == nil {
		return nil, false, nil
	}
	return o, true, nil
}

// Put inserts or updates an outcome.
func (s *Store) Put(ctx context.Context, o *reconcile.Outcome) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	query := `INSERT INTO outcomes (` + outcomeColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (id) DO UPDATE SET
		fingerprint  = EXCLUDED.fingerprint,
		source       = EXCLUDED.source,
		summary      = EXCLUDED.summary,
		ticket_key   = EXCLUDED.ticket_key,
		action       = EXCLUDED.action,
		priority     = EXCLUDED.priority,
		state        = EXCLUDED.state,
		processed_at = EXCLUDED.processed_at`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.Fingerprint, string(o.Source), o.Summary, o.TicketKey,
		string(o.Action), string(o.Priority), o.State, o.ProcessedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*reconcile.Outcome, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Recent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + outcomeColumns + ` FROM outcomes ORDER BY processed_at DESC, id DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []*reconcile.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

func scanOutcome(row pgx.Row) (*reconcile.Outcome, error) {
	var (
		o        reconcile.Outcome
		source   string
		action   string
		priority string
	)
	err := row.Scan(
		&o.ID, &o.Fingerprint, &source, &o.Summary, &o.TicketKey,
		&action, &priority, &o.State, &o.ProcessedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	o.Source = incident.Source(source)
	o.Action = reconcile.Action(action)
	o.Priority = incident.Priority(priority)
	return &o, nil
}

// scanOutcomeRow scans a single row, mapping no-rows to (nil, nil).
func scanOutcomeRow(row pgx.Row) (*reconcile.Outcome, error) {
	o, err := scanOutcome(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}
