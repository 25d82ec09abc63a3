// Package reconcile decides, per incident, whether to append evidence to an
// already-open tracker ticket or to open a new one.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/beacon/internal/adf"
	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/jira"
)

// Tracker is the issue tracker surface the reconciler drives.
type Tracker interface {
	SearchOpenIssue(ctx context.Context, summary string) (key string, found bool, err error)
	CreateIssue(ctx context.Context, issue jira.NewIssue) (string, error)
	AddComment(ctx context.Context, key string, body adf.Doc) error
}

// Reconciler owns the append-or-create decision for one incident at a time.
type Reconciler struct {
	tracker Tracker
	env     string
	logger  log.Logger
	metrics *Metrics
}

// NewReconciler creates a reconciler tagging created tickets with the given
// environment name.
func NewReconciler(tracker Tracker, env string, logger log.Logger, m *Metrics) *Reconciler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Reconciler{
		tracker: tracker,
		env:     env,
		logger:  logger,
		metrics: m,
	}
}

// Summary builds the tracker-facing dedup key for an incident. The prefix
// differs per source so a workflow failure and a metric alarm with the same
// name never collapse into one ticket.
func Summary(in *incident.Incident) string {
	if in.Source == incident.SourceWorkflow {
		return fmt.Sprintf("[StepFunctions] %s status is %s", in.Title, in.State)
	}
	return fmt.Sprintf("[CloudWatch Alarm] %s is %s", in.Title, in.State)
}

// Reconcile searches for an open ticket with the incident's summary and
// either appends a comment to it or creates a new ticket. A search failure
// propagates: without the search result the append-vs-create branch cannot
// be decided safely. A comment failure is absorbed; the existing key is
// still the result.
func (r *Reconciler) Reconcile(ctx context.Context, in *incident.Incident, pri incident.Priority) (*Outcome, error) {
	summary := Summary(in)
	L := r.logger.With("summary", summary, "source", in.Source)

	key, found, err := r.tracker.SearchOpenIssue(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("dedup search: %w", err)
	}

	action := ActionCreated
	if found {
		action = ActionCommented
		L.Info(ctx, "open ticket exists, appending evidence", "key", key)
		if err := r.tracker.AddComment(ctx, key, adf.Comment(in)); err != nil {
			// Best-effort: the ticket already tracks this incident.
			L.Error(ctx, err, "comment append failed", "key", key)
		}
	} else {
		key, err = r.tracker.CreateIssue(ctx, jira.NewIssue{
			Summary:     summary,
			Labels:      []string{"cloudwatch-auto", "env-" + r.env},
			Description: adf.Description(in),
			Priority:    pri,
		})
		if err != nil {
			return nil, fmt.Errorf("create ticket: %w", err)
		}
		L.Info(ctx, "created new ticket", "key", key, "priority", pri)
	}

	if r.metrics != nil {
		r.metrics.TicketsTotal.WithLabelValues(string(action)).Inc()
		r.metrics.PriorityTotal.WithLabelValues(string(pri)).Inc()
	}

	return &Outcome{
		ID:          ulid.Make().String(),
		Fingerprint: in.Fingerprint(),
		Source:      in.Source,
		Summary:     summary,
		TicketKey:   key,
		Action:      action,
		Priority:    pri,
		State:       in.State,
		ProcessedAt: time.Now().UTC(),
	}, nil
}
