package reconcile

import "context"

// Store is the persistence interface for reconciliation outcomes.
type Store interface {
	Get(ctx context.Context, id string) (*Outcome, bool, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*Outcome, bool, error)
	Put(ctx context.Context, o *Outcome) error
	Recent(ctx context.Context, limit int) ([]*Outcome, error)
}
