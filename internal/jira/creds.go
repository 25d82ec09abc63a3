// Package jira is the issue tracker boundary: credential loading and the
// authenticated REST client used for dedup search, issue creation, and
// comment appends.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// requiredSecretKeys must all be present in the secret document or the load
// fails. Credentials are never partially returned.
var requiredSecretKeys = []string{
	"JIRA_BASE_URL",
	"JIRA_EMAIL",
	"JIRA_API_TOKEN",
	"JIRA_PROJECT_KEY",
}

// Credentials is the tracker configuration resolved from the secret store.
type Credentials struct {
	BaseURL     string
	Email       string
	APIToken    string
	ProjectKey  string
	IssueType   string // issue type by name, e.g. "Incident"
	IssueTypeID string // issue type by id, takes precedence when set
}

// SecretSource resolves the named secret to its raw JSON document.
type SecretSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads the secret document from a file on disk.
type FileSource struct {
	Path string
}

// Fetch implements SecretSource.
func (f FileSource) Fetch(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read secret file %s: %w", f.Path, err)
	}
	return b, nil
}

// ParseCredentials decodes and validates a secret document.
func ParseCredentials(raw []byte) (Credentials, error) {
	var doc map[string]string
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Credentials{}, fmt.Errorf("decode secret: %w", err)
	}

	var missing []string
	for _, k := range requiredSecretKeys {
		if doc[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Credentials{}, fmt.Errorf("secret missing required keys: %v", missing)
	}

	return Credentials{
		BaseURL:     doc["JIRA_BASE_URL"],
		Email:       doc["JIRA_EMAIL"],
		APIToken:    doc["JIRA_API_TOKEN"],
		ProjectKey:  doc["JIRA_PROJECT_KEY"],
		IssueType:   doc["JIRA_ISSUE_TYPE"],
		IssueTypeID: doc["JIRA_ISSUE_TYPE_ID"],
	}, nil
}

// CredentialError marks a fatal configuration failure: the secret was
// unreachable or incomplete. Callers abort the whole invocation on it
// rather than treating it as a per-record failure.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string { return "tracker credentials: " + e.Err.Error() }

func (e *CredentialError) Unwrap() error { return e.Err }

// CredCache fetches credentials once and memoizes them for the process
// lifetime. A failed load is memoized too: missing or malformed credentials
// are a fatal configuration state and a rotated secret requires a restart.
type CredCache struct {
	source SecretSource

	once  sync.Once
	creds Credentials
	err   error
}

// NewCredCache wraps a secret source in a process-lifetime cache.
func NewCredCache(source SecretSource) *CredCache {
	return &CredCache{source: source}
}

// Load returns the cached credentials, fetching them on first use.
func (c *CredCache) Load(ctx context.Context) (Credentials, error) {
	c.once.Do(func() {
		raw, err := c.source.Fetch(ctx)
		if err != nil {
			c.err = &CredentialError{Err: err}
			return
		}
		creds, err := ParseCredentials(raw)
		if err != nil {
			c.err = &CredentialError{Err: err}
			return
		}
		c.creds = creds
	})
	return c.creds, c.err
}
