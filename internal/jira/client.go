package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/adf"
	"github.com/linnemanlabs/beacon/internal/incident"
)

const maxErrorBody = 2048

// RetryPolicy bounds the transport behavior of every tracker call: how many
// attempts, how the backoff grows, which server statuses are worth another
// try, and how long connect and full-request may take. A slow tracker must
// not stall a whole batch.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialBackoff  time.Duration
	BackoffMultiple float64
	RetryStatuses   []int
	ConnectTimeout  time.Duration
	RequestTimeout  time.Duration
}

// DefaultRetryPolicy mirrors the upstream alerting pipeline: one try plus
// three retries at 0.5s/1s/2s on server errors, 3s connect, 8s request.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     4,
		InitialBackoff:  500 * time.Millisecond,
		BackoffMultiple: 2,
		RetryStatuses:   []int{500, 502, 503, 504},
		ConnectTimeout:  3 * time.Second,
		RequestTimeout:  8 * time.Second,
	}
}

func (p RetryPolicy) retryable(status int) bool {
	for _, s := range p.RetryStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.Multiplier = p.BackoffMultiple
	return b
}

// RequestObserver receives per-request metrics (wired by main for
// Prometheus).
type RequestObserver func(op, outcome string, seconds float64)

// NewIssue is the tracker-facing shape of a ticket to create. Project and
// issue type come from credentials, not from the caller.
type NewIssue struct {
	Summary     string
	Labels      []string
	Description adf.Doc
	Priority    incident.Priority
}

// Client issues authenticated requests against the Jira Cloud REST API.
type Client struct {
	creds   *CredCache
	policy  RetryPolicy
	http    *http.Client
	logger  log.Logger
	observe RequestObserver
}

// NewClient builds a Jira client over the given credential cache.
func NewClient(creds *CredCache, policy RetryPolicy, logger log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		creds:  creds,
		policy: policy,
		http: &http.Client{
			Timeout: policy.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: policy.ConnectTimeout}).DialContext,
			},
		},
		logger: logger,
	}
}

// SetObserver installs a per-request metrics hook.
func (c *Client) SetObserver(obs RequestObserver) {
	c.observe = obs
}

// SearchOpenIssue looks for an existing non-closed issue in the configured
// project whose summary matches, newest first. It returns found=false when
// there is no match. A non-success response is an error: the caller cannot
// safely decide append-vs-create without this result.
func (c *Client) SearchOpenIssue(ctx context.Context, summary string) (string, bool, error) {
	creds, err := c.creds.Load(ctx)
	if err != nil {
		return "", false, err
	}

	jql := fmt.Sprintf(
		"project = %q AND summary ~ %q AND statusCategory != Done ORDER BY created DESC",
		creds.ProjectKey, summary,
	)
	payload := map[string]any{
		"jql":        jql,
		"maxResults": 1,
		"fields":     []string{"key"},
	}

	c.logger.Info(ctx, "searching for existing issue", "jql", jql)

	status, body, err := c.do(ctx, "search", creds, baseURL(creds)+"/rest/api/3/search/jql", payload)
	if err != nil {
		return "", false, fmt.Errorf("jira search: %w", err)
	}
	if status >= 300 {
		return "", false, fmt.Errorf("jira search failed: status %d: %s", status, truncateBody(body))
	}

	var out struct {
		Issues []struct {
			Key string `json:"key"`
		} `json:"issues"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, fmt.Errorf("jira search: decode response: %w", err)
	}
	if len(out.Issues) == 0 {
		return "", false, nil
	}
	return out.Issues[0].Key, true, nil
}

// CreateIssue posts a new ticket and returns the tracker-assigned key.
func (c *Client) CreateIssue(ctx context.Context, issue NewIssue) (string, error) {
	creds, err := c.creds.Load(ctx)
	if err != nil {
		return "", err
	}

	fields := map[string]any{
		"project":     map[string]string{"key": creds.ProjectKey},
		"summary":     issue.Summary,
		"issuetype":   issueType(creds),
		"labels":      issue.Labels,
		"description": issue.Description,
		"priority":    map[string]string{"name": string(issue.Priority)},
	}

	c.logger.Info(ctx, "creating issue", "summary", issue.Summary, "priority", issue.Priority)

	status, body, err := c.do(ctx, "create", creds, baseURL(creds)+"/rest/api/3/issue", map[string]any{"fields": fields})
	if err != nil {
		return "", fmt.Errorf("jira create: %w", err)
	}
	if status >= 300 {
		return "", fmt.Errorf("jira create failed: status %d: %s", status, truncateBody(body))
	}

	var out struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("jira create: decode response: %w", err)
	}
	if out.Key == "" {
		return "", errors.New("jira create: response missing issue key")
	}

	c.logger.Info(ctx, "created issue", "key", out.Key)
	return out.Key, nil
}

// AddComment appends a comment to an existing issue. A non-success response
// is logged and swallowed: appending evidence is best-effort and must never
// fail the reconciliation it belongs to.
func (c *Client) AddComment(ctx context.Context, key string, body adf.Doc) error {
	creds, err := c.creds.Load(ctx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/rest/api/3/issue/%s/comment", baseURL(creds), key)

	c.logger.Info(ctx, "adding comment to existing issue", "key", key)

	status, respBody, err := c.do(ctx, "comment", creds, url, map[string]any{"body": body})
	if err != nil {
		return fmt.Errorf("jira comment: %w", err)
	}
	if status >= 300 {
		c.logger.Error(ctx, fmt.Errorf("status %d: %s", status, truncateBody(respBody)),
			"failed to add comment", "key", key)
		return nil
	}
	return nil
}

type apiResponse struct {
	status int
	body   []byte
}

// statusError marks a retryable server status so the backoff loop tries
// again; after exhaustion it is unwrapped back into a plain response.
type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("retryable status %d", e.status)
}

// do POSTs a JSON payload with Basic auth and the retry policy applied. The
// returned error is non-nil only when no HTTP response was obtained at all;
// otherwise callers branch on the returned status.
func (c *Client) do(ctx context.Context, op string, creds Credentials, url string, payload any) (int, []byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}

	start := time.Now()
	attempt := func() (*apiResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(creds.Email, creds.APIToken)

		resp, err := c.http.Do(req) //nolint:gosec // G704: url is from trusted config, not user input
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := readBody(resp)
		if err != nil {
			return nil, err
		}
		if c.policy.retryable(resp.StatusCode) {
			return nil, &statusError{status: resp.StatusCode, body: body}
		}
		return &apiResponse{status: resp.StatusCode, body: body}, nil
	}

	resp, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(c.policy.newBackOff()),
		backoff.WithMaxTries(c.policy.MaxAttempts),
	)

	status, body := 0, []byte(nil)
	switch {
	case err == nil:
		status, body = resp.status, resp.body
	default:
		var se *statusError
		if errors.As(err, &se) {
			// Retries exhausted on a server error: surface the final
			// response instead of a transport failure.
			status, body, err = se.status, se.body, nil
		}
	}

	if c.observe != nil {
		outcome := "ok"
		if err != nil || status >= 300 {
			outcome = "error"
		}
		c.observe(op, outcome, time.Since(start).Seconds())
	}
	return status, body, err
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return buf.Bytes(), nil
}

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}

func baseURL(creds Credentials) string {
	return strings.TrimRight(creds.BaseURL, "/")
}

func issueType(creds Credentials) map[string]string {
	if creds.IssueTypeID != "" {
		return map[string]string{"id": creds.IssueTypeID}
	}
	name := creds.IssueType
	if name == "" {
		name = "Incident"
	}
	return map[string]string{"name": name}
}
