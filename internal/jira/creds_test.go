package jira

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validSecret() []byte {
	return []byte(`{
		"JIRA_BASE_URL": "https://example.atlassian.net",
		"JIRA_EMAIL": "bot@example.com",
		"JIRA_API_TOKEN": "tok-123",
		"JIRA_PROJECT_KEY": "OPS"
	}`)
}

func TestParseCredentials(t *testing.T) {
	t.Parallel()

	creds, err := ParseCredentials(validSecret())
	if err != nil {
		t.Fatalf("ParseCredentials: %v", err)
	}
	if creds.BaseURL != "https://example.atlassian.net" ||
		creds.Email != "bot@example.com" ||
		creds.APIToken != "tok-123" ||
		creds.ProjectKey != "OPS" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
	if creds.IssueType != "" || creds.IssueTypeID != "" {
		t.Errorf("optional fields should be empty, got %+v", creds)
	}
}

func TestParseCredentials_OptionalIssueType(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"JIRA_BASE_URL": "https://example.atlassian.net",
		"JIRA_EMAIL": "bot@example.com",
		"JIRA_API_TOKEN": "tok-123",
		"JIRA_PROJECT_KEY": "OPS",
		"JIRA_ISSUE_TYPE": "Bug",
		"JIRA_ISSUE_TYPE_ID": "10004"
	}`)
	creds, err := ParseCredentials(raw)
	if err != nil {
		t.Fatalf("ParseCredentials: %v", err)
	}
	if creds.IssueType != "Bug" || creds.IssueTypeID != "10004" {
		t.Errorf("issue type fields = %q/%q", creds.IssueType, creds.IssueTypeID)
	}
}

func TestParseCredentials_MissingKeys(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"JIRA_BASE_URL": "https://example.atlassian.net"}`)
	_, err := ParseCredentials(raw)
	if err == nil {
		t.Fatal("expected error for incomplete secret")
	}
	for _, k := range []string{"JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_PROJECT_KEY"} {
		if !strings.Contains(err.Error(), k) {
			t.Errorf("error %q missing key name %s", err, k)
		}
	}
	if strings.Contains(err.Error(), "JIRA_BASE_URL") {
		t.Errorf("error %q names a key that was present", err)
	}
}

func TestParseCredentials_EmptyValueIsMissing(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"JIRA_BASE_URL": "https://example.atlassian.net",
		"JIRA_EMAIL": "",
		"JIRA_API_TOKEN": "tok-123",
		"JIRA_PROJECT_KEY": "OPS"
	}`)
	_, err := ParseCredentials(raw)
	if err == nil || !strings.Contains(err.Error(), "JIRA_EMAIL") {
		t.Fatalf("empty value should count as missing, got %v", err)
	}
}

func TestParseCredentials_BadJSON(t *testing.T) {
	t.Parallel()

	if _, err := ParseCredentials([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secret.json")
	if err := os.WriteFile(path, validSecret(), 0o600); err != nil {
		t.Fatal(err)
	}

	raw, err := FileSource{Path: path}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, err := ParseCredentials(raw); err != nil {
		t.Fatalf("fetched secret did not parse: %v", err)
	}

	if _, err := (FileSource{Path: filepath.Join(t.TempDir(), "absent")}).Fetch(context.Background()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

// countingSource fails or succeeds on demand and counts fetches.
type countingSource struct {
	raw   []byte
	err   error
	calls int
}

func (s *countingSource) Fetch(context.Context) ([]byte, error) {
	s.calls++
	return s.raw, s.err
}

func TestCredCache_MemoizesSuccess(t *testing.T) {
	t.Parallel()

	src := &countingSource{raw: validSecret()}
	cache := NewCredCache(src)

	for i := 0; i < 3; i++ {
		creds, err := cache.Load(context.Background())
		if err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
		if creds.ProjectKey != "OPS" {
			t.Fatalf("Load %d: project = %q", i, creds.ProjectKey)
		}
	}
	if src.calls != 1 {
		t.Errorf("source fetched %d times, want 1", src.calls)
	}
}

func TestCredCache_MemoizesFailure(t *testing.T) {
	t.Parallel()

	src := &countingSource{err: errors.New("secret store down")}
	cache := NewCredCache(src)

	for i := 0; i < 3; i++ {
		_, err := cache.Load(context.Background())
		var ce *CredentialError
		if !errors.As(err, &ce) {
			t.Fatalf("Load %d: error = %v, want CredentialError", i, err)
		}
	}
	if src.calls != 1 {
		t.Errorf("failed load fetched %d times, want 1", src.calls)
	}
}

func TestCredCache_ParseFailureIsCredentialError(t *testing.T) {
	t.Parallel()

	cache := NewCredCache(&countingSource{raw: []byte(`{}`)})
	_, err := cache.Load(context.Background())

	var ce *CredentialError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want CredentialError", err)
	}
	if !strings.Contains(err.Error(), "tracker credentials") {
		t.Errorf("error text = %q", err)
	}
	if ce.Unwrap() == nil {
		t.Error("CredentialError should wrap the cause")
	}
}
