package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/linnemanlabs/beacon/internal/adf"
	"github.com/linnemanlabs/beacon/internal/event"
	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/jira"
	"github.com/linnemanlabs/beacon/internal/reconcile"
	"github.com/linnemanlabs/beacon/internal/reconcile/memstore"
)

// scriptedTracker answers search/create per call and can fail on demand.
type scriptedTracker struct {
	searchErr error
	createErr error

	nextKey int
	created []jira.NewIssue
}

func (f *scriptedTracker) SearchOpenIssue(context.Context, string) (string, bool, error) {
	return "", false, f.searchErr
}

func (f *scriptedTracker) CreateIssue(_ context.Context, issue jira.NewIssue) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextKey++
	f.created = append(f.created, issue)
	return fmt.Sprintf("OPS-%d", f.nextKey), nil
}

func (f *scriptedTracker) AddComment(context.Context, string, adf.Doc) error { return nil }

func record(message string) event.Record {
	return event.Record{SNS: event.Notification{
		MessageID: "msg-1",
		Message:   message,
		Timestamp: "2026-08-30T12:00:00Z",
	}}
}

func alarmMessage(name string) string {
	return fmt.Sprintf(`{"AlarmName":%q,"NewStateValue":"ALARM","NewStateReason":"Threshold Crossed","Region":"us-east-1","Trigger":{"MetricName":"Errors","Namespace":"AWS/Lambda"}}`, name)
}

func newDispatcher(tr reconcile.Tracker, store reconcile.Store, mode FailMode) *Dispatcher {
	rec := reconcile.NewReconciler(tr, "test", nil, nil)
	return NewDispatcher(rec, store, nil, mode, nil)
}

func TestParseFailMode(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"continue", "abort"} {
		got, err := ParseFailMode(s)
		if err != nil || string(got) != s {
			t.Errorf("ParseFailMode(%q) = %q, %v", s, got, err)
		}
	}
	for _, s := range []string{"", "Continue", "halt"} {
		if _, err := ParseFailMode(s); err == nil {
			t.Errorf("ParseFailMode(%q) should fail", s)
		}
	}
}

func TestDispatch_AllRecordsSucceed(t *testing.T) {
	t.Parallel()

	tr := &scriptedTracker{}
	store := memstore.New()
	d := newDispatcher(tr, store, FailModeContinue)

	batch := &event.Batch{Records: []event.Record{
		record(alarmMessage("OrdersApiErrors")),
		record(alarmMessage("PaymentsApiErrors")),
	}}

	res, err := d.Dispatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !res.OK() || res.Processed != 2 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(res.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(res.Results))
	}
	for i, rr := range res.Results {
		if rr.Index != i || rr.Outcome == nil || rr.Error != "" {
			t.Errorf("result[%d] = %+v", i, rr)
		}
	}

	// Outcomes land in the audit store.
	stored, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Errorf("stored outcomes = %d, want 2", len(stored))
	}
}

func TestDispatch_ContinueModeSkipsBadRecord(t *testing.T) {
	t.Parallel()

	tr := &scriptedTracker{}
	d := newDispatcher(tr, memstore.New(), FailModeContinue)

	batch := &event.Batch{Records: []event.Record{
		record("not json"),
		record(alarmMessage("OrdersApiErrors")),
	}}

	res, err := d.Dispatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("continue mode must not surface per-record errors: %v", err)
	}
	if res.Processed != 1 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.Results[0].Error == "" || res.Results[0].Outcome != nil {
		t.Errorf("failed record result = %+v", res.Results[0])
	}
	if res.Results[1].Outcome == nil {
		t.Error("second record should still be processed")
	}
}

func TestDispatch_AbortModeStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	tr := &scriptedTracker{}
	d := newDispatcher(tr, memstore.New(), FailModeAbort)

	batch := &event.Batch{Records: []event.Record{
		record("not json"),
		record(alarmMessage("OrdersApiErrors")),
	}}

	res, err := d.Dispatch(context.Background(), batch)
	if err == nil {
		t.Fatal("abort mode must surface the first fatal error")
	}
	if !strings.Contains(err.Error(), "record 0") {
		t.Errorf("err = %v, want record index", err)
	}
	if res.Processed != 0 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(tr.created) != 0 {
		t.Error("no further record may be processed after abort")
	}
}

func TestDispatch_CredentialErrorAbortsEvenInContinueMode(t *testing.T) {
	t.Parallel()

	tr := &scriptedTracker{
		searchErr: &jira.CredentialError{Err: errors.New("secret missing required keys")},
	}
	d := newDispatcher(tr, memstore.New(), FailModeContinue)

	batch := &event.Batch{Records: []event.Record{
		record(alarmMessage("OrdersApiErrors")),
		record(alarmMessage("PaymentsApiErrors")),
	}}

	res, err := d.Dispatch(context.Background(), batch)
	var credErr *jira.CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("err = %v, want CredentialError", err)
	}
	if res.Failed != 1 || len(res.Results) != 1 {
		t.Errorf("credential failure should stop after the first record, got %+v", res)
	}
}

func TestDispatch_TrackerFailureIsPerRecord(t *testing.T) {
	t.Parallel()

	tr := &scriptedTracker{searchErr: errors.New("jira search failed: status 500")}
	d := newDispatcher(tr, memstore.New(), FailModeContinue)

	batch := &event.Batch{Records: []event.Record{record(alarmMessage("OrdersApiErrors"))}}

	res, err := d.Dispatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("plain tracker error must stay per-record in continue mode: %v", err)
	}
	if res.Failed != 1 || !strings.Contains(res.Results[0].Error, "dedup search") {
		t.Errorf("result = %+v", res)
	}
}

// failingStore always rejects puts.
type failingStore struct{ reconcile.Store }

func (failingStore) Put(context.Context, *reconcile.Outcome) error {
	return errors.New("disk full")
}

func TestDispatch_StorePutFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	tr := &scriptedTracker{}
	d := newDispatcher(tr, failingStore{}, FailModeContinue)

	batch := &event.Batch{Records: []event.Record{record(alarmMessage("OrdersApiErrors"))}}

	res, err := d.Dispatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("audit store failure must not fail the batch: %v", err)
	}
	if res.Processed != 1 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestDispatch_EndToEndPriorityAndSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		message     string
		wantSummary string
		wantPri     incident.Priority
	}{
		{
			name:        "5xx alarm is high",
			message:     `{"AlarmName":"OrdersApiErrors","NewStateValue":"ALARM","Trigger":{"MetricName":"5xxErrorRate","Namespace":"AWS/ApiGateway"}}`,
			wantSummary: "[CloudWatch Alarm] OrdersApiErrors is ALARM",
			wantPri:     incident.PriorityHigh,
		},
		{
			name:        "failed workflow is high",
			message:     `{"source":"aws.states","detail-type":"Step Functions Execution Status Change","region":"eu-west-1","detail":{"name":"nightly-batch","status":"FAILED","error":"States.Timeout"}}`,
			wantSummary: "[StepFunctions] nightly-batch status is FAILED",
			wantPri:     incident.PriorityHigh,
		},
		{
			name:        "plain alarm is medium",
			message:     `{"AlarmName":"QueueDepth","NewStateValue":"ALARM","Trigger":{"MetricName":"Visible","Namespace":"AWS/SQS"}}`,
			wantSummary: "[CloudWatch Alarm] QueueDepth is ALARM",
			wantPri:     incident.PriorityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := &scriptedTracker{}
			store := memstore.New()
			d := newDispatcher(tr, store, FailModeContinue)

			res, err := d.Dispatch(context.Background(), &event.Batch{
				Records: []event.Record{record(tt.message)},
			})
			if err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			out := res.Results[0].Outcome
			if out == nil {
				t.Fatalf("record failed: %s", res.Results[0].Error)
			}
			if out.Summary != tt.wantSummary {
				t.Errorf("summary = %q, want %q", out.Summary, tt.wantSummary)
			}
			if out.Priority != tt.wantPri {
				t.Errorf("priority = %q, want %q", out.Priority, tt.wantPri)
			}
			if len(tr.created) != 1 {
				t.Fatalf("creates = %d, want 1", len(tr.created))
			}
			if tr.created[0].Priority != tt.wantPri {
				t.Errorf("issue priority = %q", tr.created[0].Priority)
			}
		})
	}
}
