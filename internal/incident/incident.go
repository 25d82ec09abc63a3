// Package incident converts heterogeneous monitoring payloads into one
// canonical Incident record and derives its ticket priority.
package incident

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/linnemanlabs/beacon/internal/event"
)

// Source identifies the kind of monitoring event an Incident came from.
// Values match the wire-level source tags emitted upstream.
type Source string

const (
	// SourceMetricAlarm is a CloudWatch metric alarm state transition.
	SourceMetricAlarm Source = "cloudwatch_alarm"

	// SourceWorkflow is a Step Functions execution status change.
	SourceWorkflow Source = "stepfunctions"

	// SourceUnknown is any payload shape we could not classify.
	SourceUnknown Source = "unknown"
)

// Incident is the canonical representation of one inbound monitoring event.
// It is built once by Normalize and is not mutated afterwards.
type Incident struct {
	Source       Source          `json:"source"`
	Title        string          `json:"title"`
	State        string          `json:"state"`
	Reason       string          `json:"reason,omitempty"`
	Region       string          `json:"region,omitempty"`
	Namespace    string          `json:"namespace,omitempty"`
	Metric       string          `json:"metric,omitempty"`
	ResourceName string          `json:"resource_name,omitempty"`
	Timestamp    string          `json:"timestamp,omitempty"`
	Raw          json.RawMessage `json:"raw_payload,omitempty"`
}

// Fingerprint returns a stable identity for the incident derived from
// (source, title, state). Unlike the tracker-facing summary text it does
// not depend on wording, so it survives summary format changes.
func (in *Incident) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(in.Source))
	h.Write([]byte{0})
	h.Write([]byte(in.Title))
	h.Write([]byte{0})
	h.Write([]byte(in.State))
	return hex.EncodeToString(h.Sum(nil))
}

// resolveTimestamp prefers the event's own time field over the envelope's
// delivery timestamp.
func resolveTimestamp(eventTime string, d event.Delivery) string {
	if eventTime != "" {
		return eventTime
	}
	return d.Timestamp
}
