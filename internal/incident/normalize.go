package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/beacon/internal/event"
)

// Defaults applied when a payload omits the corresponding field. They match
// the conventions of the alarm topology beacon watches.
const (
	defaultMetric    = "Errors"
	defaultNamespace = "AWS/Lambda"

	workflowSource     = "aws.states"
	workflowDetailType = "Step Functions Execution Status Change"

	unknownTitle     = "UnknownEvent"
	unknownState     = "UNKNOWN"
	unknownRegion    = "unknown"
	unknownNamespace = "Generic"
	unknownMetric    = "GenericEvent"
)

// probe holds only the discriminator fields used to classify a payload.
type probe struct {
	hasAlarmName     bool
	hasNewStateValue bool
	source           string
	detailType       string
}

// probeShape extracts discriminators leniently: key presence decides the
// alarm predicate, and a discriminator of the wrong JSON type reads as
// empty rather than failing the record.
func probeShape(obj map[string]any) probe {
	var p probe
	_, p.hasAlarmName = obj["AlarmName"]
	_, p.hasNewStateValue = obj["NewStateValue"]
	p.source, _ = obj["source"].(string)
	p.detailType, _ = obj["detail-type"].(string)
	return p
}

// alarmMessage is the CloudWatch metric alarm state change payload.
type alarmMessage struct {
	AlarmName       string `json:"AlarmName"`
	NewStateValue   string `json:"NewStateValue"`
	NewStateReason  string `json:"NewStateReason"`
	Region          string `json:"Region"`
	StateChangeTime string `json:"StateChangeTime"`
	Trigger         struct {
		MetricName string `json:"MetricName"`
		Namespace  string `json:"Namespace"`
		Dimensions []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"Dimensions"`
	} `json:"Trigger"`
}

// workflowMessage is the Step Functions execution status change payload.
type workflowMessage struct {
	Region string `json:"region"`
	Time   string `json:"time"`
	Detail struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Error  string `json:"error"`
		Cause  string `json:"cause"`
	} `json:"detail"`
}

// genericMessage covers the best-effort fields of an unclassified payload.
type genericMessage struct {
	DetailType string `json:"detail-type"`
	Region     string `json:"region"`
	Time       string `json:"time"`
	Detail     struct {
		Status string `json:"status"`
	} `json:"detail"`
}

// Normalize classifies a decoded notification message by shape and maps it
// into an Incident. The only error condition is a message body that is not
// valid JSON; every parseable payload, recognized or not, yields an
// Incident. Classification is ordered and first match wins: metric alarm,
// then workflow status change, then unknown.
func Normalize(ctx context.Context, message []byte, d event.Delivery) (*Incident, error) {
	var obj map[string]any
	if err := json.Unmarshal(message, &obj); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	p := probeShape(obj)

	switch {
	case p.hasAlarmName && p.hasNewStateValue:
		return fromAlarm(message, d), nil
	case p.source == workflowSource || strings.Contains(p.detailType, workflowDetailType):
		return fromWorkflow(message, d), nil
	default:
		log.FromContext(ctx).Warn(ctx, "unrecognized event shape, treating as generic incident",
			"detail_type", p.detailType,
			"payload_source", p.source,
			"message_id", d.MessageID,
		)
		return fromGeneric(message, d), nil
	}
}

func fromAlarm(message []byte, d event.Delivery) *Incident {
	var m alarmMessage
	// The probe already proved the message is valid JSON.
	_ = json.Unmarshal(message, &m)

	in := &Incident{
		Source:    SourceMetricAlarm,
		Title:     m.AlarmName,
		State:     m.NewStateValue,
		Reason:    m.NewStateReason,
		Region:    m.Region,
		Namespace: m.Trigger.Namespace,
		Metric:    m.Trigger.MetricName,
		Timestamp: resolveTimestamp(m.StateChangeTime, d),
		Raw:       json.RawMessage(message),
	}
	if in.Title == "" {
		in.Title = "UnknownAlarm"
	}
	if in.State == "" {
		in.State = unknownState
	}
	if in.Region == "" {
		in.Region = unknownRegion
	}
	if in.Metric == "" {
		in.Metric = defaultMetric
	}
	if in.Namespace == "" {
		in.Namespace = defaultNamespace
	}
	for _, dim := range m.Trigger.Dimensions {
		if dim.Name == "FunctionName" {
			in.ResourceName = dim.Value
		}
	}
	return in
}

func fromWorkflow(message []byte, d event.Delivery) *Incident {
	var m workflowMessage
	_ = json.Unmarshal(message, &m)

	reason := m.Detail.Error
	if reason == "" {
		reason = m.Detail.Cause
	}

	// The metric name doubles as a severity signal: a FAILED execution maps
	// to "ExecutionFailed" so the priority keywords pick it up.
	metric := "ExecutionStatus"
	if m.Detail.Status == "FAILED" {
		metric = "ExecutionFailed"
	}

	in := &Incident{
		Source:    SourceWorkflow,
		Title:     m.Detail.Name,
		State:     m.Detail.Status,
		Reason:    reason,
		Region:    m.Region,
		Namespace: "AWS/States",
		Metric:    metric,
		Timestamp: resolveTimestamp(m.Time, d),
		Raw:       json.RawMessage(message),
	}
	if in.Title == "" {
		in.Title = "UnknownStateMachine"
	}
	if in.State == "" {
		in.State = unknownState
	}
	if in.Region == "" {
		in.Region = unknownRegion
	}
	return in
}

func fromGeneric(message []byte, d event.Delivery) *Incident {
	var m genericMessage
	_ = json.Unmarshal(message, &m)

	in := &Incident{
		Source:    SourceUnknown,
		Title:     m.DetailType,
		State:     m.Detail.Status,
		Region:    m.Region,
		Namespace: unknownNamespace,
		Metric:    unknownMetric,
		Timestamp: resolveTimestamp(m.Time, d),
		Raw:       json.RawMessage(message),
	}
	if in.Title == "" {
		in.Title = unknownTitle
	}
	if in.State == "" {
		in.State = unknownState
	}
	if in.Region == "" {
		in.Region = unknownRegion
	}
	return in
}
