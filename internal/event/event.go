// Package event defines the SNS-style notification envelope beacon ingests.
package event

// Batch is the outer envelope delivered to the ingestion endpoint. Each
// record wraps one notification with a string-encoded JSON message body.
type Batch struct {
	Records []Record `json:"Records"`
}

// Record is a single envelope entry.
type Record struct {
	SNS Notification `json:"Sns"`
}

// Notification carries the embedded message and delivery metadata.
type Notification struct {
	MessageID string `json:"MessageId,omitempty"`
	TopicArn  string `json:"TopicArn,omitempty"`
	Subject   string `json:"Subject,omitempty"`
	Message   string `json:"Message"`
	Timestamp string `json:"Timestamp,omitempty"`
}

// Delivery is the envelope metadata the normalizer needs: the delivery
// timestamp is the fallback when the payload carries no event time.
type Delivery struct {
	Timestamp string
	MessageID string
}

// Delivery extracts normalizer-facing metadata from the notification.
func (n Notification) Delivery() Delivery {
	return Delivery{Timestamp: n.Timestamp, MessageID: n.MessageID}
}
