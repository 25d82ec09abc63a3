package event

import (
	"encoding/json"
	"testing"
)

func TestBatchDecode(t *testing.T) {
	t.Parallel()

	raw := `{
		"Records": [
			{
				"Sns": {
					"MessageId": "95df01b4-ee98-5cb9-9903-4c221d41eb5e",
					"TopicArn": "arn:aws:sns:us-east-1:123456789012:alerts",
					"Subject": "ALARM: OrdersApiErrors",
					"Message": "{\"AlarmName\":\"OrdersApiErrors\"}",
					"Timestamp": "2026-08-30T12:00:00.000Z"
				}
			}
		]
	}`

	var b Batch
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(b.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(b.Records))
	}

	n := b.Records[0].SNS
	if n.MessageID != "95df01b4-ee98-5cb9-9903-4c221d41eb5e" {
		t.Errorf("MessageID = %q", n.MessageID)
	}
	if n.Message != `{"AlarmName":"OrdersApiErrors"}` {
		t.Errorf("Message = %q", n.Message)
	}
}

func TestDelivery(t *testing.T) {
	t.Parallel()

	n := Notification{
		MessageID: "m-1",
		Timestamp: "2026-08-30T12:00:00.000Z",
		Message:   "{}",
	}

	d := n.Delivery()
	if d.MessageID != "m-1" || d.Timestamp != "2026-08-30T12:00:00.000Z" {
		t.Errorf("delivery = %+v", d)
	}
}
