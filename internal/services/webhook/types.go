package webhook

import "encoding/json"

// Gateway event types the reconciler understands. Anything else is
// logged and dropped.
const (
	EventChargeSuccess         = "charge.success"
	EventPaymentRequestSuccess = "payment_request.success"
	EventPaymentRequestPending = "payment_request.pending"
	EventPaymentFailed         = "payment.failed"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw payload bytes.
const SignatureHeader = "X-Gateway-Signature"

// Event is the inbound webhook envelope.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

type EventData struct {
	Reference   string          `json:"reference"`
	RequestCode string          `json:"request_code"`
	Amount      json.Number     `json:"amount"`
	Channel     string          `json:"channel"`
	Reason      string          `json:"reason"`
	PaidAt      string          `json:"paid_at"`
}

// requestCode returns whichever identifier the gateway sent for matching
// the event back to an invoice.
func (d EventData) requestCode() string {
	if d.RequestCode != "" {
		return d.RequestCode
	}
	return d.Reference
}

// Result summarizes what one delivery did. Dropped deliveries (unknown
// event, unmatched reference, replay) still acknowledge with Applied
// false so the gateway stops retrying.
type Result struct {
	Event     string `json:"event"`
	Applied   bool   `json:"applied"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
