package razorpay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
)

// Webhook event names that carry a payment outcome.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"

	// SignatureHeader carries the HMAC of the raw body.
	SignatureHeader = "X-Razorpay-Signature"
	// EventIDHeader carries Razorpay's unique delivery id.
	EventIDHeader = "X-Razorpay-Event-Id"
)

// WebhookEvent is the subset of a Razorpay webhook body we act on.
type WebhookEvent struct {
	Entity    string         `json:"entity"`
	AccountID string         `json:"account_id"`
	Event     string         `json:"event"`
	CreatedAt int64          `json:"created_at"`
	Payload   WebhookPayload `json:"payload"`
}

type WebhookPayload struct {
	Payment struct {
		Entity PaymentEntity `json:"entity"`
	} `json:"payment"`
	Order struct {
		Entity OrderEntity `json:"entity"`
	} `json:"order"`
}

type PaymentEntity struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	Status           string          `json:"status"`
	Amount           int64           `json:"amount"`
	Currency         string          `json:"currency"`
	Method           string          `json:"method"`
	ErrorCode        string          `json:"error_code"`
	ErrorDescription string          `json:"error_description"`
	Notes            json.RawMessage `json:"notes"`
}

type OrderEntity struct {
	ID      string          `json:"id"`
	Receipt string          `json:"receipt"`
	Status  string          `json:"status"`
	Amount  int64           `json:"amount"`
	Notes   json.RawMessage `json:"notes"`
}

// DeliveryID identifies a delivery for replay protection. The header id is
// preferred; otherwise the payment id and event name are combined.
func (e WebhookEvent) DeliveryID(headerID string) string {
	if id := strings.TrimSpace(headerID); id != "" {
		return id
	}
	ref := e.Payload.Payment.Entity.ID
	if ref == "" {
		ref = e.Payload.Order.Entity.ID
	}
	if ref == "" {
		return ""
	}
	return ref + ":" + e.Event
}

// WebhookAdapter verifies server-to-server webhooks with the webhook secret.
type WebhookAdapter struct {
	secret string
}

func NewWebhookAdapter(secret string) (*WebhookAdapter, error) {
	if secret == "" {
		return nil, errors.New("razorpay webhook secret is required")
	}
	return &WebhookAdapter{secret: secret}, nil
}

func (a *WebhookAdapter) Gateway() enums.PaymentGateway {
	return enums.PaymentGatewayRazorpay
}

// Verify checks the header signature over the untouched request body.
func (a *WebhookAdapter) Verify(raw []byte, signature string) bool {
	return validSignature(a.secret, raw, signature)
}

// Decode parses a verified body.
func (a *WebhookAdapter) Decode(raw []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode razorpay webhook: %w", err)
	}
	return event, nil
}

// ExtractOutcome maps a webhook to an outcome. Events other than captured,
// failed and order.paid return gateways.ErrUnsupportedEvent.
func (a *WebhookAdapter) ExtractOutcome(raw []byte) (gateways.Outcome, error) {
	event, err := a.Decode(raw)
	if err != nil {
		return gateways.Outcome{}, err
	}
	return OutcomeFromEvent(event)
}

// OutcomeFromEvent is ExtractOutcome for an already decoded event.
func OutcomeFromEvent(event WebhookEvent) (gateways.Outcome, error) {
	payment := event.Payload.Payment.Entity
	order := event.Payload.Order.Entity
	outcome := gateways.Outcome{
		Gateway:          enums.PaymentGatewayRazorpay,
		GatewayOrderID:   firstNonEmpty(payment.OrderID, order.ID),
		GatewayPaymentID: payment.ID,
		TransactionRef:   firstNonEmpty(order.Receipt, noteValue(payment.Notes, noteTransactionID), noteValue(order.Notes, noteTransactionID)),
	}
	switch event.Event {
	case EventPaymentCaptured, EventOrderPaid:
		outcome.Succeeded = true
	case EventPaymentFailed:
		outcome.Reason = firstNonEmpty(payment.ErrorDescription, payment.ErrorCode, "payment failed")
	default:
		return gateways.Outcome{}, gateways.ErrUnsupportedEvent
	}
	if outcome.GatewayOrderID == "" && outcome.TransactionRef == "" {
		return gateways.Outcome{}, errors.New("razorpay webhook carries no order reference")
	}
	return outcome, nil
}

// Razorpay sends notes as an object, or as an empty array when unset.
func noteValue(raw json.RawMessage, key string) string {
	if len(raw) == 0 {
		return ""
	}
	var notes map[string]any
	if err := json.Unmarshal(raw, &notes); err != nil {
		return ""
	}
	if v, ok := notes[key].(string); ok {
		return v
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
