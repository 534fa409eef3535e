package razorpay

import (
	"context"
	"errors"
	"fmt"

	razorpaysdk "github.com/razorpay/razorpay-go"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/config"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
)

const (
	noteTransactionID = "transaction_id"
	noteUserID        = "user_id"
)

// orderCreator is the slice of the Razorpay SDK order resource we call.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Registration is what the client needs to open the checkout widget.
type Registration struct {
	GatewayOrderID string
	Payload        map[string]any
}

// OrderRegistrar creates the gateway-side order a checkout widget pays against.
type OrderRegistrar struct {
	orders orderCreator
	keyID  string
}

// NewOrderRegistrar builds a registrar backed by the Razorpay REST client.
func NewOrderRegistrar(cfg config.RazorpayConfig) (*OrderRegistrar, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	client := razorpaysdk.NewClient(cfg.KeyID, cfg.KeySecret)
	return &OrderRegistrar{orders: client.Order, keyID: cfg.KeyID}, nil
}

// Register creates a Razorpay order for the transaction total. The receipt is
// the transaction id so webhooks can be matched without the order mapping.
func (r *OrderRegistrar) Register(ctx context.Context, txn *models.Transaction) (*Registration, error) {
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"amount":   txn.TotalMinor,
		"currency": string(txn.Currency),
		"receipt":  txn.ID.String(),
		"notes": map[string]interface{}{
			noteTransactionID: txn.ID.String(),
			noteUserID:        txn.UserID,
		},
	}
	body, err := r.orders.Create(data, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create razorpay order")
	}
	orderID, _ := body["id"].(string)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("razorpay order response missing id: %v", body["error"]))
	}
	return &Registration{
		GatewayOrderID: orderID,
		Payload: map[string]any{
			"keyId":         r.keyID,
			"orderId":       orderID,
			"amount":        txn.TotalMinor,
			"currency":      txn.Currency,
			"receipt":       txn.ID.String(),
			"transactionId": txn.ID.String(),
		},
	}, nil
}
