package payu

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/config"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
)

// PaymentRequest is the auto-submitted form that sends the shopper to PayU.
type PaymentRequest struct {
	Action string            `json:"action"`
	Fields map[string]string `json:"fields"`
}

// Customer is the shopper identity PayU shows on its hosted page.
type Customer struct {
	FirstName string
	Email     string
	Phone     string
}

// FormatAmount renders minor units as PayU's two-decimal major-unit string.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// BuildPaymentRequest signs the forward hash
// sha512(key|txnid|amount|productinfo|firstname|email|udf1|udf2|udf3|udf4|udf5||||||salt).
func (a *Adapter) BuildPaymentRequest(cfg config.PayUConfig, txn *models.Transaction, customer Customer) PaymentRequest {
	fields := map[string]string{
		"key":         a.key,
		"txnid":       txn.ID.String(),
		"amount":      FormatAmount(txn.TotalMinor),
		"productinfo": productInfo(txn),
		"firstname":   firstNonEmpty(customer.FirstName, txn.ShippingAddress.Name, "Customer"),
		"email":       customer.Email,
		"phone":       firstNonEmpty(customer.Phone, txn.ShippingAddress.Phone),
		"udf1":        txn.UserID,
		"surl":        cfg.SuccessURL,
		"furl":        cfg.FailureURL,
	}
	parts := []string{
		fields["key"], fields["txnid"], fields["amount"], fields["productinfo"],
		fields["firstname"], fields["email"],
		fields["udf1"], "", "", "", "",
		"", "", "", "", "",
		a.salt,
	}
	fields["hash"] = sha512Hex(strings.Join(parts, "|"))
	return PaymentRequest{Action: cfg.BaseURL, Fields: fields}
}

func productInfo(txn *models.Transaction) string {
	if len(txn.Items) == 0 {
		return "order"
	}
	name := txn.Items[0].Name
	if len(txn.Items) > 1 {
		name += " and more"
	}
	return name
}
