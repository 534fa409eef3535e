// Package payu adapts PayU hosted-checkout callbacks.
package payu

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
)

const statusSuccess = "success"

// Callback is the typed form PayU posts to the success and failure URLs.
type Callback struct {
	Key               string
	TxnID             string
	MihPayID          string
	Status            string
	Amount            string
	ProductInfo       string
	FirstName         string
	Email             string
	UDF               [5]string
	AdditionalCharges string
	Hash              string
	ErrorMessage      string
	UnmappedStatus    string
}

// ParseCallback decodes a urlencoded callback body.
func ParseCallback(raw []byte) (Callback, error) {
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return Callback{}, fmt.Errorf("decode payu callback: %w", err)
	}
	cb := Callback{
		Key:               form.Get("key"),
		TxnID:             strings.TrimSpace(form.Get("txnid")),
		MihPayID:          form.Get("mihpayid"),
		Status:            strings.ToLower(strings.TrimSpace(form.Get("status"))),
		Amount:            form.Get("amount"),
		ProductInfo:       form.Get("productinfo"),
		FirstName:         form.Get("firstname"),
		Email:             form.Get("email"),
		AdditionalCharges: form.Get("additionalCharges"),
		Hash:              strings.ToLower(strings.TrimSpace(form.Get("hash"))),
		ErrorMessage:      form.Get("error_Message"),
		UnmappedStatus:    form.Get("unmappedstatus"),
	}
	for i := range cb.UDF {
		cb.UDF[i] = form.Get(fmt.Sprintf("udf%d", i+1))
	}
	if cb.TxnID == "" {
		return Callback{}, errors.New("payu callback missing txnid")
	}
	return cb, nil
}

// Adapter verifies callbacks with the merchant salt.
type Adapter struct {
	key  string
	salt string
}

func NewAdapter(key, salt string) (*Adapter, error) {
	if key == "" || salt == "" {
		return nil, errors.New("payu merchant key and salt are required")
	}
	return &Adapter{key: key, salt: salt}, nil
}

func (a *Adapter) Gateway() enums.PaymentGateway {
	return enums.PaymentGatewayPayU
}

// Verify recomputes the reverse hash. An empty hash argument uses the one in the form.
func (a *Adapter) Verify(raw []byte, hash string) bool {
	cb, err := ParseCallback(raw)
	if err != nil {
		return false
	}
	if hash == "" {
		hash = cb.Hash
	}
	if hash == "" || cb.Key != a.key {
		return false
	}
	expected := a.ReverseHash(cb)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(hash))) == 1
}

func (a *Adapter) ExtractOutcome(raw []byte) (gateways.Outcome, error) {
	cb, err := ParseCallback(raw)
	if err != nil {
		return gateways.Outcome{}, err
	}
	outcome := gateways.Outcome{
		Gateway:          enums.PaymentGatewayPayU,
		TransactionRef:   cb.TxnID,
		GatewayPaymentID: cb.MihPayID,
		Succeeded:        cb.Status == statusSuccess,
	}
	if !outcome.Succeeded {
		outcome.Reason = firstNonEmpty(cb.ErrorMessage, cb.UnmappedStatus, cb.Status, "payment failed")
	}
	return outcome, nil
}

// ReverseHash is sha512(salt|status||||||udf5|udf4|udf3|udf2|udf1|email|firstname|productinfo|amount|txnid|key),
// prefixed with additionalCharges when PayU reports them.
func (a *Adapter) ReverseHash(cb Callback) string {
	parts := []string{a.salt, cb.Status, "", "", "", "", ""}
	for i := len(cb.UDF) - 1; i >= 0; i-- {
		parts = append(parts, cb.UDF[i])
	}
	parts = append(parts, cb.Email, cb.FirstName, cb.ProductInfo, cb.Amount, cb.TxnID, cb.Key)
	if cb.AdditionalCharges != "" {
		parts = append([]string{cb.AdditionalCharges}, parts...)
	}
	return sha512Hex(strings.Join(parts, "|"))
}

func sha512Hex(value string) string {
	sum := sha512.Sum512([]byte(value))
	return hex.EncodeToString(sum[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
