// Package cod synthesizes the outcome for cash-on-delivery placements.
package cod

import (
	"errors"
	"strings"

	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
)

// Adapter has nothing to verify: the placement request itself is the confirmation.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Gateway() enums.PaymentGateway {
	return enums.PaymentGatewayCOD
}

func (a *Adapter) Verify([]byte, string) bool {
	return true
}

// ExtractOutcome treats raw as the transaction reference.
func (a *Adapter) ExtractOutcome(raw []byte) (gateways.Outcome, error) {
	ref := strings.TrimSpace(string(raw))
	if ref == "" {
		return gateways.Outcome{}, errors.New("cod outcome requires a transaction reference")
	}
	return gateways.Outcome{
		Gateway:        enums.PaymentGatewayCOD,
		TransactionRef: ref,
		Succeeded:      true,
	}, nil
}
