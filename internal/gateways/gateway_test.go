package gateways

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
)

func TestOutcomeStatus(t *testing.T) {
	assert.Equal(t, enums.TransactionStatusSuccess, Outcome{Succeeded: true}.Status())
	assert.Equal(t, enums.TransactionStatusFailed, Outcome{}.Status())
}
