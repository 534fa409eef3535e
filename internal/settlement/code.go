package settlement

import (
	"time"

	"github.com/google/uuid"
)

const orderCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewOrderCode returns a human-readable code of the form ORD-YYYYMMDD-XXXXXX.
func NewOrderCode(at time.Time) string {
	random := uuid.New()
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = orderCodeAlphabet[int(random[i])%len(orderCodeAlphabet)]
	}
	return "ORD-" + at.UTC().Format("20060102") + "-" + string(suffix)
}
