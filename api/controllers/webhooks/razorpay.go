package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/BhumikP/ecomm-firebase-sub000/api/responses"
	checkoutsvc "github.com/BhumikP/ecomm-firebase-sub000/internal/checkout"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
)

const (
	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"
	maxWebhookBodyBytes     = 1 << 20
)

type RazorpayWebhookService interface {
	HandleRazorpayWebhook(ctx context.Context, raw []byte, signature, deliveryID string) (*checkoutsvc.Result, error)
}

type ackResponse struct {
	Status string `json:"status"`
}

// RazorpayWebhook handles server-to-server payment events. The signature is
// checked over the raw body before anything is decoded.
func RazorpayWebhook(svc RazorpayWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(razorpaySignatureHeader))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "razorpay signature missing"))
			return
		}

		result, err := svc.HandleRazorpayWebhook(ctx, payload, signature, r.Header.Get(razorpayEventIDHeader))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status := "processed"
		switch {
		case result.Duplicate:
			status = "duplicate"
		case result.Ignored:
			status = "ignored"
		}
		if logg != nil {
			logg.Info(logg.WithField(ctx, "webhook_status", status), "razorpay webhook handled")
		}
		responses.WriteSuccess(w, ackResponse{Status: status})
	}
}
