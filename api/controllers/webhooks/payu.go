package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/BhumikP/ecomm-firebase-sub000/api/responses"
	checkoutsvc "github.com/BhumikP/ecomm-firebase-sub000/internal/checkout"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
)

type PayUCallbackService interface {
	HandlePayUCallback(ctx context.Context, raw []byte) (*checkoutsvc.Result, error)
}

// PayUCallback accepts PayU's form POST. It always answers 200: PayU retries
// anything else, and by the time the handler returns the outcome is recorded
// or the failure is logged for reconciliation.
func PayUCallback(svc PayUCallbackService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			logError(ctx, logg, "payu callback received without a service", nil)
			responses.WriteStatus(w, http.StatusOK, ackResponse{Status: "error"})
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			logError(ctx, logg, "read payu callback", err)
			responses.WriteStatus(w, http.StatusOK, ackResponse{Status: "error"})
			return
		}

		result, err := svc.HandlePayUCallback(ctx, payload)
		if err != nil {
			logError(ctx, logg, "payu callback processing failed", err)
			responses.WriteStatus(w, http.StatusOK, ackResponse{Status: "error"})
			return
		}

		status := "processed"
		switch {
		case !result.Verified:
			status = "rejected"
		case result.Ignored:
			status = "ignored"
		}
		responses.WriteStatus(w, http.StatusOK, ackResponse{Status: status})
	}
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
