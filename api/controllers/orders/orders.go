package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/BhumikP/ecomm-firebase-sub000/api/middleware"
	"github.com/BhumikP/ecomm-firebase-sub000/api/responses"
	"github.com/BhumikP/ecomm-firebase-sub000/api/validators"
	internalorders "github.com/BhumikP/ecomm-firebase-sub000/internal/orders"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/pagination"
	"github.com/google/uuid"
)

// Service is the order read model plus the fulfillment transition.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID string, params pagination.Params) (*internalorders.OrderList, error)
	UpdateFulfillment(ctx context.Context, input internalorders.FulfillmentUpdate) (*models.Order, error)
}

// List returns a user's orders newest first.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			userID = middleware.UserIDFromContext(r.Context())
		}
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "userId is required"))
			return
		}
		if caller := middleware.UserIDFromContext(r.Context()); caller != "" && caller != userID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cannot list another user's orders"))
			return
		}

		page, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), userID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderListResponse(list))
	}
}

// Detail returns one order with its items.
func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// hide existence from other callers
		if caller := middleware.UserIDFromContext(r.Context()); caller != "" && caller != order.UserID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, NewOrderResponse(order))
	}
}

type fulfillmentRequest struct {
	Status         string  `json:"status" validate:"required,oneof=processing shipped delivered cancelled"`
	TrackingNumber *string `json:"trackingNumber,omitempty" validate:"omitempty,max=64"`
}

// UpdateFulfillment advances an order along processing, shipped, delivered or cancelled.
func UpdateFulfillment(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload fulfillmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var tracking *string
		if payload.TrackingNumber != nil {
			v := validators.SanitizeString(*payload.TrackingNumber, 64)
			tracking = &v
		}

		order, err := svc.UpdateFulfillment(r.Context(), internalorders.FulfillmentUpdate{
			OrderID:        orderID,
			Status:         enums.FulfillmentStatus(payload.Status),
			TrackingNumber: tracking,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, NewOrderResponse(order))
	}
}
