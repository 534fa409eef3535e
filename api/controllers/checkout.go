package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	ordercontrollers "github.com/BhumikP/ecomm-firebase-sub000/api/controllers/orders"
	"github.com/BhumikP/ecomm-firebase-sub000/api/middleware"
	"github.com/BhumikP/ecomm-firebase-sub000/api/responses"
	"github.com/BhumikP/ecomm-firebase-sub000/api/validators"
	checkoutsvc "github.com/BhumikP/ecomm-firebase-sub000/internal/checkout"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/gateways/payu"
	"github.com/BhumikP/ecomm-firebase-sub000/internal/pricing"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/logger"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

// CheckoutService is the slice of the checkout orchestrator the HTTP layer drives.
type CheckoutService interface {
	Initiate(ctx context.Context, input checkoutsvc.InitiateInput) (*checkoutsvc.InitiateResult, error)
	VerifyRazorpay(ctx context.Context, input checkoutsvc.ConfirmationInput) (*checkoutsvc.Result, error)
	HandlePayUCallback(ctx context.Context, raw []byte) (*checkoutsvc.Result, error)
	PlaceCOD(ctx context.Context, input checkoutsvc.CODInput) (*checkoutsvc.Result, error)
}

type discountRequest struct {
	ProductID       uuid.UUID `json:"productId" validate:"required"`
	DiscountPerUnit int64     `json:"discountPerUnit" validate:"gte=0"`
}

type customerRequest struct {
	FirstName string `json:"firstName"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
}

type initiateRequest struct {
	UserID             string            `json:"userId" validate:"required"`
	ShippingAddress    types.Address     `json:"shippingAddress"`
	Gateway            string            `json:"gateway" validate:"required,oneof=razorpay payu"`
	ValidatedDiscounts []discountRequest `json:"validatedDiscounts,omitempty" validate:"omitempty,dive"`
	Customer           *customerRequest  `json:"customer,omitempty"`
}

type initiateResponse struct {
	TransactionID       uuid.UUID            `json:"transactionId"`
	Gateway             enums.PaymentGateway `json:"gateway"`
	Totals              pricing.Totals       `json:"totals"`
	GatewayOrderPayload any                  `json:"gatewayOrderPayload"`
}

// InitiateCheckout opens a pending transaction for an online gateway.
func InitiateCheckout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload initiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := matchCaller(r, payload.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.InitiateInput{
			UserID:          validators.SanitizeString(payload.UserID, 128),
			Gateway:         enums.PaymentGateway(payload.Gateway),
			ShippingAddress: payload.ShippingAddress,
			Discounts:       discountMap(payload.ValidatedDiscounts),
		}
		if c := payload.Customer; c != nil {
			input.Customer = payu.Customer{
				FirstName: validators.SanitizeString(c.FirstName, 60),
				Email:     validators.SanitizeString(c.Email, 254),
				Phone:     validators.SanitizeString(c.Phone, 20),
			}
		}

		result, err := svc.Initiate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, initiateResponse{
			TransactionID:       result.Transaction.ID,
			Gateway:             result.Gateway,
			Totals:              result.Totals,
			GatewayOrderPayload: result.GatewayPayload,
		})
	}
}

type codRequest struct {
	UserID             string            `json:"userId" validate:"required"`
	ShippingAddress    types.Address     `json:"shippingAddress"`
	ValidatedDiscounts []discountRequest `json:"validatedDiscounts,omitempty" validate:"omitempty,dive"`
}

type orderResponse struct {
	TransactionID *uuid.UUID                      `json:"transactionId,omitempty"`
	Order         *ordercontrollers.OrderResponse `json:"order"`
	Replayed      bool                            `json:"replayed"`
}

// PlaceCOD settles a cash-on-delivery order inside the request.
func PlaceCOD(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload codRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := matchCaller(r, payload.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceCOD(r.Context(), checkoutsvc.CODInput{
			UserID:          validators.SanitizeString(payload.UserID, 128),
			ShippingAddress: payload.ShippingAddress,
			Discounts:       discountMap(payload.ValidatedDiscounts),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, newOrderResponse(result))
	}
}

type razorpayVerifyRequest struct {
	RazorpayPaymentID string    `json:"razorpayPaymentId" validate:"required"`
	RazorpayOrderID   string    `json:"razorpayOrderId" validate:"required"`
	RazorpaySignature string    `json:"razorpaySignature" validate:"required"`
	TransactionID     uuid.UUID `json:"transactionId" validate:"required"`
}

// VerifyRazorpay applies a client-side Razorpay confirmation and settles on success.
func VerifyRazorpay(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload razorpayVerifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyRazorpay(r.Context(), checkoutsvc.ConfirmationInput{
			TransactionID: payload.TransactionID,
			OrderID:       payload.RazorpayOrderID,
			PaymentID:     payload.RazorpayPaymentID,
			Signature:     payload.RazorpaySignature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(result))
	}
}

func newOrderResponse(result *checkoutsvc.Result) orderResponse {
	if result == nil {
		return orderResponse{}
	}
	resp := orderResponse{Order: ordercontrollers.NewOrderResponse(result.Order), Replayed: result.Replayed}
	if result.Transaction != nil {
		id := result.Transaction.ID
		resp.TransactionID = &id
	}
	return resp
}

func discountMap(in []discountRequest) map[uuid.UUID]int64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[uuid.UUID]int64, len(in))
	for _, d := range in {
		out[d.ProductID] = d.DiscountPerUnit
	}
	return out
}

// matchCaller rejects bodies naming a different user than the X-User-Id header.
func matchCaller(r *http.Request, userID string) error {
	caller := middleware.UserIDFromContext(r.Context())
	if caller == "" || caller == userID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "userId does not match caller")
}
