package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BhumikP/ecomm-firebase-sub000/api/middleware"
	internalorders "github.com/BhumikP/ecomm-firebase-sub000/internal/orders"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/pagination"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/types"
)

type stubOrdersService struct {
	get    func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	list   func(ctx context.Context, userID string, params pagination.Params) (*internalorders.OrderList, error)
	update func(ctx context.Context, input internalorders.FulfillmentUpdate) (*models.Order, error)
}

func (s *stubOrdersService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.get(ctx, id)
}

func (s *stubOrdersService) List(ctx context.Context, userID string, params pagination.Params) (*internalorders.OrderList, error) {
	return s.list(ctx, userID, params)
}

func (s *stubOrdersService) UpdateFulfillment(ctx context.Context, input internalorders.FulfillmentUpdate) (*models.Order, error) {
	return s.update(ctx, input)
}

func withOrderID(req *http.Request, id string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("orderId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestListOrders(t *testing.T) {
	cursor := pagination.Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), ID: uuid.New()}.Encode()
	svc := &stubOrdersService{list: func(ctx context.Context, userID string, params pagination.Params) (*internalorders.OrderList, error) {
		assert.Equal(t, "user-1", userID)
		assert.Equal(t, 10, params.Limit)
		assert.Equal(t, cursor, params.Cursor)
		return &internalorders.OrderList{
			Orders:     []models.Order{{ID: uuid.New(), UserID: "user-1", Items: types.LineItems{{Name: "Tea", Quantity: 2}}}},
			NextCursor: "next",
		}, nil
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?userId=user-1&limit=10&cursor="+cursor, nil)
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var envelope struct {
		Data orderListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Orders, 1)
	assert.Equal(t, "next", envelope.Data.NextCursor)
	assert.Equal(t, "Tea", envelope.Data.Orders[0].Items[0].Name)
}

func TestListOrdersRejectsMalformedCursor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?userId=user-1&cursor=abc", nil)
	resp := httptest.NewRecorder()
	List(&stubOrdersService{}, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "cursor is invalid")
}

func TestListOrdersRequiresUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	List(&stubOrdersService{}, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListOrdersRejectsOtherUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?userId=user-2", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), "user-1"))
	resp := httptest.NewRecorder()
	List(&stubOrdersService{}, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestDetailHidesOtherUsersOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{get: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
		return &models.Order{ID: id, UserID: "owner"}, nil
	}}

	req := withOrderID(httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil), orderID.String())
	resp := httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	req = withOrderID(httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil), orderID.String())
	req = req.WithContext(middleware.WithUserID(req.Context(), "stranger"))
	resp = httptest.NewRecorder()
	Detail(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDetailBadID(t *testing.T) {
	req := withOrderID(httptest.NewRequest(http.MethodGet, "/api/v1/orders/nope", nil), "nope")
	resp := httptest.NewRecorder()
	Detail(&stubOrdersService{}, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUpdateFulfillment(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{update: func(ctx context.Context, input internalorders.FulfillmentUpdate) (*models.Order, error) {
		assert.Equal(t, orderID, input.OrderID)
		if input.Status == enums.FulfillmentStatusDelivered {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid fulfillment transition")
		}
		require.NotNil(t, input.TrackingNumber)
		assert.Equal(t, "AWB123", *input.TrackingNumber)
		return &models.Order{ID: orderID, FulfillmentStatus: input.Status}, nil
	}}

	req := withOrderID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"shipped","trackingNumber":" AWB123 "}`)), orderID.String())
	resp := httptest.NewRecorder()
	UpdateFulfillment(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"fulfillment_status":"shipped"`)

	req = withOrderID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"delivered"}`)), orderID.String())
	resp = httptest.NewRecorder()
	UpdateFulfillment(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	req = withOrderID(httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"lost"}`)), orderID.String())
	resp = httptest.NewRecorder()
	UpdateFulfillment(svc, nil).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
