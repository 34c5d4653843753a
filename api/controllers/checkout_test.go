package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/api/middleware"
	"github.com/avilesmarco/storefront-backend/internal/cart"
	"github.com/avilesmarco/storefront-backend/internal/checkout"
	"github.com/avilesmarco/storefront-backend/pkg/auth"
	"github.com/avilesmarco/storefront-backend/pkg/db/models"
	"github.com/avilesmarco/storefront-backend/pkg/enums"
)

type stubCheckoutService struct {
	result    *checkout.Result
	err       error
	lastInput checkout.Input
}

func (s *stubCheckoutService) Execute(ctx context.Context, actor auth.AccessTokenPayload, input checkout.Input) (*checkout.Result, error) {
	s.lastInput = input
	return s.result, s.err
}

const checkoutBody = `{
	"shipping_address": {
		"name": "Ada Lovelace",
		"email": "ada@example.com",
		"street": "1 Analytical Way",
		"city": "London",
		"state": "LDN",
		"zip_code": "E1 6AN",
		"country": "UK"
	},
	"payment_method": "credit_card"
}`

func newCheckoutRequest(sessionID string, userID uuid.UUID, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(checkoutBody))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	ctx := middleware.WithSessionID(req.Context(), sessionID)
	ctx = middleware.WithUserID(ctx, userID.String())
	ctx = middleware.WithRole(ctx, string(enums.RoleCustomer))
	return req.WithContext(ctx)
}

func TestCheckoutCreatesOrderAndClearsCart(t *testing.T) {
	manager := newTestManager(t)
	sessionID := uuid.NewString()
	userID := uuid.New()

	if _, err := manager.BindPrincipal(context.Background(), sessionID, userID); err != nil {
		t.Fatalf("bind principal: %v", err)
	}
	if _, err := manager.AddItem(context.Background(), sessionID, cart.Line{
		ProductID:      uuid.New(),
		Name:           "Widget",
		UnitPriceCents: 4000,
		Quantity:       2,
	}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	order := &models.Order{
		ID:            uuid.New(),
		OwnerID:       userID,
		Status:        enums.OrderStatusPending,
		PaymentMethod: enums.PaymentMethodCreditCard,
		TotalCents:    9800,
	}
	svc := &stubCheckoutService{result: &checkout.Result{Order: order, Created: true}}

	handler := Checkout(svc, manager, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newCheckoutRequest(sessionID, userID, "key-1"))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.lastInput.Lines) != 1 {
		t.Fatalf("expected the session snapshot to reach the service")
	}
	if svc.lastInput.IdempotencyKey != "key-1" {
		t.Fatalf("expected idempotency key forwarded, got %q", svc.lastInput.IdempotencyKey)
	}
	if got := manager.Get(context.Background(), sessionID); len(got.Lines) != 0 {
		t.Fatalf("expected local cart cleared after checkout, got %d lines", len(got.Lines))
	}

	var body struct {
		Data struct {
			ID         uuid.UUID `json:"id"`
			TotalCents int64     `json:"total_cents"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.ID != order.ID || body.Data.TotalCents != 9800 {
		t.Fatalf("unexpected order payload: %+v", body.Data)
	}
}

func TestCheckoutReplayReturnsOKAndKeepsCart(t *testing.T) {
	manager := newTestManager(t)
	sessionID := uuid.NewString()
	userID := uuid.New()

	if _, err := manager.BindPrincipal(context.Background(), sessionID, userID); err != nil {
		t.Fatalf("bind principal: %v", err)
	}
	if _, err := manager.AddItem(context.Background(), sessionID, cart.Line{
		ProductID:      uuid.New(),
		Name:           "Widget",
		UnitPriceCents: 4000,
		Quantity:       1,
	}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	order := &models.Order{ID: uuid.New(), OwnerID: userID}
	svc := &stubCheckoutService{result: &checkout.Result{Order: order, Created: false}}

	handler := Checkout(svc, manager, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newCheckoutRequest(sessionID, userID, "key-1"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for replay got %d", resp.Code)
	}
	if got := manager.Get(context.Background(), sessionID); len(got.Lines) != 1 {
		t.Fatalf("replay must not clear the local cart")
	}
}

func TestCheckoutReconcilesPreLoginCart(t *testing.T) {
	serverLine := cart.Line{
		ProductID:      uuid.New(),
		Name:           "Server Widget",
		UnitPriceCents: 2500,
		Quantity:       1,
	}
	manager, err := cart.NewManager(cart.ManagerParams{
		Remote: &stubRemoteStore{lines: []cart.Line{serverLine}},
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	t.Cleanup(manager.Close)

	sessionID := uuid.NewString()
	userID := uuid.New()

	// Cart built while anonymous; the first authenticated request on this
	// session is the checkout itself.
	if _, err := manager.AddItem(context.Background(), sessionID, cart.Line{
		ProductID:      uuid.New(),
		Name:           "Pre-login Widget",
		UnitPriceCents: 4000,
		Quantity:       2,
	}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	svc := &stubCheckoutService{result: &checkout.Result{Order: &models.Order{ID: uuid.New(), OwnerID: userID}, Created: true}}
	handler := Checkout(svc, manager, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newCheckoutRequest(sessionID, userID, "key-1"))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.lastInput.Lines) != 1 || svc.lastInput.Lines[0].ProductID != serverLine.ProductID {
		t.Fatalf("expected the server cart to be checked out after login reconciliation, got %+v", svc.lastInput.Lines)
	}
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	manager := newTestManager(t)
	svc := &stubCheckoutService{}

	handler := Checkout(svc, manager, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newCheckoutRequest(uuid.NewString(), uuid.New(), ""))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	manager := newTestManager(t)
	svc := &stubCheckoutService{}

	body := strings.Replace(checkoutBody, "credit_card", "barter", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "key-1")
	req = req.WithContext(middleware.WithSessionID(req.Context(), uuid.NewString()))

	handler := Checkout(svc, manager, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
