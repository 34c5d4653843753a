package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avilesmarco/storefront-backend/pkg/auth"
	"github.com/avilesmarco/storefront-backend/pkg/config"
	"github.com/avilesmarco/storefront-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "storefront-test",
		ExpirationMinutes: 5,
	}
}

func mintToken(t *testing.T, cfg config.JWTConfig, role enums.Role) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, userID
}

func TestAuthRejectsMissingToken(t *testing.T) {
	mw := Auth(testJWTConfig(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsActorContext(t *testing.T) {
	cfg := testJWTConfig()
	token, userID := mintToken(t, cfg, enums.RoleCustomer)

	mw := Auth(cfg, nil)
	var gotUser, gotRole string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != userID.String() {
		t.Fatalf("expected user %s got %s", userID, gotUser)
	}
	if gotRole != string(enums.RoleCustomer) {
		t.Fatalf("expected role customer got %s", gotRole)
	}
}

func TestAuthRejectsForgedToken(t *testing.T) {
	token, _ := mintToken(t, config.JWTConfig{
		Secret:            "other-secret",
		Issuer:            "storefront-test",
		ExpirationMinutes: 5,
	}, enums.RoleCustomer)

	mw := Auth(testJWTConfig(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestOptionalAuthAllowsAnonymous(t *testing.T) {
	mw := OptionalAuth(testJWTConfig(), nil)
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if UserIDFromContext(r.Context()) != "" {
			t.Fatal("anonymous request should not carry a user id")
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatal("handler should run for anonymous requests")
	}
}

func TestRequireRoleBlocksCustomers(t *testing.T) {
	mw := RequireRole(nil, enums.RoleAdmin)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/x/status", nil)
	req = req.WithContext(WithRole(req.Context(), string(enums.RoleCustomer)))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestRequireRoleAllowsAdmins(t *testing.T) {
	mw := RequireRole(nil, enums.RoleAdmin)
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/x/status", nil)
	req = req.WithContext(WithRole(req.Context(), string(enums.RoleAdmin)))
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatal("handler should run for admins")
	}
}

func TestSessionMintsAndEchoesID(t *testing.T) {
	mw := Session(nil)
	var got string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SessionIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected a minted session id, got %q", got)
	}
	if resp.Header().Get("X-Session-Id") != got {
		t.Fatalf("expected session id echoed in header")
	}
}

func TestSessionKeepsExistingID(t *testing.T) {
	mw := Session(nil)
	sessionID := uuid.NewString()
	var got string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SessionIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-Session-Id", sessionID)
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if got != sessionID {
		t.Fatalf("expected session id %s got %s", sessionID, got)
	}
}
