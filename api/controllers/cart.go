package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avilesmarco/storefront-backend/api/middleware"
	"github.com/avilesmarco/storefront-backend/api/responses"
	"github.com/avilesmarco/storefront-backend/api/validators"
	"github.com/avilesmarco/storefront-backend/internal/cart"
	"github.com/avilesmarco/storefront-backend/internal/catalog"
	pkgerrors "github.com/avilesmarco/storefront-backend/pkg/errors"
	"github.com/avilesmarco/storefront-backend/pkg/logger"
)

type cartResponse struct {
	Lines    []cart.Line     `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

func newCartResponse(snapshot cart.Snapshot) cartResponse {
	lines := snapshot.Lines
	if lines == nil {
		lines = []cart.Line{}
	}
	return cartResponse{
		Lines:    lines,
		Subtotal: snapshot.Breakdown.Subtotal,
		Tax:      snapshot.Breakdown.Tax,
		Shipping: snapshot.Breakdown.Shipping,
		Total:    snapshot.Breakdown.Total,
	}
}

// bindSessionPrincipal runs the login reconciliation the first time an
// authenticated request arrives on a session. The server cart overwrites the
// local one at that moment; later requests reuse the binding. A fetch failure
// is not fatal here: the local cart stays authoritative until the next trigger.
func bindSessionPrincipal(r *http.Request, manager *cart.Manager, logg *logger.Logger) (string, error) {
	sessionID := middleware.SessionIDFromContext(r.Context())

	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return sessionID, nil
	}
	ownerID, err := uuid.Parse(userID)
	if err != nil {
		return sessionID, nil
	}

	if manager.Principal(sessionID) == ownerID {
		return sessionID, nil
	}
	if _, err := manager.BindPrincipal(r.Context(), sessionID, ownerID); err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
			return sessionID, err
		}
		if logg != nil {
			logg.Warn(r.Context(), "login reconciliation deferred, server cart unreachable")
		}
	}
	return sessionID, nil
}

// GetCart returns the session cart with its pricing breakdown.
func GetCart(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := bindSessionPrincipal(r, manager, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(manager.Get(r.Context(), sessionID)))
	}
}

type addCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// AddCartItem snapshots the product's current name and price into the cart.
func AddCartItem(manager *cart.Manager, products *catalog.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := bindSessionPrincipal(r, manager, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := products.FindByID(r.Context(), payload.ProductID)
		if err != nil {
			if catalog.IsNotFound(err) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product"))
			return
		}
		if !product.IsActive {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not available"))
			return
		}

		snapshot, err := manager.AddItem(r.Context(), sessionID, cart.Line{
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: product.UnitPriceCents,
			ImageRef:       product.ImageRef,
			Quantity:       payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(snapshot))
	}
}

type setCartQuantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

// SetCartQuantity pins a line's quantity; zero removes the line.
func SetCartQuantity(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := bindSessionPrincipal(r, manager, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		var payload setCartQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot := manager.SetQuantity(r.Context(), sessionID, productID, payload.Quantity)
		responses.WriteSuccess(w, newCartResponse(snapshot))
	}
}

// RemoveCartItem drops a line from the session cart.
func RemoveCartItem(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := bindSessionPrincipal(r, manager, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		responses.WriteSuccess(w, newCartResponse(manager.RemoveItem(r.Context(), sessionID, productID)))
	}
}

// ClearCart empties the session cart.
func ClearCart(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := bindSessionPrincipal(r, manager, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(manager.Clear(r.Context(), sessionID)))
	}
}

// LogoutCart detaches the principal from the session and clears the local
// cart. The server cart is left intact for the next login.
func LogoutCart(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := middleware.SessionIDFromContext(r.Context())
		responses.WriteSuccess(w, newCartResponse(manager.UnbindPrincipal(r.Context(), sessionID)))
	}
}

// ReconcileCart forces a refresh reconciliation: the server cart overwrites
// the local one. Requires an authenticated session.
func ReconcileCart(manager *cart.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := bindSessionPrincipal(r, manager, logg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := manager.Reconcile(r.Context(), sessionID, cart.TriggerRefresh)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snapshot))
	}
}
