package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/packfinderz-storefront/api/responses"
	"github.com/angelmondragon/packfinderz-storefront/api/validators"
	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

// CartService is the cart engine surface exposed over HTTP.
type CartService interface {
	Snapshot() cart.ViewState
	Refresh(ctx context.Context) (cart.ViewState, error)
	SetOpen(open bool) cart.ViewState
	AddToCart(ctx context.Context, productID string, quantity int) (cart.ViewState, error)
	RemoveFromCart(ctx context.Context, productID string) (cart.ViewState, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int) (cart.ViewState, error)
	UpdateSize(ctx context.Context, productID, size string) (cart.ViewState, error)
	ClearCart(ctx context.Context) (cart.ViewState, error)
}

type addItemRequest struct {
	Quantity int `json:"quantity" validate:"omitempty,min=1"`
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type sizeRequest struct {
	Size string `json:"size" validate:"required,max=32"`
}

type drawerRequest struct {
	Open bool `json:"open"`
}

// CartFetch returns the current view without touching the backend.
func CartFetch(svc CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Snapshot())
	}
}

func CartRefresh(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeView(w, r, logg)(svc.Refresh(r.Context()))
	}
}

func CartDrawer(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload drawerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, svc.SetOpen(payload.Open))
	}
}

// CartAddItem adds {quantity} of the product; a missing quantity adds one.
func CartAddItem(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := addItemRequest{Quantity: 1}
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Quantity == 0 {
			payload.Quantity = 1
		}

		writeView(w, r, logg)(svc.AddToCart(r.Context(), productID, payload.Quantity))
	}
}

func CartRemoveItem(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, r, logg)(svc.RemoveFromCart(r.Context(), productID))
	}
}

func CartUpdateQuantity(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload quantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeView(w, r, logg)(svc.UpdateQuantity(r.Context(), productID, payload.Quantity))
	}
}

func CartUpdateSize(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := productIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload sizeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		size := validators.SanitizeString(payload.Size, 32)
		if size == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "size is required"))
			return
		}
		writeView(w, r, logg)(svc.UpdateSize(r.Context(), productID, size))
	}
}

// CartClear empties the remote cart, unlike logout which only clears locally.
func CartClear(svc CartService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeView(w, r, logg)(svc.ClearCart(r.Context()))
	}
}

func productIDParam(r *http.Request) (string, error) {
	productID := validators.SanitizeString(chi.URLParam(r, "productId"), 128)
	if productID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return productID, nil
}

// writeView renders the engine result. Failed operations answer with the
// error envelope; the view, including its failure notice, stays readable
// through CartFetch.
func writeView(w http.ResponseWriter, r *http.Request, logg *logger.Logger) func(cart.ViewState, error) {
	return func(view cart.ViewState, err error) {
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
