// Package handler exposes the storefront HTTP surface: category and product
// listings, add-to-cart, and checkout, all speaking the JSON envelope of the
// original shop API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/catalog"
	"github.com/xenking/storefront-api/internal/domain/checkout"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// SessionCookie is the name of the cookie carrying the session token.
	SessionCookie string
}

// Handler routes storefront requests to the domain services.
type Handler struct {
	catalog  catalog.Repository
	carts    *cart.Service
	checkout *checkout.Service
	cookie   string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	cat catalog.Repository,
	carts *cart.Service,
	co *checkout.Service,
) *Handler {
	return &Handler{
		catalog:  cat,
		carts:    carts,
		checkout: co,
		cookie:   cfg.SessionCookie,
	}
}

// Routes returns the chi router for the /api surface.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", h.Categories)
		r.Get("/products", h.Products)
		r.Post("/cart", h.AddToCart)
		r.Post("/checkout", h.Checkout)
		r.Get("/test-api", h.TestAPI)
	})
	return r
}

// TestAPI returns a static liveness payload.
func (h *Handler) TestAPI(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "API is working.",
	})
}

// sessionToken reads the session token cookie, returning false when absent.
func (h *Handler) sessionToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// issueSession sets a fresh session cookie and returns its token.
func (h *Handler) issueSession(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
