package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/catalog"
)

type addToCartRequest struct {
	ProductID *int64 `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

type cartPayload struct {
	ID             string  `json:"id"`
	CustomerEmail  string  `json:"customer_email,omitempty"`
	IsGuest        bool    `json:"is_guest"`
	ShippingMethod string  `json:"shipping_method,omitempty"`
	PaymentMethod  string  `json:"payment_method,omitempty"`
	SubTotal       float64 `json:"sub_total"`
	TaxTotal       float64 `json:"tax_total"`
	ShippingAmount float64 `json:"shipping_amount"`
	GrandTotal     float64 `json:"grand_total"`
}

type cartItemPayload struct {
	ID        string            `json:"id"`
	ProductID int64             `json:"product_id"`
	SKU       string            `json:"sku"`
	Name      string            `json:"name"`
	Price     float64           `json:"price"`
	Quantity  int               `json:"quantity"`
	Total     float64           `json:"total"`
	Children  []cartItemPayload `json:"children,omitempty"`
}

// AddToCart validates the request, adds the product to the session's cart,
// and returns the full cart snapshot with its items. Business rejections
// from the cart service surface as 422 with the service message.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondValidation(w, "Validation error", map[string]string{
			"body": "invalid JSON body",
		})
		return
	}

	errs := make(map[string]string)
	if req.ProductID == nil {
		errs["product_id"] = "The product id field is required."
	}
	if req.Quantity == nil {
		errs["quantity"] = "The quantity field is required."
	} else if *req.Quantity < 1 {
		errs["quantity"] = "The quantity must be at least 1."
	}
	if len(errs) > 0 {
		respondValidation(w, "Validation error", errs)
		return
	}

	token, ok := h.sessionToken(r)
	if !ok {
		token = uuid.New().String()
		h.issueSession(w, token)
	}

	c, err := h.carts.AddProduct(ctx, token, *req.ProductID, *req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			respondValidation(w, "Validation error", map[string]string{
				"product_id": "The selected product id is invalid.",
			})
		default:
			var rej *cart.RejectionError
			if errors.As(err, &rej) {
				respondRejection(w, http.StatusUnprocessableEntity, rej.Reason, nil)
				return
			}
			zctx.From(ctx).Error("Add to cart failed", zap.Error(err))
			respondServerError(w, "Internal server error", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Product added to cart successfully.",
		"cart":    toCartPayload(c),
		"items":   toCartItemPayloads(c.Items),
	})
}

func toCartPayload(c *cart.Cart) cartPayload {
	return cartPayload{
		ID:             c.ID,
		CustomerEmail:  c.CustomerEmail,
		IsGuest:        c.IsGuest,
		ShippingMethod: c.ShippingMethod,
		PaymentMethod:  c.PaymentMethod,
		SubTotal:       c.SubTotal.InexactFloat64(),
		TaxTotal:       c.TaxTotal.InexactFloat64(),
		ShippingAmount: c.ShippingAmount.InexactFloat64(),
		GrandTotal:     c.GrandTotal.InexactFloat64(),
	}
}

func toCartItemPayloads(items []cart.Item) []cartItemPayload {
	out := make([]cartItemPayload, len(items))
	for i, item := range items {
		out[i] = cartItemPayload{
			ID:        item.ID,
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Price:     item.Price.InexactFloat64(),
			Quantity:  item.Quantity,
			Total:     item.Total.InexactFloat64(),
			Children:  toCartItemPayloads(item.Children),
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
