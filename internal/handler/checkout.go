package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/checkout"
	"github.com/xenking/storefront-api/internal/domain/order"
)

// streetLine accepts either a JSON string or an array of strings; arrays are
// flattened with ", " since orders store a scalar address line.
type streetLine string

func (s *streetLine) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = streetLine(single)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*s = streetLine(strings.Join(lines, ", "))
	return nil
}

type addressPayload struct {
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Address   streetLine `json:"address"`
	City      string     `json:"city"`
	State     string     `json:"state"`
	Country   string     `json:"country"`
	Postcode  string     `json:"postcode"`
	Phone     string     `json:"phone"`
}

func (a *addressPayload) toDomain() cart.Address {
	return cart.Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Address:   string(a.Address),
		City:      a.City,
		State:     a.State,
		Country:   a.Country,
		Postcode:  a.Postcode,
		Phone:     a.Phone,
	}
}

type checkoutRequest struct {
	Billing        *addressPayload `json:"billing"`
	Shipping       *addressPayload `json:"shipping"`
	CustomerEmail  string          `json:"customer_email"`
	PaymentMethod  string          `json:"payment_method"`
	ShippingMethod string          `json:"shipping_method"`
}

// validate returns the field error map of the request, empty when valid.
func (req *checkoutRequest) validate() map[string]string {
	errs := make(map[string]string)
	if req.Billing == nil {
		errs["billing"] = "The billing field is required."
	}
	if req.Shipping == nil {
		errs["shipping"] = "The shipping field is required."
	}
	switch {
	case req.CustomerEmail == "":
		errs["customer_email"] = "The customer email field is required."
	default:
		if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
			errs["customer_email"] = "The customer email must be a valid email address."
		}
	}
	if req.PaymentMethod == "" {
		errs["payment_method"] = "The payment method field is required."
	}
	if req.ShippingMethod == "" {
		errs["shipping_method"] = "The shipping method field is required."
	}
	return errs
}

type orderPayload struct {
	ID              string             `json:"id"`
	CustomerEmail   string             `json:"customer_email"`
	IsGuest         bool               `json:"is_guest"`
	BillingAddress  order.Address      `json:"billing_address"`
	ShippingAddress order.Address      `json:"shipping_address"`
	ShippingMethod  string             `json:"shipping_method"`
	PaymentMethod   string             `json:"payment_method"`
	Items           []orderItemPayload `json:"items"`
	SubTotal        float64            `json:"sub_total"`
	TaxAmount       float64            `json:"tax_amount"`
	ShippingAmount  float64            `json:"shipping_amount"`
	GrandTotal      float64            `json:"grand_total"`
	CreatedAt       time.Time          `json:"created_at"`
}

type orderItemPayload struct {
	ProductID int64              `json:"product_id"`
	SKU       string             `json:"sku"`
	Name      string             `json:"name"`
	Price     float64            `json:"price"`
	Quantity  int                `json:"quantity"`
	Total     float64            `json:"total"`
	Children  []orderItemPayload `json:"children"`
}

// Checkout runs the order placement pipeline for the session's cart and
// returns the created order with a 201. Business rejections map to 400/422;
// infrastructure failures are logged and become a 500.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondValidation(w, "Validation failed.", map[string]string{
			"body": "invalid JSON body",
		})
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		respondValidation(w, "Validation failed.", errs)
		return
	}

	token, _ := h.sessionToken(r)

	o, err := h.checkout.Checkout(ctx, checkout.Request{
		SessionToken:   token,
		Billing:        req.Billing.toDomain(),
		Shipping:       req.Shipping.toDomain(),
		CustomerEmail:  req.CustomerEmail,
		PaymentMethod:  req.PaymentMethod,
		ShippingMethod: req.ShippingMethod,
	})
	if err != nil {
		h.respondCheckoutError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"message":  "Order placed successfully.",
		"order_id": o.ID,
		"order":    toOrderPayload(o),
	})
}

func (h *Handler) respondCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrCartEmpty):
		respondRejection(w, http.StatusBadRequest, "Cart is empty.", nil)
	case errors.Is(err, checkout.ErrNoPaymentMethod):
		respondRejection(w, http.StatusUnprocessableEntity, "No payment method selected.", nil)
	case errors.Is(err, checkout.ErrNoShippingMethod):
		respondRejection(w, http.StatusUnprocessableEntity, "No shipping method selected.", nil)
	default:
		var ism *cart.InvalidShippingMethodError
		if errors.As(err, &ism) {
			respondRejection(w, http.StatusUnprocessableEntity, "Invalid shipping method.", map[string]any{
				"available_methods": ism.Available,
			})
			return
		}
		zctx.From(ctx).Error("Checkout failed", zap.Error(err))
		respondServerError(w, "Checkout failed. Try again.", err)
	}
}

func toOrderPayload(o *order.Order) orderPayload {
	return orderPayload{
		ID:              o.ID,
		CustomerEmail:   o.CustomerEmail,
		IsGuest:         o.IsGuest,
		BillingAddress:  o.BillingAddress,
		ShippingAddress: o.ShippingAddress,
		ShippingMethod:  o.ShippingMethod,
		PaymentMethod:   o.PaymentMethod,
		Items:           toOrderItemPayloads(o.Items),
		SubTotal:        o.SubTotal.InexactFloat64(),
		TaxAmount:       o.TaxAmount.InexactFloat64(),
		ShippingAmount:  o.ShippingAmount.InexactFloat64(),
		GrandTotal:      o.GrandTotal.InexactFloat64(),
		CreatedAt:       o.CreatedAt,
	}
}

func toOrderItemPayloads(items []order.Item) []orderItemPayload {
	out := make([]orderItemPayload, len(items))
	for i, item := range items {
		out[i] = orderItemPayload{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Price:     item.Price.InexactFloat64(),
			Quantity:  item.Quantity,
			Total:     item.Total.InexactFloat64(),
			Children:  toOrderItemPayloads(item.Children),
		}
	}
	return out
}
