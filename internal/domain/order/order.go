// Package order defines the immutable order record produced by checkout.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is an immutable-after-creation record of a finalized purchase.
// It is built once from a cart and never mutated afterwards.
type Order struct {
	ID              string          `json:"id"`
	CustomerEmail   string          `json:"customer_email"`
	IsGuest         bool            `json:"is_guest"`
	BillingAddress  Address         `json:"billing_address"`
	ShippingAddress Address         `json:"shipping_address"`
	ShippingMethod  string          `json:"shipping_method"`
	PaymentMethod   string          `json:"payment_method"`
	Items           []Item          `json:"items"`
	SubTotal        decimal.Decimal `json:"sub_total"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Address is a postal address snapshot with a scalar street line.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
	Postcode  string `json:"postcode"`
	Phone     string `json:"phone"`
}

// Item is a snapshot of one cart line. Children hold the component lines of
// composite products; their own Children are always empty, nesting stops at
// one level.
type Item struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	Children  []Item          `json:"children"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
}
