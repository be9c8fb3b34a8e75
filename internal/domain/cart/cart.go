// Package cart holds the session-scoped cart aggregate and the service that
// applies cart business rules: lazy creation, quantity merging, inventory
// rejections, shipping method validation, and totals collection.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no active cart exists for a session.
var ErrNotFound = errors.New("cart not found")

// Cart is the session-scoped aggregate representing an in-progress purchase.
// It is created lazily on the first add-to-cart, mutated throughout checkout,
// and deactivated once an order has been placed from it.
type Cart struct {
	ID              string
	SessionToken    string
	CustomerEmail   string
	IsGuest         bool
	IsActive        bool
	Items           []Item
	BillingAddress  *Address
	ShippingAddress *Address
	ShippingMethod  string
	PaymentMethod   string
	SubTotal        decimal.Decimal
	TaxTotal        decimal.Decimal
	ShippingAmount  decimal.Decimal
	GrandTotal      decimal.Decimal
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Item is a cart line. Children carry the component lines of a bundle
// product; they are informational and do not contribute to the subtotal.
type Item struct {
	ID        string
	ProductID int64
	SKU       string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Total     decimal.Decimal
	Children  []Item
}

// Address is a postal address with a single, already-flattened street line.
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

// ShippingRate is one shipping option available to a cart.
type ShippingRate struct {
	Method string
	Name   string
	Price  decimal.Decimal
}

// Totals groups the four monetary totals recomputed by CollectTotals.
type Totals struct {
	SubTotal       decimal.Decimal
	TaxTotal       decimal.Decimal
	ShippingAmount decimal.Decimal
	GrandTotal     decimal.Decimal
}

// Repository defines persistence operations for carts.
type Repository interface {
	FindActive(ctx context.Context, sessionToken string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	InsertItem(ctx context.Context, cartID string, item Item) error
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int, total decimal.Decimal) error
	SaveCustomer(ctx context.Context, cartID, email string, isGuest bool) error
	SaveAddresses(ctx context.Context, cartID string, billing, shipping Address) error
	SaveShippingMethod(ctx context.Context, cartID, method string) error
	SavePaymentMethod(ctx context.Context, cartID, method string) error
	SaveTotals(ctx context.Context, cartID string, t Totals) error
	Deactivate(ctx context.Context, cartID string) error
	AvailableRates(ctx context.Context) ([]ShippingRate, error)
}
