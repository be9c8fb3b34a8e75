// Package catalog defines the read side of the product catalog: categories,
// products, and the filtered listing used by the storefront.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Kind distinguishes simple products from bundles composed of other products.
type Kind string

const (
	KindSimple Kind = "simple"
	KindBundle Kind = "bundle"
)

// Category is a catalog category.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Product is a purchasable catalog item.
type Product struct {
	ID    int64
	SKU   string
	Name  string
	Price decimal.Decimal
	Stock int
	Kind  Kind
}

// Component is one constituent of a bundle product.
type Component struct {
	Product  Product
	Quantity int
}

// ListingFilter narrows the product listing. Nil/empty fields apply no
// constraint. The price range applies only when both bounds are set.
type ListingFilter struct {
	CategoryID *int64
	PriceMin   *decimal.Decimal
	PriceMax   *decimal.Decimal
	Color      string
	Size       string
}

// PriceRange returns the price bounds and whether they should be applied.
// A partial range (one bound missing) is ignored entirely.
func (f ListingFilter) PriceRange() (min, max decimal.Decimal, ok bool) {
	if f.PriceMin == nil || f.PriceMax == nil {
		return decimal.Zero, decimal.Zero, false
	}
	return *f.PriceMin, *f.PriceMax, true
}

// ListedProduct is the flattened listing projection: the price comes from the
// price index (falling back to the list price), the category is the first
// associated category name or a sentinel.
type ListedProduct struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

// Sentinel category names for products without a usable category association.
const (
	NoCategory      = "No category"
	UnnamedCategory = "Unnamed"
)

// Repository defines read operations over the catalog.
type Repository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, filter ListingFilter) ([]ListedProduct, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	GetComponents(ctx context.Context, productID int64) ([]Component, error)
}
