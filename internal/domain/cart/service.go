package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/catalog"
)

// RejectionError is a recoverable business rejection from the cart service,
// distinct from infrastructure failures. Its message is safe to return to
// the client.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

// InvalidShippingMethodError indicates the requested shipping method is not
// among the cart's available rates. Available carries the valid method names
// as a diagnostic aid for the client.
type InvalidShippingMethodError struct {
	Method    string
	Available []string
}

func (e *InvalidShippingMethodError) Error() string {
	return fmt.Sprintf("shipping method %q is not available", e.Method)
}

// Service applies cart business rules on top of the repository.
type Service struct {
	carts   Repository
	catalog catalog.Repository
	taxRate decimal.Decimal
}

// NewService creates a cart Service. taxRate is the fraction of the subtotal
// charged as tax when totals are collected (e.g. 0.10 for 10%).
func NewService(carts Repository, cat catalog.Repository, taxRate decimal.Decimal) *Service {
	return &Service{
		carts:   carts,
		catalog: cat,
		taxRate: taxRate,
	}
}

// ActiveCart returns the active cart for the session, or ErrNotFound.
func (s *Service) ActiveCart(ctx context.Context, sessionToken string) (*Cart, error) {
	return s.carts.FindActive(ctx, sessionToken)
}

// AddProduct adds quantity units of the product to the session's cart,
// creating the cart when none exists and merging into an existing line for
// the same product. Inventory shortage is reported as a *RejectionError.
// It returns the cart as persisted after the addition.
func (s *Service) AddProduct(ctx context.Context, sessionToken string, productID int64, quantity int) (*Cart, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	c, err := s.carts.FindActive(ctx, sessionToken)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		c = &Cart{
			ID:           uuid.New().String(),
			SessionToken: sessionToken,
			IsGuest:      true,
			IsActive:     true,
		}
		if err := s.carts.Create(ctx, c); err != nil {
			return nil, fmt.Errorf("create cart: %w", err)
		}
	default:
		return nil, fmt.Errorf("load cart: %w", err)
	}

	// Merge into an existing line when the product is already in the cart.
	var existing *Item
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			existing = &c.Items[i]
			break
		}
	}

	requested := quantity
	if existing != nil {
		requested += existing.Quantity
	}
	if requested > p.Stock {
		return nil, &RejectionError{
			Reason: fmt.Sprintf("Not enough stock for %q: %d available.", p.Name, p.Stock),
		}
	}

	if existing != nil {
		total := p.Price.Mul(decimal.NewFromInt(int64(requested)))
		if err := s.carts.UpdateItemQuantity(ctx, existing.ID, requested, total); err != nil {
			return nil, fmt.Errorf("update cart item: %w", err)
		}
	} else {
		item, err := s.buildItem(ctx, p, quantity)
		if err != nil {
			return nil, err
		}
		if err := s.carts.InsertItem(ctx, c.ID, item); err != nil {
			return nil, fmt.Errorf("insert cart item: %w", err)
		}
	}

	// Reload so totals reflect the new line, then recompute.
	c, err = s.carts.FindActive(ctx, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("reload cart: %w", err)
	}
	if err := s.CollectTotals(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// buildItem creates a cart line for the product, expanding bundle products
// into child lines. Children of children are never produced.
func (s *Service) buildItem(ctx context.Context, p *catalog.Product, quantity int) (Item, error) {
	item := Item{
		ID:        uuid.New().String(),
		ProductID: p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  quantity,
		Total:     p.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}

	if p.Kind != catalog.KindBundle {
		return item, nil
	}

	components, err := s.catalog.GetComponents(ctx, p.ID)
	if err != nil {
		return Item{}, fmt.Errorf("load bundle components: %w", err)
	}
	for _, comp := range components {
		qty := comp.Quantity * quantity
		item.Children = append(item.Children, Item{
			ID:        uuid.New().String(),
			ProductID: comp.Product.ID,
			SKU:       comp.Product.SKU,
			Name:      comp.Product.Name,
			Price:     comp.Product.Price,
			Quantity:  qty,
			Total:     comp.Product.Price.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	return item, nil
}

// SaveCustomer attaches the customer email and guest flag to the cart.
func (s *Service) SaveCustomer(ctx context.Context, cartID, email string, isGuest bool) error {
	return s.carts.SaveCustomer(ctx, cartID, email, isGuest)
}

// SaveAddresses persists the billing and shipping addresses onto the cart.
func (s *Service) SaveAddresses(ctx context.Context, cartID string, billing, shipping Address) error {
	return s.carts.SaveAddresses(ctx, cartID, billing, shipping)
}

// SaveShippingMethod selects a shipping method after checking it against the
// cart's available rates. An unknown method yields an
// *InvalidShippingMethodError carrying the valid method names.
func (s *Service) SaveShippingMethod(ctx context.Context, cartID, method string) error {
	rates, err := s.carts.AvailableRates(ctx)
	if err != nil {
		return fmt.Errorf("load shipping rates: %w", err)
	}

	available := make([]string, len(rates))
	found := false
	for i, r := range rates {
		available[i] = r.Method
		if r.Method == method {
			found = true
		}
	}
	if !found {
		return &InvalidShippingMethodError{Method: method, Available: available}
	}

	return s.carts.SaveShippingMethod(ctx, cartID, method)
}

// SavePaymentMethod selects a payment method. No availability validation is
// performed; the method is accepted as given.
func (s *Service) SavePaymentMethod(ctx context.Context, cartID, method string) error {
	return s.carts.SavePaymentMethod(ctx, cartID, method)
}

// CollectTotals recomputes the cart totals from its line items, the selected
// shipping rate, and the configured tax rate, persists them, and updates the
// aggregate in place. Child lines do not contribute to the subtotal; the
// parent line carries the bundle price.
func (s *Service) CollectTotals(ctx context.Context, c *Cart) error {
	sub := decimal.Zero
	for _, item := range c.Items {
		sub = sub.Add(item.Total)
	}

	shipping := decimal.Zero
	if c.ShippingMethod != "" {
		rates, err := s.carts.AvailableRates(ctx)
		if err != nil {
			return fmt.Errorf("load shipping rates: %w", err)
		}
		for _, r := range rates {
			if r.Method == c.ShippingMethod {
				shipping = r.Price
				break
			}
		}
	}

	tax := sub.Mul(s.taxRate).Round(2)
	t := Totals{
		SubTotal:       sub.Round(2),
		TaxTotal:       tax,
		ShippingAmount: shipping.Round(2),
		GrandTotal:     sub.Add(tax).Add(shipping).Round(2),
	}
	if err := s.carts.SaveTotals(ctx, c.ID, t); err != nil {
		return fmt.Errorf("save totals: %w", err)
	}

	c.SubTotal = t.SubTotal
	c.TaxTotal = t.TaxTotal
	c.ShippingAmount = t.ShippingAmount
	c.GrandTotal = t.GrandTotal
	return nil
}

// Deactivate marks the cart inactive so it can never be reused.
func (s *Service) Deactivate(ctx context.Context, cartID string) error {
	return s.carts.Deactivate(ctx, cartID)
}
