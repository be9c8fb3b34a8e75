// Package checkout implements the order placement pipeline: a linear
// sequence of cart mutations inside a single database transaction, with
// typed gate errors that abort and roll back the whole operation.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront-api/internal/domain/cart"
	"github.com/xenking/storefront-api/internal/domain/order"
)

// Gate errors aborting the pipeline. ErrCartEmpty is detected before the
// transaction opens; the others force a rollback.
var (
	ErrCartEmpty        = errors.New("cart is empty")
	ErrNoPaymentMethod  = errors.New("no payment method selected")
	ErrNoShippingMethod = errors.New("no shipping method selected")
)

// Transactor runs fn inside a database transaction. A non-nil error from fn
// rolls the transaction back; a nil return commits it. Every write performed
// through the ctx passed to fn is part of the transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Request is the validated checkout input. SessionToken identifies the cart;
// it is threaded explicitly rather than read from ambient session state.
// Addresses arrive with street lines already flattened to scalars.
type Request struct {
	SessionToken   string
	Billing        cart.Address
	Shipping       cart.Address
	CustomerEmail  string
	PaymentMethod  string
	ShippingMethod string
}

// Service orchestrates checkout over the cart service and order repository.
type Service struct {
	carts  *cart.Service
	orders order.Repository
	tx     Transactor
}

// NewService creates a checkout Service.
func NewService(carts *cart.Service, orders order.Repository, tx Transactor) *Service {
	return &Service{
		carts:  carts,
		orders: orders,
		tx:     tx,
	}
}

// Checkout runs the full placement sequence and returns the created order.
//
// The cart-empty gate runs before any transaction is opened; everything from
// attaching the customer up to deactivating the cart is atomic. Gate errors
// (*cart.InvalidShippingMethodError, ErrNoPaymentMethod, ErrNoShippingMethod)
// and any collaborator failure roll back every prior write.
func (s *Service) Checkout(ctx context.Context, req Request) (*order.Order, error) {
	c, err := s.carts.ActiveCart(ctx, req.SessionToken)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, ErrCartEmpty
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if c.IsEmpty() {
		return nil, ErrCartEmpty
	}

	var placed *order.Order
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.carts.SaveCustomer(ctx, c.ID, req.CustomerEmail, true); err != nil {
			return fmt.Errorf("save customer: %w", err)
		}
		if err := s.carts.SaveAddresses(ctx, c.ID, req.Billing, req.Shipping); err != nil {
			return fmt.Errorf("save addresses: %w", err)
		}
		if err := s.carts.SaveShippingMethod(ctx, c.ID, req.ShippingMethod); err != nil {
			return err
		}
		if err := s.carts.SavePaymentMethod(ctx, c.ID, req.PaymentMethod); err != nil {
			return fmt.Errorf("save payment method: %w", err)
		}

		// Totals depend on the shipping and payment selection just made, so
		// reload the cart and recompute before snapshotting.
		c, err = s.carts.ActiveCart(ctx, req.SessionToken)
		if err != nil {
			return fmt.Errorf("reload cart: %w", err)
		}
		if err := s.carts.CollectTotals(ctx, c); err != nil {
			return fmt.Errorf("collect totals: %w", err)
		}

		// Defensive re-checks: the saves above must not have silently no-opped.
		if c.PaymentMethod == "" {
			return ErrNoPaymentMethod
		}
		if c.ShippingMethod == "" {
			return ErrNoShippingMethod
		}

		o := buildOrder(c, req)
		if err := s.orders.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.carts.Deactivate(ctx, c.ID); err != nil {
			return fmt.Errorf("deactivate cart: %w", err)
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// buildOrder snapshots the finalized cart into an immutable order record.
func buildOrder(c *cart.Cart, req Request) *order.Order {
	items := make([]order.Item, len(c.Items))
	for i, item := range c.Items {
		items[i] = snapshotItem(item)
		for _, child := range item.Children {
			snap := snapshotItem(child)
			// Grandchildren are never populated; nesting stops at one level.
			snap.Children = nil
			items[i].Children = append(items[i].Children, snap)
		}
	}

	return &order.Order{
		ID:              uuid.New().String(),
		CustomerEmail:   c.CustomerEmail,
		IsGuest:         c.IsGuest,
		BillingAddress:  order.Address(req.Billing),
		ShippingAddress: order.Address(req.Shipping),
		ShippingMethod:  req.ShippingMethod,
		PaymentMethod:   req.PaymentMethod,
		Items:           items,
		SubTotal:        c.SubTotal,
		TaxAmount:       c.TaxTotal,
		ShippingAmount:  c.ShippingAmount,
		GrandTotal:      c.GrandTotal,
		CreatedAt:       time.Now().UTC(),
	}
}

func snapshotItem(item cart.Item) order.Item {
	return order.Item{
		ProductID: item.ProductID,
		SKU:       item.SKU,
		Name:      item.Name,
		Price:     item.Price,
		Quantity:  item.Quantity,
		Total:     item.Total,
	}
}
