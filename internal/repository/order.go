package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xenking/storefront-api/internal/domain/order"
)

const createOrderSQL = `INSERT INTO orders (id, customer_email, is_guest,
		billing_address, shipping_address, shipping_method, payment_method,
		items, sub_total, tax_amount, shipping_amount, grand_total, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The line
// item snapshot and both addresses are serialized to JSONB.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository over the given DB.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	billingJSON, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshaling billing address: %w", err)
	}
	shippingJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = r.db.q(ctx).Exec(ctx, createOrderSQL,
		o.ID, o.CustomerEmail, o.IsGuest,
		billingJSON, shippingJSON, o.ShippingMethod, o.PaymentMethod,
		itemsJSON, o.SubTotal, o.TaxAmount, o.ShippingAmount, o.GrandTotal, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}
