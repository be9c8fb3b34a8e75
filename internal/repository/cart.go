package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/cart"
)

const (
	findActiveCartSQL = `SELECT id, session_token, customer_email, is_guest, is_active,
			billing_address, shipping_address, shipping_method, payment_method,
			sub_total, tax_total, shipping_amount, grand_total
		FROM carts WHERE session_token = $1 AND is_active`

	listCartItemsSQL = `SELECT id, parent_id, product_id, sku, name, price, quantity, total
		FROM cart_items WHERE cart_id = $1 ORDER BY id`

	createCartSQL = `INSERT INTO carts (id, session_token, is_guest, is_active)
		VALUES ($1, $2, $3, $4)`

	insertCartItemSQL = `INSERT INTO cart_items (id, cart_id, parent_id, product_id, sku, name, price, quantity, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateItemQuantitySQL = `UPDATE cart_items SET quantity = $2, total = $3 WHERE id = $1`

	saveCustomerSQL = `UPDATE carts SET customer_email = $2, is_guest = $3, updated_at = now() WHERE id = $1`

	saveAddressesSQL = `UPDATE carts SET billing_address = $2, shipping_address = $3, updated_at = now() WHERE id = $1`

	saveShippingMethodSQL = `UPDATE carts SET shipping_method = $2, updated_at = now() WHERE id = $1`

	savePaymentMethodSQL = `UPDATE carts SET payment_method = $2, updated_at = now() WHERE id = $1`

	saveTotalsSQL = `UPDATE carts SET sub_total = $2, tax_total = $3, shipping_amount = $4, grand_total = $5,
			updated_at = now()
		WHERE id = $1`

	deactivateCartSQL = `UPDATE carts SET is_active = FALSE, updated_at = now() WHERE id = $1`

	availableRatesSQL = `SELECT code, name, price FROM shipping_methods WHERE is_active ORDER BY price, code`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Addresses
// are stored as JSONB; line items are relational with a parent reference for
// composite-product child lines.
type CartRepository struct {
	db *DB
}

// NewCartRepository returns a CartRepository over the given DB.
func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{db: db}
}

// FindActive loads the active cart for the session together with its items,
// or cart.ErrNotFound.
func (r *CartRepository) FindActive(ctx context.Context, sessionToken string) (*cart.Cart, error) {
	q := r.db.q(ctx)

	var (
		c                 cart.Cart
		billing, shipping []byte
	)
	err := q.QueryRow(ctx, findActiveCartSQL, sessionToken).Scan(
		&c.ID, &c.SessionToken, &c.CustomerEmail, &c.IsGuest, &c.IsActive,
		&billing, &shipping, &c.ShippingMethod, &c.PaymentMethod,
		&c.SubTotal, &c.TaxTotal, &c.ShippingAmount, &c.GrandTotal,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding cart for session: %w", err)
	}

	if c.BillingAddress, err = decodeAddress(billing); err != nil {
		return nil, fmt.Errorf("decoding billing address: %w", err)
	}
	if c.ShippingAddress, err = decodeAddress(shipping); err != nil {
		return nil, fmt.Errorf("decoding shipping address: %w", err)
	}

	if c.Items, err = r.loadItems(ctx, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

// loadItems fetches all lines of a cart and nests child lines under their
// parents.
func (r *CartRepository) loadItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	rows, err := r.db.q(ctx).Query(ctx, listCartItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}

	type flatItem struct {
		item     cart.Item
		parentID *string
	}
	flat, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (flatItem, error) {
		var (
			f     flatItem
			price decimal.Decimal
			total decimal.Decimal
		)
		err := row.Scan(&f.item.ID, &f.parentID, &f.item.ProductID, &f.item.SKU,
			&f.item.Name, &price, &f.item.Quantity, &total)
		f.item.Price = price
		f.item.Total = total
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning cart items: %w", err)
	}

	byID := make(map[string]*cart.Item, len(flat))
	var roots []string
	for _, f := range flat {
		if f.parentID == nil {
			item := f.item
			byID[item.ID] = &item
			roots = append(roots, item.ID)
		}
	}
	for _, f := range flat {
		if f.parentID != nil {
			if parent, ok := byID[*f.parentID]; ok {
				parent.Children = append(parent.Children, f.item)
			}
		}
	}

	items := make([]cart.Item, 0, len(roots))
	for _, id := range roots {
		items = append(items, *byID[id])
	}
	return items, nil
}

// Create persists a new, empty cart.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	_, err := r.db.q(ctx).Exec(ctx, createCartSQL, c.ID, c.SessionToken, c.IsGuest, c.IsActive)
	if err != nil {
		return fmt.Errorf("creating cart %q: %w", c.ID, err)
	}
	return nil
}

// InsertItem persists a cart line and its child lines.
func (r *CartRepository) InsertItem(ctx context.Context, cartID string, item cart.Item) error {
	q := r.db.q(ctx)

	_, err := q.Exec(ctx, insertCartItemSQL,
		item.ID, cartID, nil, item.ProductID, item.SKU, item.Name,
		item.Price, item.Quantity, item.Total,
	)
	if err != nil {
		return fmt.Errorf("inserting cart item: %w", err)
	}

	for _, child := range item.Children {
		_, err := q.Exec(ctx, insertCartItemSQL,
			child.ID, cartID, item.ID, child.ProductID, child.SKU, child.Name,
			child.Price, child.Quantity, child.Total,
		)
		if err != nil {
			return fmt.Errorf("inserting child cart item: %w", err)
		}
	}
	return nil
}

// UpdateItemQuantity sets the quantity and total of an existing line.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int, total decimal.Decimal) error {
	_, err := r.db.q(ctx).Exec(ctx, updateItemQuantitySQL, itemID, quantity, total)
	if err != nil {
		return fmt.Errorf("updating cart item %q: %w", itemID, err)
	}
	return nil
}

// SaveCustomer attaches the customer email and guest flag.
func (r *CartRepository) SaveCustomer(ctx context.Context, cartID, email string, isGuest bool) error {
	_, err := r.db.q(ctx).Exec(ctx, saveCustomerSQL, cartID, email, isGuest)
	if err != nil {
		return fmt.Errorf("saving customer on cart %q: %w", cartID, err)
	}
	return nil
}

// SaveAddresses stores both addresses as JSONB.
func (r *CartRepository) SaveAddresses(ctx context.Context, cartID string, billing, shipping cart.Address) error {
	billingJSON, err := json.Marshal(billing)
	if err != nil {
		return fmt.Errorf("marshaling billing address: %w", err)
	}
	shippingJSON, err := json.Marshal(shipping)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = r.db.q(ctx).Exec(ctx, saveAddressesSQL, cartID, billingJSON, shippingJSON)
	if err != nil {
		return fmt.Errorf("saving addresses on cart %q: %w", cartID, err)
	}
	return nil
}

// SaveShippingMethod records the selected shipping method.
func (r *CartRepository) SaveShippingMethod(ctx context.Context, cartID, method string) error {
	_, err := r.db.q(ctx).Exec(ctx, saveShippingMethodSQL, cartID, method)
	if err != nil {
		return fmt.Errorf("saving shipping method on cart %q: %w", cartID, err)
	}
	return nil
}

// SavePaymentMethod records the selected payment method.
func (r *CartRepository) SavePaymentMethod(ctx context.Context, cartID, method string) error {
	_, err := r.db.q(ctx).Exec(ctx, savePaymentMethodSQL, cartID, method)
	if err != nil {
		return fmt.Errorf("saving payment method on cart %q: %w", cartID, err)
	}
	return nil
}

// SaveTotals persists the recomputed totals.
func (r *CartRepository) SaveTotals(ctx context.Context, cartID string, t cart.Totals) error {
	_, err := r.db.q(ctx).Exec(ctx, saveTotalsSQL, cartID,
		t.SubTotal, t.TaxTotal, t.ShippingAmount, t.GrandTotal)
	if err != nil {
		return fmt.Errorf("saving totals on cart %q: %w", cartID, err)
	}
	return nil
}

// Deactivate marks the cart inactive.
func (r *CartRepository) Deactivate(ctx context.Context, cartID string) error {
	_, err := r.db.q(ctx).Exec(ctx, deactivateCartSQL, cartID)
	if err != nil {
		return fmt.Errorf("deactivating cart %q: %w", cartID, err)
	}
	return nil
}

// AvailableRates lists the active shipping methods as rates.
func (r *CartRepository) AvailableRates(ctx context.Context) ([]cart.ShippingRate, error) {
	rows, err := r.db.q(ctx).Query(ctx, availableRatesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing shipping rates: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.ShippingRate, error) {
		var (
			rate  cart.ShippingRate
			price decimal.Decimal
		)
		err := row.Scan(&rate.Method, &rate.Name, &price)
		rate.Price = price
		return rate, err
	})
}

func decodeAddress(raw []byte) (*cart.Address, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var a cart.Address
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
