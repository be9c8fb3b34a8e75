package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/catalog"
)

const (
	listCategoriesSQL = `SELECT id, name, position FROM categories ORDER BY position, id`

	getProductSQL = `SELECT id, sku, name, price, stock, kind FROM products WHERE id = $1`

	getComponentsSQL = `SELECT p.id, p.sku, p.name, p.price, p.stock, p.kind, pcm.quantity
		FROM product_components pcm
		JOIN products p ON p.id = pcm.component_id
		WHERE pcm.product_id = $1
		ORDER BY p.id`

	// Listing joins the price index and picks the first associated category
	// per product. Filter conditions are appended by buildListingQuery.
	listProductsBaseSQL = `SELECT p.id, p.name, COALESCE(ppi.min_price, p.price) AS price,
			fc.id IS NOT NULL AS has_category, COALESCE(fc.name, '') AS category_name
		FROM products p
		LEFT JOIN product_price_indices ppi ON ppi.product_id = p.id
		LEFT JOIN LATERAL (
			SELECT c.id, c.name
			FROM product_categories pc
			JOIN categories c ON c.id = pc.category_id
			WHERE pc.product_id = p.id
			ORDER BY pc.position, c.id
			LIMIT 1
		) fc ON TRUE`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository returns a CatalogRepository over the given DB.
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListCategories returns the full category collection.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.db.q(ctx).Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Category, error) {
		var c catalog.Category
		err := row.Scan(&c.ID, &c.Name, &c.Position)
		return c, err
	})
}

// ListProducts returns the flattened listing projection, intersected with
// whichever filter constraints are present.
func (r *CatalogRepository) ListProducts(ctx context.Context, filter catalog.ListingFilter) ([]catalog.ListedProduct, error) {
	query, args := buildListingQuery(filter)
	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanListedProduct)
}

// buildListingQuery appends filter conditions to the base listing query.
// Absent filters produce no condition; a partial price range produces none
// either (both bounds or nothing).
func buildListingQuery(f catalog.ListingFilter) (string, []any) {
	var (
		b     strings.Builder
		conds []string
		args  []any
	)
	b.WriteString(listProductsBaseSQL)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.CategoryID != nil {
		conds = append(conds, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = p.id AND pc.category_id = %s)`,
			arg(*f.CategoryID)))
	}
	if min, max, ok := f.PriceRange(); ok {
		conds = append(conds, fmt.Sprintf(`ppi.min_price BETWEEN %s AND %s`, arg(min), arg(max)))
	}
	if f.Color != "" {
		conds = append(conds, attributeCondition(arg, "color", f.Color))
	}
	if f.Size != "" {
		conds = append(conds, attributeCondition(arg, "size", f.Size))
	}

	if len(conds) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(conds, "\n\t\t\tAND "))
	}
	b.WriteString("\n\t\tORDER BY p.id")
	return b.String(), args
}

// attributeCondition matches products whose value for the attribute code
// resolves to an option with the given human-readable name.
func attributeCondition(arg func(any) string, code, optionName string) string {
	return fmt.Sprintf(
		`EXISTS (SELECT 1 FROM product_attribute_values pav
			JOIN attributes a ON a.id = pav.attribute_id
			WHERE pav.product_id = p.id AND a.code = %s
				AND pav.option_id IN (SELECT ao.id FROM attribute_options ao WHERE ao.admin_name = %s))`,
		arg(code), arg(optionName))
}

func scanListedProduct(row pgx.CollectableRow) (catalog.ListedProduct, error) {
	var (
		p           catalog.ListedProduct
		price       decimal.Decimal
		hasCategory bool
		name        string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &hasCategory, &name); err != nil {
		return p, err
	}
	p.Price = price

	switch {
	case !hasCategory:
		p.Category = catalog.NoCategory
	case name == "":
		p.Category = catalog.UnnamedCategory
	default:
		p.Category = name
	}
	return p, nil
}

// GetProduct returns a single product by ID, or catalog.ErrNotFound.
func (r *CatalogRepository) GetProduct(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// GetComponents returns the bundle components of a product, empty for
// simple products.
func (r *CatalogRepository) GetComponents(ctx context.Context, productID int64) ([]catalog.Component, error) {
	rows, err := r.db.q(ctx).Query(ctx, getComponentsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("getting components of %d: %w", productID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Component, error) {
		var (
			c     catalog.Component
			price decimal.Decimal
		)
		err := row.Scan(&c.Product.ID, &c.Product.SKU, &c.Product.Name, &price,
			&c.Product.Stock, &c.Product.Kind, &c.Quantity)
		c.Product.Price = price
		return c, err
	})
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p     catalog.Product
		price decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &price, &p.Stock, &p.Kind)
	p.Price = price
	return p, err
}
