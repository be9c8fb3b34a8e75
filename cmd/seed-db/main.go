// Command seed-db loads the catalog fixture into PostgreSQL: categories,
// filterable attributes with their options, products (including bundle
// components and price indices), and shipping methods.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/db"
	"github.com/xenking/storefront-api/internal/repository"
)

type catalogJSON struct {
	Categories []struct {
		Name     string `json:"name"`
		Position int    `json:"position"`
	} `json:"categories"`
	Attributes []struct {
		Code    string   `json:"code"`
		Options []string `json:"options"`
	} `json:"attributes"`
	ShippingMethods []struct {
		Code  string          `json:"code"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	} `json:"shipping_methods"`
	Products []productJSON `json:"products"`
}

type productJSON struct {
	SKU        string            `json:"sku"`
	Name       string            `json:"name"`
	Price      decimal.Decimal   `json:"price"`
	Stock      int               `json:"stock"`
	Kind       string            `json:"kind"`
	Categories []string          `json:"categories"`
	Attributes map[string]string `json:"attributes"`
	Components []struct {
		SKU      string `json:"sku"`
		Quantity int    `json:"quantity"`
	} `json:"components"`
	MinPrice decimal.Decimal `json:"min_price"`
}

func main() {
	var (
		databaseURL string
		fixtureFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&fixtureFile, "fixture-file", "", "path to catalog JSON fixture (defaults to the embedded one)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, fixtureFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, fixtureFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	fixture, err := loadFixture(fixtureFile)
	if err != nil {
		return errors.Wrap(err, "load fixture")
	}

	if err := seedCategories(ctx, pool, fixture); err != nil {
		return errors.Wrap(err, "seed categories")
	}
	if err := seedAttributes(ctx, pool, fixture); err != nil {
		return errors.Wrap(err, "seed attributes")
	}
	if err := seedShippingMethods(ctx, pool, fixture); err != nil {
		return errors.Wrap(err, "seed shipping methods")
	}
	if err := seedProducts(ctx, pool, fixture); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

func loadFixture(path string) (*catalogJSON, error) {
	data := db.SeedCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read fixture file")
		}
	}

	var fixture catalogJSON
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, errors.Wrap(err, "parse fixture JSON")
	}
	return &fixture, nil
}

func seedCategories(ctx context.Context, pool *pgxpool.Pool, fixture *catalogJSON) error {
	slog.Info("upserting categories", slog.Int("count", len(fixture.Categories)))

	for _, c := range fixture.Categories {
		if _, err := pool.Exec(ctx, `
			INSERT INTO categories (name, position)
			SELECT $1, $2
			WHERE NOT EXISTS (SELECT 1 FROM categories WHERE name = $1)`,
			c.Name, c.Position,
		); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.Name)
		}
	}
	return nil
}

func seedAttributes(ctx context.Context, pool *pgxpool.Pool, fixture *catalogJSON) error {
	slog.Info("upserting attributes", slog.Int("count", len(fixture.Attributes)))

	for _, a := range fixture.Attributes {
		var attrID int64
		if err := pool.QueryRow(ctx, `
			INSERT INTO attributes (code) VALUES ($1)
			ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
			RETURNING id`,
			a.Code,
		).Scan(&attrID); err != nil {
			return errors.Wrapf(err, "upsert attribute %s", a.Code)
		}

		for _, opt := range a.Options {
			if _, err := pool.Exec(ctx, `
				INSERT INTO attribute_options (attribute_id, admin_name)
				SELECT $1, $2
				WHERE NOT EXISTS (
					SELECT 1 FROM attribute_options
					WHERE attribute_id = $1 AND admin_name = $2
				)`,
				attrID, opt,
			); err != nil {
				return errors.Wrapf(err, "upsert option %s.%s", a.Code, opt)
			}
		}
	}
	return nil
}

func seedShippingMethods(ctx context.Context, pool *pgxpool.Pool, fixture *catalogJSON) error {
	slog.Info("upserting shipping methods", slog.Int("count", len(fixture.ShippingMethods)))

	for _, m := range fixture.ShippingMethods {
		if _, err := pool.Exec(ctx, `
			INSERT INTO shipping_methods (code, name, price, is_active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (code) DO UPDATE
			SET name = EXCLUDED.name, price = EXCLUDED.price, is_active = TRUE`,
			m.Code, m.Name, m.Price,
		); err != nil {
			return errors.Wrapf(err, "upsert shipping method %s", m.Code)
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, fixture *catalogJSON) error {
	slog.Info("upserting products", slog.Int("count", len(fixture.Products)))

	for _, p := range fixture.Products {
		kind := p.Kind
		if kind == "" {
			kind = "simple"
		}

		var productID int64
		if err := pool.QueryRow(ctx, `
			INSERT INTO products (sku, name, price, stock, kind)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (sku) DO UPDATE
			SET name = EXCLUDED.name, price = EXCLUDED.price,
			    stock = EXCLUDED.stock, kind = EXCLUDED.kind
			RETURNING id`,
			p.SKU, p.Name, p.Price, p.Stock, kind,
		).Scan(&productID); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.SKU)
		}

		for i, name := range p.Categories {
			if _, err := pool.Exec(ctx, `
				INSERT INTO product_categories (product_id, category_id, position)
				SELECT $1, c.id, $3 FROM categories c WHERE c.name = $2
				ON CONFLICT (product_id, category_id) DO UPDATE
				SET position = EXCLUDED.position`,
				productID, name, i,
			); err != nil {
				return errors.Wrapf(err, "link product %s to category %s", p.SKU, name)
			}
		}

		for code, option := range p.Attributes {
			if _, err := pool.Exec(ctx, `
				INSERT INTO product_attribute_values (product_id, attribute_id, option_id)
				SELECT $1, a.id, o.id
				FROM attributes a
				JOIN attribute_options o ON o.attribute_id = a.id
				WHERE a.code = $2 AND o.admin_name = $3
				ON CONFLICT (product_id, attribute_id) DO UPDATE
				SET option_id = EXCLUDED.option_id`,
				productID, code, option,
			); err != nil {
				return errors.Wrapf(err, "set attribute %s=%s on %s", code, option, p.SKU)
			}
		}

		for _, comp := range p.Components {
			if _, err := pool.Exec(ctx, `
				INSERT INTO product_components (product_id, component_id, quantity)
				SELECT $1, c.id, $3 FROM products c WHERE c.sku = $2
				ON CONFLICT (product_id, component_id) DO UPDATE
				SET quantity = EXCLUDED.quantity`,
				productID, comp.SKU, comp.Quantity,
			); err != nil {
				return errors.Wrapf(err, "link component %s of %s", comp.SKU, p.SKU)
			}
		}

		minPrice := p.MinPrice
		if minPrice.IsZero() {
			minPrice = p.Price
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO product_price_indices (product_id, min_price)
			VALUES ($1, $2)
			ON CONFLICT (product_id) DO UPDATE SET min_price = EXCLUDED.min_price`,
			productID, minPrice,
		); err != nil {
			return errors.Wrapf(err, "index price for %s", p.SKU)
		}

		slog.Info("upserted product", slog.String("sku", p.SKU), slog.String("name", p.Name))
	}
	return nil
}
