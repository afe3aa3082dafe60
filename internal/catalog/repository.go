package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/variant"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Repository serves products from a local SQLite database.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewRepository(dbPath string, logger *zap.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const productColumns = `id, title, slug, description, category, image, price, colors, sizes, attributes, stock_quantity`

const variantColumns = `id, product_id, sku, price, image, attributes, stock`

// GetProduct loads one product with its variants. A product whose variants
// fail validation is reported as ErrInvalidProduct.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	variants, err := r.variants(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE product_id = ? ORDER BY position, id`, id)
	if err != nil {
		return nil, err
	}
	p.Variants = variants[p.ID]

	if err := variant.ValidateVariants(*p); err != nil {
		return nil, fmt.Errorf("%w: product %d: %w", ErrInvalidProduct, p.ID, err)
	}
	return p, nil
}

// ListProducts loads every valid product in id order. Invalid products are
// logged and left out.
func (r *Repository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	variants, err := r.variants(ctx, `SELECT `+variantColumns+` FROM product_variants ORDER BY product_id, position, id`)
	if err != nil {
		return nil, err
	}

	valid := products[:0]
	for _, p := range products {
		p.Variants = variants[p.ID]
		if err := variant.ValidateVariants(*p); err != nil {
			r.logger.Warn("skipping invalid product", zap.Int64("product_id", p.ID), zap.Error(err))
			continue
		}
		valid = append(valid, p)
	}
	return valid, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) variants(ctx context.Context, query string, args ...any) (map[int64][]domain.ProductVariant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.ProductVariant)
	for rows.Next() {
		var (
			v         domain.ProductVariant
			productID int64
			attrs     string
		)
		if err := rows.Scan(&v.ID, &productID, &v.SKU, &v.Price, &v.Image, &attrs, &v.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &v.Attributes); err != nil {
			return nil, fmt.Errorf("%w: variant %d attributes: %w", ErrInvalidProduct, v.ID, err)
		}
		out[productID] = append(out[productID], v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*domain.Product, error) {
	var (
		p                         domain.Product
		colors, sizes, attributes string
		stock                     sql.NullInt64
	)
	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Slug,
		&p.Description,
		&p.Category,
		&p.Image,
		&p.Price,
		&colors,
		&sizes,
		&attributes,
		&stock,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	if err := json.Unmarshal([]byte(colors), &p.Colors); err != nil {
		return nil, fmt.Errorf("%w: product %d colors: %w", ErrInvalidProduct, p.ID, err)
	}
	if err := json.Unmarshal([]byte(sizes), &p.Sizes); err != nil {
		return nil, fmt.Errorf("%w: product %d sizes: %w", ErrInvalidProduct, p.ID, err)
	}
	if err := json.Unmarshal([]byte(attributes), &p.Attributes); err != nil {
		return nil, fmt.Errorf("%w: product %d attributes: %w", ErrInvalidProduct, p.ID, err)
	}
	if stock.Valid {
		p.StockQuantity = domain.IntPtr(int(stock.Int64))
	}
	return &p, nil
}
