package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"heritage-atlas/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound  = domain.ErrProductNotFound
	ErrDuplicateBarcode = errors.New("product with this barcode already exists")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	// FindByBarcode matches the code case-insensitively and returns the
	// product whether or not it is active.
	FindByBarcode(ctx context.Context, code string) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, description, gi_tag, region, artisan_name, artisan_contact,
		price, category, image_url, latitude, longitude, cultural_story, barcode,
		is_active, created_at, updated_at`

// Create inserts a new product using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	var lat, lng sql.NullFloat64
	if product.Location != nil {
		lat = sql.NullFloat64{Float64: product.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: product.Location.Longitude, Valid: true}
	}

	var price sql.NullFloat64
	if product.Price != nil {
		price = sql.NullFloat64{Float64: *product.Price, Valid: true}
	}

	barcode := sql.NullString{String: product.Barcode, Valid: product.Barcode != ""}

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.GITag,
		product.Region,
		product.ArtisanName,
		product.ArtisanContact,
		price,
		product.Category,
		product.ImageURL,
		lat,
		lng,
		product.CulturalStory,
		barcode,
		product.IsActive,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBarcode
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

func (r *productRepository) FindByBarcode(ctx context.Context, code string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE UPPER(barcode) = UPPER($1)`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by barcode: %w", err)
	}

	return product, nil
}

// List retrieves active products, newest first, narrowed by filter
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	conditions := []string{"is_active = TRUE"}
	args := []interface{}{}
	argIndex := 1

	for _, f := range []struct {
		column string
		value  string
	}{
		{"region", filter.Region},
		{"gi_tag", filter.GITag},
		{"artisan_name", filter.ArtisanName},
	} {
		if strings.TrimSpace(f.value) == "" {
			continue
		}
		conditions = append(conditions, fmt.Sprintf("%s ILIKE $%d", f.column, argIndex))
		args = append(args, "%"+escapeLike(f.value)+"%")
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, productColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		product  domain.Product
		price    sql.NullFloat64
		lat, lng sql.NullFloat64
		barcode  sql.NullString
	)

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.GITag,
		&product.Region,
		&product.ArtisanName,
		&product.ArtisanContact,
		&price,
		&product.Category,
		&product.ImageURL,
		&lat,
		&lng,
		&product.CulturalStory,
		&barcode,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if price.Valid {
		p := price.Float64
		product.Price = &p
	}
	if lat.Valid && lng.Valid {
		product.Location = &domain.Location{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	product.Barcode = barcode.String

	return &product, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// isUniqueViolation reports whether err is a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var sqlState interface{ SQLState() string }
	return errors.As(err, &sqlState) && sqlState.SQLState() == "23505"
}
