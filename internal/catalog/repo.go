package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

// Repo serves the storefront browse queries: products, locations and stock
// info. Plain reads, no invariants beyond stable ordering.
type Repo struct {
	DB *pgxpool.Pool
}

// GetProduct returns one product with its current price; order creation
// snapshots that price into price_at_order_time.
func (r *Repo) GetProduct(ctx context.Context, productID int64) (*orders.Product, error) {
	var p orders.Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, manufacturer, price, created_at, updated_at
		FROM products WHERE id=$1
	`, productID).Scan(&p.ID, &p.Name, &p.Manufacturer, &p.Price, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) ListProducts(ctx context.Context, limit, offset int) ([]orders.Product, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, name, manufacturer, price, created_at, updated_at
		FROM products ORDER BY id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		var p orders.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Manufacturer, &p.Price, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repo) ListLocations(ctx context.Context, limit, offset int) ([]orders.Location, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := r.DB.QueryRow(ctx, `SELECT count(*) FROM locations`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, name, address, created_at, updated_at
		FROM locations ORDER BY id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []orders.Location
	for rows.Next() {
		var l orders.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Address, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// ListLocationsWithStock returns only locations that have at least one
// product in stock; the storefront entry point.
func (r *Repo) ListLocationsWithStock(ctx context.Context) ([]orders.Location, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT DISTINCT l.id, l.name, l.address, l.created_at, l.updated_at
		FROM locations l
		JOIN stock s ON s.location_id = l.id AND s.quantity > 0
		ORDER BY l.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Location
	for rows.Next() {
		var l orders.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Address, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListProductStocks returns every stock record of one product.
func (r *Repo) ListProductStocks(ctx context.Context, productID int64) ([]orders.StockRecord, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, location_id, quantity
		FROM stock WHERE product_id=$1 ORDER BY location_id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.StockRecord
	for rows.Next() {
		var s orders.StockRecord
		if err := rows.Scan(&s.ProductID, &s.LocationID, &s.Quantity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
