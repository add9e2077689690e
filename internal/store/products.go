package store

import (
	"context"
	"fmt"

	"github.com/roach88/warranty/internal/model"
)

// ProductKey is the normalized (brand, model) lookup key of a catalog product.
// Normalization is the caller's responsibility; the store compares keys verbatim.
type ProductKey struct {
	Brand string
	Model string
}

// ResolveProduct returns the ID of the product with the given key, inserting
// an unverified product built from p if none exists.
//
// Uses ON CONFLICT(brand_key, model_key) DO NOTHING followed by a select in the
// same transaction, so concurrent callers converge on one row.
func (s *Store) ResolveProduct(ctx context.Context, key ProductKey, p model.Product) (id int64, created bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("resolve product: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO products (brand, model_name, category, image_url, verified, brand_key, model_key)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(brand_key, model_key) DO NOTHING
	`, p.Brand, p.ModelName, nullable(p.Category), nullable(p.ImageURL), key.Brand, key.Model)
	if err != nil {
		return 0, false, fmt.Errorf("resolve product: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("resolve product: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		id, err = result.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("resolve product: last insert id: %w", err)
		}
		created = true
	} else {
		err = tx.QueryRowContext(ctx, `
			SELECT product_id FROM products WHERE brand_key = ? AND model_key = ?
		`, key.Brand, key.Model).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("resolve product: select existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("resolve product: commit: %w", err)
	}
	return id, created, nil
}

// UpsertVerifiedProduct creates a verified product or promotes an existing
// entry with the same key to verified, updating its category when one is given.
func (s *Store) UpsertVerifiedProduct(ctx context.Context, key ProductKey, p model.Product) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (brand, model_name, category, image_url, verified, brand_key, model_key)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(brand_key, model_key) DO UPDATE SET
			verified = 1,
			category = coalesce(excluded.category, products.category),
			image_url = coalesce(excluded.image_url, products.image_url)
		RETURNING product_id
	`, p.Brand, p.ModelName, nullable(p.Category), nullable(p.ImageURL), key.Brand, key.Model).Scan(&id)
	if err != nil {
		return 0, classify("upsert product", err)
	}
	return id, nil
}

// ProductByID returns a catalog product.
func (s *Store) ProductByID(ctx context.Context, id int64) (model.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = ?`, id)
	p, err := scanProduct(row)
	if err != nil {
		return model.Product{}, classify("product by id", err)
	}
	return p, nil
}

// ListProducts returns catalog products ordered by brand and model.
// A non-empty pattern filters brand, model and category with a
// case-insensitive substring match in which % and _ are literal.
func (s *Store) ListProducts(ctx context.Context, pattern string, limit, offset int) ([]model.Product, error) {
	like := containsPattern(pattern)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ? = '' OR lower(brand) LIKE lower(?) ESCAPE '\' OR lower(model_name) LIKE lower(?) ESCAPE '\'
			OR lower(coalesce(category, '')) LIKE lower(?) ESCAPE '\'
		ORDER BY brand ASC, model_name ASC, product_id ASC
		LIMIT ? OFFSET ?
	`, pattern, like, like, like, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}
