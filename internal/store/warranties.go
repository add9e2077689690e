package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/warranty/internal/model"
)

// InsertWarranty inserts a warranty and returns its ID.
// Returns ErrConflict when the per-user (product, brand) uniqueness index
// rejects the row; callers map that to their duplicate outcome.
func (s *Store) InsertWarranty(ctx context.Context, w model.Warranty, createdAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO warranties
		(user_id, product_id, product_name, brand, purchase_date, warranty_period_months,
		 expiry_date, invoice_path, created_at, name_key, brand_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		w.UserID,
		nullableID(w.ProductID),
		w.ProductName,
		nullable(w.Brand),
		formatDate(w.PurchaseDate),
		w.PeriodMonths,
		formatDate(w.ExpiryDate),
		nullable(w.InvoicePath),
		formatTimestamp(createdAt),
		Fold(w.ProductName),
		Fold(w.Brand),
	)
	if err != nil {
		return 0, classify("insert warranty", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert warranty: last insert id: %w", err)
	}
	return id, nil
}

// UpdateWarranty rewrites a warranty owned by w.UserID.
// The invoice reference is only written when replaceInvoice is true, so an
// omitted upload never clears an existing attachment.
//
// Returns ErrNotFound if the warranty does not belong to w.UserID and
// ErrConflict if the change collides with another of the user's warranties.
func (s *Store) UpdateWarranty(ctx context.Context, w model.Warranty, replaceInvoice bool) error {
	query := `
		UPDATE warranties
		SET product_id = ?, product_name = ?, brand = ?, purchase_date = ?,
			warranty_period_months = ?, expiry_date = ?, name_key = ?, brand_key = ?,
			invoice_path = CASE WHEN ? THEN ? ELSE invoice_path END
		WHERE warranty_id = ? AND user_id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		nullableID(w.ProductID),
		w.ProductName,
		nullable(w.Brand),
		formatDate(w.PurchaseDate),
		w.PeriodMonths,
		formatDate(w.ExpiryDate),
		Fold(w.ProductName),
		Fold(w.Brand),
		replaceInvoice,
		nullable(w.InvoicePath),
		w.ID,
		w.UserID,
	)
	if err != nil {
		return classify("update warranty", err)
	}
	return requireAffected("update warranty", res)
}

// DeleteWarranty removes a warranty owned by userID.
// Claims and notifications referencing it are removed by ON DELETE CASCADE.
func (s *Store) DeleteWarranty(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM warranties WHERE warranty_id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return classify("delete warranty", err)
	}
	return requireAffected("delete warranty", res)
}

// GetWarranty returns a warranty owned by userID.
func (s *Store) GetWarranty(ctx context.Context, userID, id int64) (model.Warranty, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+warrantyColumns+` FROM warranties WHERE warranty_id = ? AND user_id = ?
	`, id, userID)
	w, err := scanWarranty(row)
	if err != nil {
		return model.Warranty{}, classify("get warranty", err)
	}
	return w, nil
}

// ListWarranties returns a user's warranties ordered by expiry date.
// A negative limit returns every row.
func (s *Store) ListWarranties(ctx context.Context, userID int64, limit, offset int) ([]model.Warranty, error) {
	return s.queryWarranties(ctx, "list warranties", `
		SELECT `+warrantyColumns+`
		FROM warranties
		WHERE user_id = ?
		ORDER BY expiry_date ASC, warranty_id ASC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
}

// CountWarranties returns how many warranties a user holds.
func (s *Store) CountWarranties(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM warranties WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count warranties: %w", err)
	}
	return n, nil
}

// ExpiringWarranties returns a user's warranties whose expiry date falls in
// [from, to], soonest first.
func (s *Store) ExpiringWarranties(ctx context.Context, userID int64, from, to time.Time) ([]model.Warranty, error) {
	return s.queryWarranties(ctx, "expiring warranties", `
		SELECT `+warrantyColumns+`
		FROM warranties
		WHERE user_id = ? AND expiry_date BETWEEN ? AND ?
		ORDER BY expiry_date ASC, warranty_id ASC
	`, userID, formatDate(from), formatDate(to))
}

// HasDuplicateWarranty reports whether userID already holds a warranty whose
// folded (product name, brand) matches, ignoring excludeID.
// Pass excludeID = 0 when adding.
func (s *Store) HasDuplicateWarranty(ctx context.Context, userID int64, productName, brand string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM warranties
		WHERE user_id = ?
		  AND warranty_id <> ?
		  AND name_key = ?
		  AND brand_key = ?
	`, userID, excludeID, Fold(productName), Fold(brand)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check duplicate warranty: %w", err)
	}
	return count > 0, nil
}

// DedupeWarranties deletes every warranty of userID that shares its
// folded (product name, brand) group with a lower-ID row,
// and returns the number removed. Running it again removes nothing.
func (s *Store) DedupeWarranties(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM warranties
		WHERE warranty_id IN (
			SELECT warranty_id FROM (
				SELECT warranty_id,
					ROW_NUMBER() OVER (
						PARTITION BY name_key, brand_key
						ORDER BY warranty_id
					) AS rn
				FROM warranties
				WHERE user_id = ?
			)
			WHERE rn > 1
		)
	`, userID)
	if err != nil {
		return 0, classify("dedupe warranties", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dedupe warranties: rows affected: %w", err)
	}
	return removed, nil
}

// DueWarranties returns every warranty whose expiry date falls in [from, to],
// joined with its owner's contact details, ordered by expiry then ID.
func (s *Store) DueWarranties(ctx context.Context, from, to time.Time) ([]model.DueWarranty, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.warranty_id, w.user_id, u.email, u.full_name, w.product_name, w.expiry_date
		FROM warranties w
		JOIN users u ON u.user_id = w.user_id
		WHERE w.expiry_date BETWEEN ? AND ?
		ORDER BY w.expiry_date ASC, w.warranty_id ASC
	`, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("query due warranties: %w", err)
	}
	defer rows.Close()

	due := []model.DueWarranty{}
	for rows.Next() {
		var (
			d      model.DueWarranty
			expiry string
		)
		if err := rows.Scan(&d.WarrantyID, &d.UserID, &d.Email, &d.FullName, &d.ProductName, &expiry); err != nil {
			return nil, fmt.Errorf("scan due warranty: %w", err)
		}
		if d.ExpiryDate, err = parseDate("expiry_date", expiry); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due warranties: %w", err)
	}
	return due, nil
}

// queryWarranties runs a query selecting warrantyColumns and decodes every row.
func (s *Store) queryWarranties(ctx context.Context, op, query string, args ...any) ([]model.Warranty, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	warranties := []model.Warranty{}
	for rows.Next() {
		w, err := scanWarranty(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		warranties = append(warranties, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return warranties, nil
}
