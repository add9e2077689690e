package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/warranty/internal/model"
)

// Dashboard returns the admin counters. ExpiringSoon counts warranties whose
// expiry falls in [today, soon].
func (s *Store) Dashboard(ctx context.Context, today, soon time.Time) (model.Dashboard, error) {
	var d model.Dashboard
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM warranties),
			(SELECT COUNT(*) FROM warranties WHERE expiry_date BETWEEN ? AND ?),
			(SELECT COUNT(*) FROM service_claims WHERE status = ?)
	`, formatDate(today), formatDate(soon), string(model.ClaimPending)).Scan(
		&d.Users, &d.Warranties, &d.ExpiringSoon, &d.PendingClaims)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}
	return d, nil
}

// ExpiredBefore lists warranties that expired before today, most recent first.
func (s *Store) ExpiredBefore(ctx context.Context, today time.Time) ([]model.ExpiryEntry, error) {
	return s.queryExpiry(ctx, "expired warranties", `
		SELECT w.product_name, u.full_name, w.expiry_date
		FROM warranties w
		JOIN users u ON w.user_id = u.user_id
		WHERE w.expiry_date < ?
		ORDER BY w.expiry_date DESC, w.warranty_id ASC
	`, formatDate(today))
}

// ExpiringBetween lists warranties expiring in [from, to], soonest first.
func (s *Store) ExpiringBetween(ctx context.Context, from, to time.Time) ([]model.ExpiryEntry, error) {
	return s.queryExpiry(ctx, "upcoming warranties", `
		SELECT w.product_name, u.full_name, w.expiry_date
		FROM warranties w
		JOIN users u ON w.user_id = u.user_id
		WHERE w.expiry_date BETWEEN ? AND ?
		ORDER BY w.expiry_date ASC, w.warranty_id ASC
	`, formatDate(from), formatDate(to))
}

func (s *Store) queryExpiry(ctx context.Context, op, query string, args ...any) ([]model.ExpiryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	entries := []model.ExpiryEntry{}
	for rows.Next() {
		var e model.ExpiryEntry
		if err := rows.Scan(&e.ProductName, &e.UserName, &e.ExpiryDate); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return entries, nil
}

// ClaimsSummary aggregates claim counts per (user, product).
func (s *Store) ClaimsSummary(ctx context.Context) ([]model.ClaimSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.full_name, w.product_name,
			COUNT(c.claim_id),
			SUM(CASE WHEN c.status = 'Pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN c.status = 'In Progress' THEN 1 ELSE 0 END),
			SUM(CASE WHEN c.status = 'Completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN c.status = 'Denied' THEN 1 ELSE 0 END)
		FROM service_claims c
		JOIN warranties w ON c.warranty_id = w.warranty_id
		JOIN users u ON w.user_id = u.user_id
		GROUP BY u.full_name, w.product_name
		ORDER BY u.full_name, w.product_name
	`)
	if err != nil {
		return nil, fmt.Errorf("claims summary: %w", err)
	}
	defer rows.Close()

	summary := []model.ClaimSummary{}
	for rows.Next() {
		var c model.ClaimSummary
		if err := rows.Scan(&c.UserName, &c.ProductName, &c.Total, &c.Pending, &c.InProgress, &c.Completed, &c.Denied); err != nil {
			return nil, fmt.Errorf("claims summary: scan: %w", err)
		}
		summary = append(summary, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claims summary: iterate: %w", err)
	}
	return summary, nil
}

// SearchWarranties lists warranties across all users for the admin view.
// pattern filters product, brand and owner name (case-insensitive substring);
// status is "", model.StatusActive or model.StatusExpired.
func (s *Store) SearchWarranties(ctx context.Context, pattern, status string, today time.Time, limit, offset int) ([]model.WarrantyListing, error) {
	like := containsPattern(pattern)
	day := formatDate(today)
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.warranty_id, u.full_name, w.product_name, coalesce(w.brand, ''),
			w.purchase_date, w.expiry_date,
			CASE WHEN w.expiry_date >= ? THEN 'Active' ELSE 'Expired' END AS state
		FROM warranties w
		JOIN users u ON w.user_id = u.user_id
		WHERE (? = '' OR lower(w.product_name) LIKE lower(?) ESCAPE '\'
				OR lower(coalesce(w.brand, '')) LIKE lower(?) ESCAPE '\'
				OR lower(u.full_name) LIKE lower(?) ESCAPE '\')
			AND (? = '' OR (CASE WHEN w.expiry_date >= ? THEN 'Active' ELSE 'Expired' END) = ?)
		ORDER BY w.expiry_date ASC, w.warranty_id ASC
		LIMIT ? OFFSET ?
	`, day, pattern, like, like, like, status, day, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search warranties: %w", err)
	}
	defer rows.Close()

	listings := []model.WarrantyListing{}
	for rows.Next() {
		var (
			l                model.WarrantyListing
			purchase, expiry string
		)
		if err := rows.Scan(&l.WarrantyID, &l.UserName, &l.ProductName, &l.Brand, &purchase, &expiry, &l.Status); err != nil {
			return nil, fmt.Errorf("search warranties: scan: %w", err)
		}
		if l.PurchaseDate, err = parseDate("purchase_date", purchase); err != nil {
			return nil, err
		}
		if l.ExpiryDate, err = parseDate("expiry_date", expiry); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search warranties: iterate: %w", err)
	}
	return listings, nil
}
