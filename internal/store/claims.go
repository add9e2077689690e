package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/warranty/internal/model"
)

// InsertClaim files a Pending claim against a warranty owned by userID.
// Ownership is checked by the same statement that inserts, so a foreign
// warranty ID writes nothing and returns ErrNotFound.
func (s *Store) InsertClaim(ctx context.Context, userID, warrantyID int64, description string, claimDate time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO service_claims (warranty_id, description, claim_date, status)
		SELECT warranty_id, ?, ?, ?
		FROM warranties
		WHERE warranty_id = ? AND user_id = ?
	`, description, formatTimestamp(claimDate), string(model.ClaimPending), warrantyID, userID)
	if err != nil {
		return 0, classify("insert claim", err)
	}
	if err := requireAffected("insert claim", res); err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert claim: last insert id: %w", err)
	}
	return id, nil
}

// UpdateClaimStatus sets a claim's status.
func (s *Store) UpdateClaimStatus(ctx context.Context, claimID int64, status model.ClaimStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE service_claims SET status = ? WHERE claim_id = ?`, string(status), claimID)
	if err != nil {
		return classify("update claim status", err)
	}
	return requireAffected("update claim status", res)
}

// ClaimsForUser returns every claim on the user's warranties, newest first.
func (s *Store) ClaimsForUser(ctx context.Context, userID int64) ([]model.Claim, error) {
	return s.queryClaims(ctx, "claims for user", `
		SELECT c.claim_id, c.warranty_id, w.product_name, u.full_name, c.description, c.claim_date, c.status
		FROM service_claims c
		JOIN warranties w ON c.warranty_id = w.warranty_id
		JOIN users u ON w.user_id = u.user_id
		WHERE w.user_id = ?
		ORDER BY c.claim_date DESC, c.claim_id DESC
	`, userID)
}

// ClaimsForWarranty returns the claims of one warranty owned by userID, newest first.
func (s *Store) ClaimsForWarranty(ctx context.Context, userID, warrantyID int64) ([]model.Claim, error) {
	return s.queryClaims(ctx, "claims for warranty", `
		SELECT c.claim_id, c.warranty_id, w.product_name, u.full_name, c.description, c.claim_date, c.status
		FROM service_claims c
		JOIN warranties w ON c.warranty_id = w.warranty_id
		JOIN users u ON w.user_id = u.user_id
		WHERE w.user_id = ? AND c.warranty_id = ?
		ORDER BY c.claim_date DESC, c.claim_id DESC
	`, userID, warrantyID)
}

// ListClaims returns claims across all users, newest first.
// An empty status returns every status.
func (s *Store) ListClaims(ctx context.Context, status model.ClaimStatus, limit, offset int) ([]model.Claim, error) {
	return s.queryClaims(ctx, "list claims", `
		SELECT c.claim_id, c.warranty_id, w.product_name, u.full_name, c.description, c.claim_date, c.status
		FROM service_claims c
		JOIN warranties w ON c.warranty_id = w.warranty_id
		JOIN users u ON w.user_id = u.user_id
		WHERE ? = '' OR c.status = ?
		ORDER BY c.claim_date DESC, c.claim_id DESC
		LIMIT ? OFFSET ?
	`, string(status), string(status), limit, offset)
}

func (s *Store) queryClaims(ctx context.Context, op, query string, args ...any) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	claims := []model.Claim{}
	for rows.Next() {
		var (
			c         model.Claim
			claimDate string
			status    string
		)
		if err := rows.Scan(&c.ID, &c.WarrantyID, &c.ProductName, &c.UserName, &c.Description, &claimDate, &status); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if c.ClaimDate, err = parseTimestamp("claim_date", claimDate); err != nil {
			return nil, err
		}
		c.Status = model.ClaimStatus(status)
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return claims, nil
}
