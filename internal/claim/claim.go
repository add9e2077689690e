// Package claim files and tracks service claims against warranties.
package claim

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/clock"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/page"
	"github.com/roach88/warranty/internal/store"
	"github.com/roach88/warranty/internal/validate"
)

type submission struct {
	WarrantyID  int64  `json:"warranty_id" validate:"gt=0"`
	Description string `json:"description" validate:"notblank,max=2000"`
}

// Service manages claims.
type Service struct {
	store  *store.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewService creates a claim service.
func NewService(s *store.Store, c clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, clock: c, logger: logger}
}

// Submit files a Pending claim on one of the caller's warranties. A warranty
// the caller does not own is NotFound and nothing is written.
func (s *Service) Submit(ctx context.Context, id model.Identity, warrantyID int64, description string) (model.Claim, error) {
	const op = "claim.submit"
	in := submission{WarrantyID: warrantyID, Description: strings.TrimSpace(description)}
	if err := validate.Struct(op, in); err != nil {
		return model.Claim{}, err
	}

	now := s.clock.Now()
	claimID, err := s.store.InsertClaim(ctx, id.UserID, warrantyID, in.Description, now)
	if errors.Is(err, store.ErrNotFound) {
		return model.Claim{}, apperr.NotFound(op, "invalid warranty selection")
	}
	if err != nil {
		return model.Claim{}, apperr.Persistence(op, err)
	}
	s.logger.Info("claim submitted", "user_id", id.UserID, "warranty_id", warrantyID, "claim_id", claimID)
	return model.Claim{
		ID:          claimID,
		WarrantyID:  warrantyID,
		Description: in.Description,
		ClaimDate:   now,
		Status:      model.ClaimPending,
	}, nil
}

// UpdateStatus sets a claim's status. Only administrators call this.
func (s *Service) UpdateStatus(ctx context.Context, admin model.AdminIdentity, claimID int64, status model.ClaimStatus) error {
	const op = "claim.update_status"
	if !status.Valid() {
		return apperr.Validation(op, "status must be one of: Pending, In Progress, Completed, Denied")
	}
	err := s.store.UpdateClaimStatus(ctx, claimID, status)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(op, "claim not found")
	}
	if err != nil {
		return apperr.Persistence(op, err)
	}
	s.logger.Info("claim status updated", "admin_id", admin.AdminID, "claim_id", claimID, "status", status)
	return nil
}

// ListForUser returns the caller's claims, newest first.
func (s *Service) ListForUser(ctx context.Context, id model.Identity) ([]model.Claim, error) {
	claims, err := s.store.ClaimsForUser(ctx, id.UserID)
	if err != nil {
		return nil, apperr.Persistence("claim.list_for_user", err)
	}
	return claims, nil
}

// ListAll returns a page of claims across users. An empty status lists all.
func (s *Service) ListAll(ctx context.Context, _ model.AdminIdentity, status model.ClaimStatus, p page.Request) ([]model.Claim, error) {
	const op = "claim.list_all"
	if status != "" && !status.Valid() {
		return nil, apperr.Validation(op, "unknown status %q", status)
	}
	claims, err := s.store.ListClaims(ctx, status, p.Limit(), p.Offset())
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return claims, nil
}
