// Package report builds the administrator dashboard and expiry reports.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/clock"
	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/page"
	"github.com/roach88/warranty/internal/store"
)

// UpcomingDays is the window of the dashboard counter and the upcoming section.
const UpcomingDays = 30

// Report is the full administrator report for one day.
type Report struct {
	Date     string               `json:"date"`
	Expired  []model.ExpiryEntry  `json:"expired"`
	Upcoming []model.ExpiryEntry  `json:"upcoming"`
	Claims   []model.ClaimSummary `json:"claims_summary"`
}

// Service answers administrator reporting queries.
type Service struct {
	store  *store.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewService creates a report service.
func NewService(s *store.Store, c clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, clock: c, logger: logger}
}

// Dashboard returns the landing-page counters.
func (s *Service) Dashboard(ctx context.Context, _ model.AdminIdentity) (model.Dashboard, error) {
	today := clock.Today(s.clock)
	d, err := s.store.Dashboard(ctx, today, dates.AddDays(today, UpcomingDays))
	if err != nil {
		return model.Dashboard{}, apperr.Persistence("report.dashboard", err)
	}
	return d, nil
}

// Report returns the expired list, the warranties expiring in the next
// UpcomingDays days and the claims summary.
func (s *Service) Report(ctx context.Context, admin model.AdminIdentity) (Report, error) {
	const op = "report.report"
	today := clock.Today(s.clock)
	r := Report{Date: dates.Format(today)}

	var err error
	if r.Expired, err = s.store.ExpiredBefore(ctx, today); err != nil {
		return Report{}, apperr.Persistence(op, err)
	}
	if r.Upcoming, err = s.store.ExpiringBetween(ctx, today, dates.AddDays(today, UpcomingDays)); err != nil {
		return Report{}, apperr.Persistence(op, err)
	}
	if r.Claims, err = s.store.ClaimsSummary(ctx); err != nil {
		return Report{}, apperr.Persistence(op, err)
	}
	s.logger.Debug("report built", "admin_id", admin.AdminID,
		"expired", len(r.Expired), "upcoming", len(r.Upcoming), "claim_groups", len(r.Claims))
	return r, nil
}

// Warranties searches warranties across users. status is "", "Active" or
// "Expired"; q matches product, brand or owner name.
func (s *Service) Warranties(ctx context.Context, _ model.AdminIdentity, q, status string, p page.Request) ([]model.WarrantyListing, error) {
	const op = "report.warranties"
	switch status {
	case "", model.StatusActive, model.StatusExpired:
	default:
		return nil, apperr.Validation(op, "status must be Active or Expired")
	}
	rows, err := s.store.SearchWarranties(ctx, q, status, clock.Today(s.clock), p.Limit(), p.Offset())
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return rows, nil
}

// WriteText renders r as plain text.
func WriteText(w io.Writer, r Report) error {
	ew := &errWriter{w: w}
	ew.printf("Warranty report for %s\n", r.Date)

	ew.printf("\nExpired (%d)\n", len(r.Expired))
	for _, e := range r.Expired {
		ew.printf("  %s  %s (%s)\n", e.ExpiryDate, e.ProductName, e.UserName)
	}

	ew.printf("\nExpiring in %d days (%d)\n", UpcomingDays, len(r.Upcoming))
	for _, e := range r.Upcoming {
		ew.printf("  %s  %s (%s)\n", e.ExpiryDate, e.ProductName, e.UserName)
	}

	ew.printf("\nClaims (%d)\n", len(r.Claims))
	for _, c := range r.Claims {
		ew.printf("  %s / %s: total=%d pending=%d in_progress=%d completed=%d denied=%d\n",
			c.UserName, c.ProductName, c.Total, c.Pending, c.InProgress, c.Completed, c.Denied)
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
