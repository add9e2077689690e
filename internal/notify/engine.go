// Package notify implements the reminder cadence engine.
//
// A batch pass scans warranties near expiry, records a notification for each
// one the cadence marks eligible, and hands every eligible reminder to the
// delivery sink. Recording is idempotent through the (user, warranty,
// message) uniqueness constraint; delivery is best effort and never rolls
// back a record.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/clock"
	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/mail"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/store"
)

// DefaultWorkers bounds concurrent deliveries in a batch pass.
const DefaultWorkers = 4

// BatchReport summarizes one batch pass.
type BatchReport struct {
	Date      string `json:"date"`
	Scanned   int    `json:"scanned"`
	Eligible  int    `json:"eligible"`
	Inserted  int    `json:"inserted"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// GenerateReport summarizes an on-demand pass for one user.
type GenerateReport struct {
	Eligible  int `json:"eligible"`
	Inserted  int `json:"inserted"`
	Delivered int `json:"delivered"`
}

// delivery is a rendered reminder waiting for the sink.
type delivery struct {
	to, subject, body string
	warrantyID        int64
}

// Engine runs reminder passes.
type Engine struct {
	store   *store.Store
	sink    mail.Sink
	clock   clock.Clock
	logger  *slog.Logger
	weekly  time.Weekday
	workers int
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeeklyDay sets the weekday for 8-30 day reminders.
func WithWeeklyDay(d time.Weekday) Option {
	return func(e *Engine) { e.weekly = d }
}

// WithWorkers bounds concurrent deliveries. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an engine.
func NewEngine(s *store.Store, sink mail.Sink, c clock.Clock, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:   s,
		sink:    sink,
		clock:   c,
		logger:  logger,
		weekly:  DefaultWeeklyDay,
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunBatch evaluates every warranty expiring in [today-7, today+30].
//
// Each eligible reminder is recorded if absent and then delivered whether or
// not the record is new. All records are written before any delivery starts,
// and no transaction is held while the sink runs. Record failures are
// returned joined after the pass completes; delivery failures are logged and
// counted only.
func (e *Engine) RunBatch(ctx context.Context) (BatchReport, error) {
	today := clock.Today(e.clock)
	report := BatchReport{Date: dates.Format(today)}

	due, err := e.store.DueWarranties(ctx, dates.AddDays(today, -GraceDays), dates.AddDays(today, WeeklyDays))
	if err != nil {
		return report, apperr.Persistence("notify.run_batch", err)
	}
	report.Scanned = len(due)

	var (
		pending []delivery
		errs    []error
	)
	for _, w := range due {
		if !Eligible(today, w.ExpiryDate, e.weekly) {
			continue
		}
		report.Eligible++

		expired := Expired(today, w.ExpiryDate)
		msg := Message(w.ProductName, w.ExpiryDate, expired)
		inserted, err := e.record(ctx, w.UserID, w.WarrantyID, msg)
		if err != nil {
			errs = append(errs, err)
			e.logger.Error("notification record failed", "warranty_id", w.WarrantyID, "error", err)
			continue
		}
		if inserted {
			report.Inserted++
		}
		pending = append(pending, delivery{
			to:         w.Email,
			subject:    Subject(w.ProductName, expired),
			body:       Body(w.FullName, msg),
			warrantyID: w.WarrantyID,
		})
	}

	report.Delivered, report.Failed = e.deliver(ctx, pending)

	e.logger.Info("notification batch complete",
		"date", report.Date,
		"scanned", report.Scanned,
		"eligible", report.Eligible,
		"inserted", report.Inserted,
		"delivered", report.Delivered,
		"failed", report.Failed,
	)
	if len(errs) > 0 {
		return report, apperr.Persistence("notify.run_batch", errors.Join(errs...))
	}
	return report, nil
}

// GenerateForUser records reminders for one user's warranties that are
// expired or expire within lookahead days. With deliver set, only reminders
// recorded by this call are sent, so repeated page views do not resend mail.
func (e *Engine) GenerateForUser(ctx context.Context, userID int64, lookahead int, deliver bool) (GenerateReport, error) {
	const op = "notify.generate"
	var report GenerateReport
	today := clock.Today(e.clock)

	warranties, err := e.store.ListWarranties(ctx, userID, -1, 0)
	if err != nil {
		return report, apperr.Persistence(op, err)
	}

	var user model.User
	if deliver {
		if user, err = e.store.UserByID(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return report, apperr.NotFound(op, "user not found")
			}
			return report, apperr.Persistence(op, err)
		}
	}

	var pending []delivery
	for _, w := range warranties {
		if !EligibleWithin(today, w.ExpiryDate, lookahead) {
			continue
		}
		report.Eligible++

		expired := Expired(today, w.ExpiryDate)
		msg := Message(w.ProductName, w.ExpiryDate, expired)
		inserted, err := e.record(ctx, userID, w.ID, msg)
		if err != nil {
			return report, apperr.Persistence(op, err)
		}
		if !inserted {
			continue
		}
		report.Inserted++
		if deliver {
			pending = append(pending, delivery{
				to:         user.Email,
				subject:    Subject(w.ProductName, expired),
				body:       Body(user.FullName, msg),
				warrantyID: w.ID,
			})
		}
	}

	report.Delivered, _ = e.deliver(ctx, pending)
	return report, nil
}

// List returns a user's notifications, newest first.
func (e *Engine) List(ctx context.Context, userID int64) ([]model.Notification, error) {
	ns, err := e.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("notify.list", err)
	}
	return ns, nil
}

// UnreadCount returns the number of unread notifications.
func (e *Engine) UnreadCount(ctx context.Context, userID int64) (int, error) {
	n, err := e.store.UnreadCount(ctx, userID)
	if err != nil {
		return 0, apperr.Persistence("notify.unread_count", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification of a user as read.
func (e *Engine) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := e.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperr.Persistence("notify.mark_all_read", err)
	}
	return n, nil
}

func (e *Engine) record(ctx context.Context, userID, warrantyID int64, msg string) (bool, error) {
	inserted, err := e.store.InsertNotification(ctx, model.Notification{
		UserID:     userID,
		WarrantyID: warrantyID,
		Message:    msg,
		CreatedAt:  e.clock.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("record notification for warranty %d: %w", warrantyID, err)
	}
	return inserted, nil
}

// deliver sends pending reminders on a bounded worker group. The sink
// swallows its own failures, so no worker returns an error.
func (e *Engine) deliver(ctx context.Context, pending []delivery) (delivered, failed int) {
	if len(pending) == 0 || e.sink == nil {
		return 0, 0
	}
	var ok, bad atomic.Int64
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, d := range pending {
		d := d
		g.Go(func() error {
			if e.sink.Send(ctx, d.to, d.subject, d.body) {
				ok.Add(1)
				return nil
			}
			bad.Add(1)
			e.logger.Warn("reminder not delivered", "kind", apperr.KindDelivery, "warranty_id", d.warrantyID, "to", d.to)
			return nil
		})
	}
	_ = g.Wait()
	return int(ok.Load()), int(bad.Load())
}
