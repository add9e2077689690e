// Package warranty implements the warranty record manager: expiry
// computation, per-user (product, brand) uniqueness, catalog linking and
// de-duplication.
package warranty

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/attach"
	"github.com/roach88/warranty/internal/catalog"
	"github.com/roach88/warranty/internal/clock"
	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/page"
	"github.com/roach88/warranty/internal/store"
	"github.com/roach88/warranty/internal/validate"
)

// DefaultExpiringDays is the window used by Expiring when none is given.
const DefaultExpiringDays = 30

const duplicateMessage = "a warranty for this product and brand already exists"

// Input is a new or edited warranty.
type Input struct {
	ProductName  string `json:"product_name" validate:"notblank,max=200"`
	Brand        string `json:"brand" validate:"max=200"`
	PurchaseDate string `json:"purchase_date" validate:"required,date"`
	Period       int    `json:"warranty_period" validate:"gt=0,lte=1200"`
	Unit         Unit   `json:"period_unit" validate:"oneof=years months"`

	// Invoice is optional. On edit, nil keeps the stored attachment.
	Invoice *attach.Upload `json:"-"`
}

// Item is a warranty with its status on the day it was read.
type Item struct {
	model.Warranty
	Status string `json:"status"`
}

// Page is one page of a user's warranties.
type Page struct {
	page.Request
	Items []Item `json:"items"`
	Total int    `json:"total"`
}

// Detail is a warranty with its service claims.
type Detail struct {
	Item
	Claims []model.Claim `json:"claims"`
}

// Service is the warranty record manager.
type Service struct {
	store   *store.Store
	catalog *catalog.Service
	files   attach.Store
	clock   clock.Clock
	logger  *slog.Logger
}

// NewService creates a warranty service. files may be nil when attachments
// are not accepted.
func NewService(s *store.Store, cat *catalog.Service, files attach.Store, c clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, catalog: cat, files: files, clock: c, logger: logger}
}

// Add validates and stores a new warranty for the caller.
//
// A pre-check rejects an existing (product, brand) pair; the unique index
// catches a concurrent identical submission and maps to the same Duplicate
// outcome.
func (s *Service) Add(ctx context.Context, id model.Identity, in Input) (model.Warranty, error) {
	const op = "warranty.add"
	w, err := s.build(op, id, in)
	if err != nil {
		return model.Warranty{}, err
	}

	if err := s.checkDuplicate(ctx, op, w, 0); err != nil {
		return model.Warranty{}, err
	}
	if err := s.link(ctx, &w); err != nil {
		return model.Warranty{}, err
	}
	if w.InvoicePath, err = s.saveInvoice(op, id, in.Invoice); err != nil {
		return model.Warranty{}, err
	}

	w.ID, err = s.store.InsertWarranty(ctx, w, s.clock.Now())
	if err != nil {
		s.discardInvoice(w.InvoicePath)
		return model.Warranty{}, mapWriteError(op, err)
	}
	s.logger.Info("warranty added", "user_id", id.UserID, "warranty_id", w.ID, "expiry", dates.Format(w.ExpiryDate))
	return w, nil
}

// Edit rewrites one of the caller's warranties. The uniqueness check
// excludes the record itself, and the invoice is replaced only when a new
// one is supplied.
func (s *Service) Edit(ctx context.Context, id model.Identity, warrantyID int64, in Input) (model.Warranty, error) {
	const op = "warranty.edit"
	w, err := s.build(op, id, in)
	if err != nil {
		return model.Warranty{}, err
	}
	w.ID = warrantyID

	current, err := s.store.GetWarranty(ctx, id.UserID, warrantyID)
	if err != nil {
		return model.Warranty{}, mapWriteError(op, err)
	}
	if err := s.checkDuplicate(ctx, op, w, warrantyID); err != nil {
		return model.Warranty{}, err
	}
	if err := s.link(ctx, &w); err != nil {
		return model.Warranty{}, err
	}

	replace := in.Invoice != nil
	if replace {
		if w.InvoicePath, err = s.saveInvoice(op, id, in.Invoice); err != nil {
			return model.Warranty{}, err
		}
	} else {
		w.InvoicePath = current.InvoicePath
	}

	if err := s.store.UpdateWarranty(ctx, w, replace); err != nil {
		if replace {
			s.discardInvoice(w.InvoicePath)
		}
		return model.Warranty{}, mapWriteError(op, err)
	}
	s.logger.Info("warranty updated", "user_id", id.UserID, "warranty_id", w.ID)
	return w, nil
}

// Delete removes one of the caller's warranties.
func (s *Service) Delete(ctx context.Context, id model.Identity, warrantyID int64) error {
	const op = "warranty.delete"
	if err := s.store.DeleteWarranty(ctx, id.UserID, warrantyID); err != nil {
		return mapWriteError(op, err)
	}
	s.logger.Info("warranty deleted", "user_id", id.UserID, "warranty_id", warrantyID)
	return nil
}

// Dedupe keeps the lowest-id warranty in each of the caller's
// (product, brand) groups and deletes the rest. Running it again removes
// nothing.
//
// Afterwards the unique index is re-ensured. Other users' legacy duplicates
// can still block it; that is logged, not returned.
func (s *Service) Dedupe(ctx context.Context, id model.Identity) (int64, error) {
	const op = "warranty.dedupe"
	removed, err := s.store.DedupeWarranties(ctx, id.UserID)
	if err != nil {
		return 0, apperr.Persistence(op, err)
	}
	if err := s.store.EnsureWarrantyIndex(ctx); err != nil {
		s.logger.Warn("warranty uniqueness index not restored", "error", err)
	}
	s.logger.Info("warranties deduplicated", "user_id", id.UserID, "removed", removed)
	return removed, nil
}

// List returns a page of the caller's warranties ordered by expiry.
func (s *Service) List(ctx context.Context, id model.Identity, p page.Request) (Page, error) {
	const op = "warranty.list"
	total, err := s.store.CountWarranties(ctx, id.UserID)
	if err != nil {
		return Page{}, apperr.Persistence(op, err)
	}
	ws, err := s.store.ListWarranties(ctx, id.UserID, p.Limit(), p.Offset())
	if err != nil {
		return Page{}, apperr.Persistence(op, err)
	}
	return Page{Request: p, Items: s.items(ws), Total: total}, nil
}

// All returns every warranty of the caller.
func (s *Service) All(ctx context.Context, id model.Identity) ([]Item, error) {
	ws, err := s.store.ListWarranties(ctx, id.UserID, -1, 0)
	if err != nil {
		return nil, apperr.Persistence("warranty.all", err)
	}
	return s.items(ws), nil
}

// Get returns one of the caller's warranties with its claims.
func (s *Service) Get(ctx context.Context, id model.Identity, warrantyID int64) (Detail, error) {
	const op = "warranty.get"
	w, err := s.store.GetWarranty(ctx, id.UserID, warrantyID)
	if err != nil {
		return Detail{}, mapWriteError(op, err)
	}
	claims, err := s.store.ClaimsForWarranty(ctx, id.UserID, warrantyID)
	if err != nil {
		return Detail{}, apperr.Persistence(op, err)
	}
	return Detail{Item: s.items([]model.Warranty{w})[0], Claims: claims}, nil
}

// Expiring returns the caller's warranties expiring within days from today
// (DefaultExpiringDays when days <= 0), soonest first.
func (s *Service) Expiring(ctx context.Context, id model.Identity, days int) ([]Item, error) {
	if days <= 0 {
		days = DefaultExpiringDays
	}
	today := clock.Today(s.clock)
	ws, err := s.store.ExpiringWarranties(ctx, id.UserID, today, dates.AddDays(today, days))
	if err != nil {
		return nil, apperr.Persistence("warranty.expiring", err)
	}
	return s.items(ws), nil
}

// build validates in and computes the stored fields.
func (s *Service) build(op string, id model.Identity, in Input) (model.Warranty, error) {
	in.ProductName = strings.TrimSpace(in.ProductName)
	in.Brand = strings.TrimSpace(in.Brand)
	if err := validate.Struct(op, in); err != nil {
		return model.Warranty{}, err
	}
	if in.Invoice != nil {
		if err := attach.CheckFilename(in.Invoice.Filename); err != nil {
			return model.Warranty{}, apperr.Validation(op, "%v", err)
		}
	}

	purchase, err := ParseDate(in.PurchaseDate)
	if err != nil {
		return model.Warranty{}, err
	}
	expiry, months, err := ResolveExpiry(purchase, in.Period, in.Unit)
	if err != nil {
		return model.Warranty{}, err
	}
	return model.Warranty{
		UserID:       id.UserID,
		ProductName:  in.ProductName,
		Brand:        in.Brand,
		PurchaseDate: purchase,
		PeriodMonths: months,
		ExpiryDate:   expiry,
	}, nil
}

func (s *Service) checkDuplicate(ctx context.Context, op string, w model.Warranty, excludeID int64) error {
	dup, err := s.store.HasDuplicateWarranty(ctx, w.UserID, w.ProductName, w.Brand, excludeID)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	if dup {
		return apperr.Duplicate(op, duplicateMessage)
	}
	return nil
}

// link resolves the catalog product for the warranty's (brand, product name).
func (s *Service) link(ctx context.Context, w *model.Warranty) error {
	if s.catalog == nil {
		return nil
	}
	pid, err := s.catalog.Resolve(ctx, w.Brand, w.ProductName)
	if err != nil {
		return err
	}
	w.ProductID = &pid
	return nil
}

func (s *Service) saveInvoice(op string, id model.Identity, u *attach.Upload) (string, error) {
	if u == nil {
		return "", nil
	}
	if s.files == nil {
		return "", apperr.Validation(op, "attachments are not accepted")
	}
	ref, err := s.files.Save(id.UserID, clock.Today(s.clock), *u)
	if err != nil {
		return "", apperr.Persistence(op, err)
	}
	return ref, nil
}

// discardInvoice removes an upload saved for a write that then failed.
func (s *Service) discardInvoice(ref string) {
	if ref == "" || s.files == nil {
		return
	}
	if err := s.files.Remove(ref); err != nil {
		s.logger.Warn("orphaned invoice not removed", "ref", ref, "error", err)
	}
}

func (s *Service) items(ws []model.Warranty) []Item {
	today := clock.Today(s.clock)
	items := make([]Item, len(ws))
	for i, w := range ws {
		items[i] = Item{Warranty: w, Status: w.Status(today)}
	}
	return items
}

// mapWriteError translates store sentinels into operation errors.
func mapWriteError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return apperr.Duplicate(op, duplicateMessage)
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(op, "warranty not found")
	default:
		return apperr.Persistence(op, err)
	}
}

