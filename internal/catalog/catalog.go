// Package catalog resolves (brand, model) pairs to shared catalog products.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/page"
	"github.com/roach88/warranty/internal/store"
)

// Key normalizes a (brand, model) pair for lookup with store.Fold.
func Key(brand, modelName string) store.ProductKey {
	return store.ProductKey{Brand: store.Fold(brand), Model: store.Fold(modelName)}
}

// Service is the catalog lookup-or-create layer.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// NewService creates a catalog service.
func NewService(s *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger}
}

// Resolve returns the product ID for (brand, model), creating an unverified
// product on first use. Concurrent callers for the same key get the same ID.
func (s *Service) Resolve(ctx context.Context, brand, modelName string) (int64, error) {
	const op = "catalog.resolve"
	brand, modelName = strings.TrimSpace(brand), strings.TrimSpace(modelName)
	if modelName == "" {
		return 0, apperr.Validation(op, "model name is required")
	}

	id, created, err := s.store.ResolveProduct(ctx, Key(brand, modelName), model.Product{
		Brand:     brand,
		ModelName: modelName,
	})
	if err != nil {
		return 0, apperr.Persistence(op, err)
	}
	if created {
		s.logger.Debug("catalog product created", "product_id", id, "brand", brand, "model", modelName)
	}
	return id, nil
}

// AddVerified creates a verified product, or promotes the existing entry for
// the same key and sets its category.
func (s *Service) AddVerified(ctx context.Context, brand, modelName, category string) (model.Product, error) {
	const op = "catalog.add"
	brand, modelName = strings.TrimSpace(brand), strings.TrimSpace(modelName)
	if brand == "" || modelName == "" {
		return model.Product{}, apperr.Validation(op, "brand and model name are required")
	}

	id, err := s.store.UpsertVerifiedProduct(ctx, Key(brand, modelName), model.Product{
		Brand:     brand,
		ModelName: modelName,
		Category:  strings.TrimSpace(category),
	})
	if err != nil {
		return model.Product{}, apperr.Persistence(op, err)
	}
	p, err := s.store.ProductByID(ctx, id)
	if err != nil {
		return model.Product{}, apperr.Persistence(op, err)
	}
	s.logger.Info("catalog product verified", "product_id", id)
	return p, nil
}

// List searches the catalog by brand, model or category.
func (s *Service) List(ctx context.Context, q string, p page.Request) ([]model.Product, error) {
	products, err := s.store.ListProducts(ctx, strings.TrimSpace(q), p.Limit(), p.Offset())
	if err != nil {
		return nil, apperr.Persistence("catalog.list", err)
	}
	return products, nil
}
