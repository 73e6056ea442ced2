package catalog

import (
	"context"
	"time"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"github.com/ariefcatur/boutique-orders/internal/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the catalog administration surface. It never adjusts stock
// on behalf of orders; that goes through Store.ApplyStockDelta only.
type Service struct {
	repo        Repository
	events      events.Publisher
	logger      *zap.Logger
	serviceName string
	now         func() time.Time
}

func NewService(repo Repository, pub events.Publisher, logger *zap.Logger, serviceName string) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		events:      pub,
		logger:      logger,
		serviceName: serviceName,
		now:         time.Now,
	}
}

func (s *Service) List(ctx context.Context, category string) ([]Product, error) {
	var f Filter
	if category != "" {
		c, ok := ParseCategory(category)
		if !ok {
			return nil, apperr.Newf(apperr.CodeInvalidInput, "unknown category %q", category)
		}
		f.Category = c
	}
	return s.repo.ListProducts(ctx, f)
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now

	created, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.logger.Info("product created", zap.String("product_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

func (s *Service) Update(ctx context.Context, id string, p Product) (Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	p.ID = id
	p.UpdatedAt = s.now().UTC()

	updated, err := s.repo.UpdateProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.logger.Info("product updated", zap.String("product_id", id))
	return updated, nil
}

// Delete removes the product and announces it so its images get purged.
// Orders that reference the product keep rendering from their own
// snapshot fields.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.String("product_id", id), zap.Int("images", len(p.Images)))

	env, err := events.New(events.EventProductDeleted, s.serviceName, p.ID, events.ProductDeletedPayload{
		ProductID: p.ID,
		Images:    p.Images,
	})
	if err == nil {
		err = s.events.Publish(ctx, env)
	}
	if err != nil {
		// the product is gone either way; orphaned images are only a storage cost
		s.logger.Warn("publish product deleted", zap.String("product_id", id), zap.Error(err))
	}
	return nil
}
