package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"license-service/pkg/db/option"
	"license-service/pkg/errutil"
	"license-service/pkg/gen"
	"license-service/pkg/repository"

	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// licensesTable is owned by the license service; products only read it.
const licensesTable = "licenses"

// Finder resolves a product by its public productId. It returns nil, nil when
// the product does not exist.
type Finder interface {
	FindByProductID(ctx context.Context, productID string) (*Product, error)
}

type Service struct {
	db   *gorm.DB
	ids  gen.IDGenerator
	repo repository.Repository[Product]
}

type ServiceParams struct {
	fx.In
	DB  *gorm.DB
	IDs gen.IDGenerator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		ids:  p.IDs,
		repo: repository.ProvideStore[Product](p.DB),
	}
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func (s *Service) FindByProductID(ctx context.Context, productID string) (*Product, error) {
	if productID == "" {
		return nil, nil
	}
	return s.repo.FindOne(ctx, &Product{ProductID: productID})
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	zapLog := logger(ctx)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errutil.BadRequest("name is required", nil)
	}

	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		productID = slug.Make(name)
	}
	if len(productID) < 3 {
		return nil, errutil.BadRequest(fmt.Sprintf("productId %q must be at least 3 characters", productID), nil)
	}

	existing, err := s.FindByProductID(ctx, productID)
	if err != nil {
		zapLog.Error("failed to look up product", zap.Error(err), zap.String("product_id", productID))
		return nil, errutil.Internal("failed to create product", err)
	}
	if existing != nil {
		return nil, errutil.Conflict(fmt.Sprintf("Product with ID %q already exists", productID), nil)
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	p := &Product{
		ID:          s.ids.NextID(),
		ProductID:   productID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Enabled:     enabled,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict(fmt.Sprintf("Product with ID %q already exists", productID), err)
		}
		zapLog.Error("failed to create product", zap.Error(err), zap.String("product_id", productID))
		return nil, errutil.Internal("failed to create product", err)
	}

	zapLog.Info("product created", zap.String("product_id", p.ProductID))
	return p, nil
}

func (s *Service) List(ctx context.Context, req ListRequest) ([]*Product, error) {
	products, err := s.repo.Find(ctx, &Product{},
		option.WithLike(req.Search, "name", "product_id", "description"),
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
	)
	if err != nil {
		logger(ctx).Error("failed to list products", zap.Error(err))
		return nil, errutil.Internal("failed to list products", err)
	}
	return products, nil
}

func (s *Service) get(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.FindOne(ctx, &Product{ID: id})
	if err != nil {
		logger(ctx).Error("failed to get product", zap.Error(err), zap.String("id", id))
		return nil, errutil.Internal("failed to get product", err)
	}
	if p == nil {
		return nil, errutil.NotFound("Product not found", nil)
	}
	return p, nil
}

// Get returns the product together with every license issued for it.
func (s *Service) Get(ctx context.Context, id string) (*ProductWithLicenses, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	licenses := []LicenseSummary{}
	if err := s.db.WithContext(ctx).Table(licensesTable).
		Select("id, license_key, status, enabled, created_at").
		Where("product_id = ?", p.ProductID).
		Order("created_at DESC").
		Scan(&licenses).Error; err != nil {
		logger(ctx).Error("failed to load product licenses", zap.Error(err), zap.String("product_id", p.ProductID))
		return nil, errutil.Internal("failed to get product", err)
	}

	return &ProductWithLicenses{Product: p, Licenses: licenses}, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Product, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errutil.BadRequest("name must not be empty", nil)
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}
	if len(updates) == 0 {
		return p, nil
	}

	if err := s.repo.Update(ctx, p.ID, updates); err != nil {
		logger(ctx).Error("failed to update product", zap.Error(err), zap.String("id", id))
		return nil, errutil.Internal("failed to update product", err)
	}

	return s.get(ctx, id)
}

// Delete removes a product that has no licenses left.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTrx(tx)

		p, err := repo.FindOne(ctx, &Product{ID: id}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to delete product", err)
		}
		if p == nil {
			return errutil.NotFound("Product not found", nil)
		}

		var count int64
		if err := tx.Table(licensesTable).Where("product_id = ?", p.ProductID).Count(&count).Error; err != nil {
			return errutil.Internal("failed to delete product", err)
		}
		if count > 0 {
			return errutil.Conflict(fmt.Sprintf("Cannot delete product with %d existing license(s)", count), nil)
		}

		if _, err := repo.Delete(ctx, p.ID); err != nil {
			return errutil.Internal("failed to delete product", err)
		}

		logger(ctx).Info("product deleted", zap.String("product_id", p.ProductID))
		return nil
	})
}
