package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"license-service/pkg/db/option"
	"license-service/pkg/db/pagination"
	"license-service/pkg/errutil"
	"license-service/pkg/gen"
	"license-service/pkg/keygen"
	"license-service/pkg/repository"
	"license-service/pkg/sequence"
	"license-service/services/license"
	"license-service/services/product"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// generateAttempts bounds how often Generate redraws keys that collide with
// existing ones.
const generateAttempts = 3

type Service struct {
	db          *gorm.DB
	ids         gen.IDGenerator
	products    repository.Repository[product.Product]
	licenses    *license.Store
	activations *license.ActivationStore
	batches     sequence.Generator
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	IDs     gen.IDGenerator
	Batches sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		ids:         p.IDs,
		products:    repository.ProvideStore[product.Product](p.DB),
		licenses:    license.NewStore(p.DB),
		activations: license.NewActivationStore(p.DB, p.IDs),
		batches:     p.Batches,
	}
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func (s *Service) requireProduct(ctx context.Context, productID string) (*product.Product, error) {
	p, err := s.products.FindOne(ctx, &product.Product{ProductID: productID})
	if err != nil {
		logger(ctx).Error("failed to look up product", zap.Error(err), zap.String("product_id", productID))
		return nil, errutil.Internal("failed to look up product", err)
	}
	if p == nil {
		return nil, errutil.NotFound("Product not found.", nil)
	}
	return p, nil
}

// Create issues one license with a caller-chosen key.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*LicenseView, error) {
	key := strings.TrimSpace(req.LicenseKey)
	productID := strings.TrimSpace(req.ProductID)
	if key == "" || productID == "" {
		return nil, errutil.BadRequest("licenseKey and productId are required", nil)
	}

	if _, err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}

	existing, err := s.licenses.FindByKey(ctx, key)
	if err != nil {
		logger(ctx).Error("failed to look up license key", zap.Error(err))
		return nil, errutil.Internal("failed to create license", err)
	}
	if existing != nil {
		return nil, errutil.Conflict("License key already exists.", nil)
	}

	lic := &license.License{
		ID:         s.ids.NextID(),
		LicenseKey: key,
		ProductID:  productID,
		Status:     license.StatusAvailable,
		Enabled:    true,
		Notes:      strings.TrimSpace(req.Notes),
	}
	if err := s.licenses.Create(ctx, lic); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict("License key already exists.", err)
		}
		logger(ctx).Error("failed to create license", zap.Error(err), zap.String("product_id", productID))
		return nil, errutil.Internal("failed to create license", err)
	}

	logger(ctx).Info("license created", zap.String("license_id", lic.ID), zap.String("product_id", productID))
	return s.view(ctx, lic)
}

// Generate mints count fresh keys for a product in one insert. When a batch
// code generator is configured, the run's code is stored in the notes.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return nil, errutil.BadRequest("productId is required", nil)
	}
	if req.Count < 1 || req.Count > keygen.MaxBatchSize {
		return nil, errutil.BadRequest(fmt.Sprintf("count must be between 1 and %d", keygen.MaxBatchSize), nil)
	}
	if _, err := s.requireProduct(ctx, productID); err != nil {
		return nil, err
	}

	keys, err := s.freshKeys(ctx, req.Count, req.Prefix)
	if err != nil {
		return nil, err
	}

	batchCode := s.batchCode(ctx, productID)
	notes := strings.TrimSpace(req.Notes)
	if batchCode != "" {
		if notes == "" {
			notes = "batch " + batchCode
		} else {
			notes = fmt.Sprintf("%s (batch %s)", notes, batchCode)
		}
	}

	licenses := make([]*license.License, 0, len(keys))
	for _, k := range keys {
		licenses = append(licenses, &license.License{
			ID:         s.ids.NextID(),
			LicenseKey: k,
			ProductID:  productID,
			Status:     license.StatusAvailable,
			Enabled:    true,
			Notes:      notes,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.licenses.WithTrx(tx).BatchCreate(ctx, licenses)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict("Generated key collided with an existing license, please retry.", err)
		}
		logger(ctx).Error("failed to generate licenses", zap.Error(err), zap.String("product_id", productID))
		return nil, errutil.Internal("failed to generate licenses", err)
	}

	logger(ctx).Info("licenses generated",
		zap.String("product_id", productID),
		zap.Int("count", len(licenses)),
		zap.String("batch_code", batchCode),
	)
	return &GenerateResult{BatchCode: batchCode, Licenses: licenses}, nil
}

func (s *Service) freshKeys(ctx context.Context, count int, prefix string) ([]string, error) {
	out := make([]string, 0, count)
	taken := map[string]struct{}{}

	for attempt := 0; attempt < generateAttempts && len(out) < count; attempt++ {
		candidates, err := keygen.Batch(count-len(out), prefix)
		if err != nil {
			return nil, errutil.BadRequest(err.Error(), err)
		}

		existing, err := s.licenses.Find(ctx, &license.License{}, option.WithIn("license_key", candidates))
		if err != nil {
			logger(ctx).Error("failed to check generated keys", zap.Error(err))
			return nil, errutil.Internal("failed to generate licenses", err)
		}
		for _, l := range existing {
			taken[l.LicenseKey] = struct{}{}
		}

		for _, k := range candidates {
			if _, dup := taken[k]; dup {
				continue
			}
			taken[k] = struct{}{}
			out = append(out, k)
		}
	}

	if len(out) < count {
		return nil, errutil.Internal("could not generate enough unique license keys", nil)
	}
	return out, nil
}

func (s *Service) batchCode(ctx context.Context, productID string) string {
	if s.batches == nil {
		return ""
	}
	code, err := s.batches.NextBatchCode(ctx, productID)
	if err != nil {
		logger(ctx).Warn("failed to allocate batch code", zap.Error(err), zap.String("product_id", productID))
		return ""
	}
	return code
}

// List returns licenses newest first, filtered by search (key or notes),
// product and status.
func (s *Service) List(ctx context.Context, req ListRequest) ([]*LicenseView, pagination.PageInfo, error) {
	query := &license.License{
		ProductID: strings.TrimSpace(req.ProductID),
		Status:    license.Status(req.Status),
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, pagination.PageInfo{}, errutil.BadRequest(fmt.Sprintf("unknown status %q", req.Status), nil)
	}

	rows, err := s.licenses.Find(ctx, query,
		option.WithLike(req.Search, "license_key", "COALESCE(notes, '')"),
		option.ApplyPagination(req.Pagination),
	)
	if err != nil {
		logger(ctx).Error("failed to list licenses", zap.Error(err))
		return nil, pagination.PageInfo{}, errutil.Internal("failed to list licenses", err)
	}

	rows, page := pagination.Trim(rows, req.Limit, func(l *license.License) pagination.Cursor {
		return pagination.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
	})

	views, err := s.views(ctx, rows)
	if err != nil {
		return nil, pagination.PageInfo{}, err
	}
	return views, page, nil
}

func (s *Service) find(ctx context.Context, id string) (*license.License, error) {
	lic, err := s.licenses.FindByID(ctx, id)
	if err != nil {
		logger(ctx).Error("failed to get license", zap.Error(err), zap.String("license_id", id))
		return nil, errutil.Internal("failed to get license", err)
	}
	if lic == nil {
		return nil, errutil.NotFound("License not found", nil)
	}
	return lic, nil
}

func (s *Service) Get(ctx context.Context, id string) (*LicenseView, error) {
	lic, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, lic)
}

// Update applies an admin override. Status may move to expired, revoked or
// available; activated is only reached through activation. Resetting to
// available releases the license's binding in the same transaction.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*LicenseView, error) {
	lic, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, errutil.BadRequest(fmt.Sprintf("unknown status %q", *req.Status), nil)
		}
		if *req.Status == license.StatusActivated {
			return nil, errutil.BadRequest("status activated can only be set by activating the license", nil)
		}
		updates["status"] = *req.Status
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}
	if req.Notes != nil {
		updates["notes"] = strings.TrimSpace(*req.Notes)
	}
	if len(updates) == 0 {
		return s.view(ctx, lic)
	}

	var released int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Status != nil && *req.Status == license.StatusAvailable {
			if _, err := s.licenses.WithTrx(tx).LockByID(ctx, lic.ID); err != nil {
				return err
			}
			if released, err = s.activations.WithTrx(tx).DeleteByLicenseID(ctx, lic.ID); err != nil {
				return err
			}
		}
		return s.licenses.WithTrx(tx).Update(ctx, lic.ID, updates)
	})
	if err != nil {
		logger(ctx).Error("failed to update license", zap.Error(err), zap.String("license_id", id))
		return nil, errutil.Internal("failed to update license", err)
	}

	if req.Status != nil && *req.Status != lic.Status {
		logger(ctx).Info("license status overridden",
			zap.String("license_id", lic.ID),
			zap.String("from", string(lic.Status)),
			zap.String("to", string(*req.Status)),
			zap.Int64("released_activations", released),
		)
	}
	return s.Get(ctx, id)
}

func (s *Service) Toggle(ctx context.Context, id string, enabled bool) (*LicenseView, error) {
	return s.Update(ctx, id, UpdateRequest{Enabled: &enabled})
}

// Delete removes a license that holds no activation. Activated licenses have
// to be revoked instead.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		licenses := s.licenses.WithTrx(tx)

		lic, err := licenses.LockByID(ctx, id)
		if err != nil {
			return errutil.Internal("failed to delete license", err)
		}
		if lic == nil {
			return errutil.NotFound("License not found.", nil)
		}

		act, err := s.activations.WithTrx(tx).FindByLicenseID(ctx, lic.ID)
		if err != nil {
			return errutil.Internal("failed to delete license", err)
		}
		if act != nil {
			return errutil.Conflict("Cannot delete license with activations. Please revoke it instead.", nil)
		}

		if _, err := licenses.Delete(ctx, lic.ID); err != nil {
			return errutil.Internal("failed to delete license", err)
		}

		logger(ctx).Info("license deleted", zap.String("license_id", lic.ID), zap.String("license_key", lic.LicenseKey))
		return nil
	})
}

func (s *Service) view(ctx context.Context, lic *license.License) (*LicenseView, error) {
	views, err := s.views(ctx, []*license.License{lic})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// views loads products and activations for all licenses with one query each.
func (s *Service) views(ctx context.Context, lics []*license.License) ([]*LicenseView, error) {
	out := make([]*LicenseView, 0, len(lics))
	if len(lics) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(lics))
	productIDs := make([]string, 0, len(lics))
	seen := map[string]bool{}
	for _, l := range lics {
		ids = append(ids, l.ID)
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			productIDs = append(productIDs, l.ProductID)
		}
	}

	acts, err := s.activations.ListByLicenseIDs(ctx, ids)
	if err != nil {
		logger(ctx).Error("failed to load activations", zap.Error(err))
		return nil, errutil.Internal("failed to load activations", err)
	}
	byLicense := map[string][]*license.Activation{}
	for _, a := range acts {
		byLicense[a.LicenseID] = append(byLicense[a.LicenseID], a)
	}

	products, err := s.products.Find(ctx, &product.Product{}, option.WithIn("product_id", productIDs))
	if err != nil {
		logger(ctx).Error("failed to load products", zap.Error(err))
		return nil, errutil.Internal("failed to load products", err)
	}
	byProductID := map[string]*product.Product{}
	for _, p := range products {
		byProductID[p.ProductID] = p
	}

	for _, l := range lics {
		activations := byLicense[l.ID]
		if activations == nil {
			activations = []*license.Activation{}
		}
		out = append(out, &LicenseView{
			License:     l,
			Product:     byProductID[l.ProductID],
			Activations: activations,
		})
	}
	return out, nil
}
