// Package support answers read-only lookups used by the support desk.
package support

import (
	"context"
	"strings"

	"license-service/pkg/db/option"
	"license-service/pkg/errutil"
	"license-service/pkg/repository"
	"license-service/services/license"
	"license-service/services/product"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LicenseDetail struct {
	*license.License
	Product     *product.Product      `json:"product"`
	Activations []*license.Activation `json:"activations"`
}

// ActivationDetail is an activation with its license. License is nil when
// the activation is orphaned.
type ActivationDetail struct {
	*license.Activation
	License *LicenseWithProduct `json:"license"`
}

type LicenseWithProduct struct {
	*license.License
	Product *product.Product `json:"product"`
}

type ProductDetail struct {
	*product.Product
	Licenses []*LicenseDetail `json:"licenses"`
}

type Stats struct {
	Total            int64 `json:"total"`
	Available        int64 `json:"available"`
	Activated        int64 `json:"activated"`
	Expired          int64 `json:"expired"`
	Revoked          int64 `json:"revoked"`
	TotalActivations int64 `json:"totalActivations"`
}

type Service struct {
	db          *gorm.DB
	products    repository.Repository[product.Product]
	licenses    *license.Store
	activations repository.Repository[license.Activation]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		products:    repository.ProvideStore[product.Product](p.DB),
		licenses:    license.NewStore(p.DB),
		activations: repository.ProvideStore[license.Activation](p.DB),
	}
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func internal(ctx context.Context, op string, err error) error {
	logger(ctx).Error("support lookup failed", zap.String("op", op), zap.Error(err))
	return errutil.Internal("failed to search licenses", err)
}

// ByLicenseKey returns nil when the key is unknown.
func (s *Service) ByLicenseKey(ctx context.Context, key string) (*LicenseDetail, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	lic, err := s.licenses.FindByKey(ctx, key)
	if err != nil {
		return nil, internal(ctx, "license by key", err)
	}
	if lic == nil {
		return nil, nil
	}

	details, err := s.licenseDetails(ctx, []*license.License{lic})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

// ByActivationToken returns nil when the token is unknown.
func (s *Service) ByActivationToken(ctx context.Context, token string) (*ActivationDetail, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	act, err := s.activations.FindOne(ctx, &license.Activation{ActivationToken: token})
	if err != nil {
		return nil, internal(ctx, "activation by token", err)
	}
	if act == nil {
		return nil, nil
	}

	details, err := s.activationDetails(ctx, []*license.Activation{act})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

func (s *Service) ByCustomerEmail(ctx context.Context, email string) ([]*ActivationDetail, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return []*ActivationDetail{}, nil
	}
	acts, err := s.activations.Find(ctx, &license.Activation{CustomerEmail: email},
		option.WithSortBy(option.QuerySortBy{SortBy: "activated_at", OrderBy: "desc"}),
	)
	if err != nil {
		return nil, internal(ctx, "activations by email", err)
	}
	return s.activationDetails(ctx, acts)
}

// ByCustomerName matches any activation whose customer name contains name,
// ignoring case.
func (s *Service) ByCustomerName(ctx context.Context, name string) ([]*ActivationDetail, error) {
	if strings.TrimSpace(name) == "" {
		return []*ActivationDetail{}, nil
	}
	acts, err := s.activations.Find(ctx, &license.Activation{},
		option.WithLike(name, "customer_name"),
		option.WithSortBy(option.QuerySortBy{SortBy: "activated_at", OrderBy: "desc"}),
	)
	if err != nil {
		return nil, internal(ctx, "activations by name", err)
	}
	return s.activationDetails(ctx, acts)
}

// ByProductID returns nil when the product does not exist.
func (s *Service) ByProductID(ctx context.Context, productID string) (*ProductDetail, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, nil
	}
	p, err := s.products.FindOne(ctx, &product.Product{ProductID: productID})
	if err != nil {
		return nil, internal(ctx, "product", err)
	}
	if p == nil {
		return nil, nil
	}

	lics, err := s.licenses.Find(ctx, &license.License{ProductID: p.ProductID},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
	)
	if err != nil {
		return nil, internal(ctx, "licenses by product", err)
	}

	details, err := s.licenseDetails(ctx, lics)
	if err != nil {
		return nil, err
	}
	for _, d := range details {
		d.Product = nil
	}
	return &ProductDetail{Product: p, Licenses: details}, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		Status license.Status
		Count  int64
	}
	if err := s.db.WithContext(ctx).Model(&license.License{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, internal(ctx, "license stats", err)
	}

	stats := &Stats{}
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Status {
		case license.StatusAvailable:
			stats.Available = r.Count
		case license.StatusActivated:
			stats.Activated = r.Count
		case license.StatusExpired:
			stats.Expired = r.Count
		case license.StatusRevoked:
			stats.Revoked = r.Count
		}
	}

	n, err := s.activations.Count(ctx, nil)
	if err != nil {
		return nil, internal(ctx, "activation count", err)
	}
	stats.TotalActivations = n
	return stats, nil
}

func (s *Service) productsByID(ctx context.Context, lics []*license.License) (map[string]*product.Product, error) {
	ids := make([]string, 0, len(lics))
	seen := map[string]bool{}
	for _, l := range lics {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	out := map[string]*product.Product{}
	if len(ids) == 0 {
		return out, nil
	}
	products, err := s.products.Find(ctx, &product.Product{}, option.WithIn("product_id", ids))
	if err != nil {
		return nil, internal(ctx, "products", err)
	}
	for _, p := range products {
		out[p.ProductID] = p
	}
	return out, nil
}

func (s *Service) licenseDetails(ctx context.Context, lics []*license.License) ([]*LicenseDetail, error) {
	out := make([]*LicenseDetail, 0, len(lics))
	if len(lics) == 0 {
		return out, nil
	}

	products, err := s.productsByID(ctx, lics)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(lics))
	for _, l := range lics {
		ids = append(ids, l.ID)
	}
	acts, err := s.activations.Find(ctx, &license.Activation{}, option.WithIn("license_id", ids))
	if err != nil {
		return nil, internal(ctx, "activations", err)
	}
	byLicense := map[string][]*license.Activation{}
	for _, a := range acts {
		byLicense[a.LicenseID] = append(byLicense[a.LicenseID], a)
	}

	for _, l := range lics {
		activations := byLicense[l.ID]
		if activations == nil {
			activations = []*license.Activation{}
		}
		out = append(out, &LicenseDetail{License: l, Product: products[l.ProductID], Activations: activations})
	}
	return out, nil
}

func (s *Service) activationDetails(ctx context.Context, acts []*license.Activation) ([]*ActivationDetail, error) {
	out := make([]*ActivationDetail, 0, len(acts))
	if len(acts) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(acts))
	for _, a := range acts {
		ids = append(ids, a.LicenseID)
	}
	lics, err := s.licenses.Find(ctx, &license.License{}, option.WithIn("id", ids))
	if err != nil {
		return nil, internal(ctx, "licenses", err)
	}
	products, err := s.productsByID(ctx, lics)
	if err != nil {
		return nil, err
	}

	byID := map[string]*LicenseWithProduct{}
	for _, l := range lics {
		byID[l.ID] = &LicenseWithProduct{License: l, Product: products[l.ProductID]}
	}

	for _, a := range acts {
		out = append(out, &ActivationDetail{Activation: a, License: byID[a.LicenseID]})
	}
	return out, nil
}
