package license

import (
	"context"
	"errors"
	"time"

	"license-service/pkg/gen"

	"gorm.io/gorm"
)

// ActivationStore owns the activations table. Lookups return nil, nil when no
// row matches.
type ActivationStore struct {
	db  *gorm.DB
	ids gen.IDGenerator
	now func() time.Time
}

func NewActivationStore(db *gorm.DB, ids gen.IDGenerator) *ActivationStore {
	return &ActivationStore{db: db, ids: ids, now: time.Now}
}

func (s *ActivationStore) WithTrx(tx *gorm.DB) *ActivationStore {
	if tx == nil {
		return s
	}
	return &ActivationStore{db: tx, ids: s.ids, now: s.now}
}

type CreateActivationParams struct {
	LicenseID     string
	HardwareHash  string
	Token         string
	CustomerEmail string
	CustomerName  string
}

func (s *ActivationStore) first(ctx context.Context, q *gorm.DB) (*Activation, error) {
	var a Activation
	if err := q.WithContext(ctx).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// FindByLicenseID returns the newest activation of the license.
func (s *ActivationStore) FindByLicenseID(ctx context.Context, licenseID string) (*Activation, error) {
	return s.first(ctx, s.db.Where("license_id = ?", licenseID).Order("activated_at DESC"))
}

func (s *ActivationStore) FindByToken(ctx context.Context, token string) (*Activation, error) {
	return s.first(ctx, s.db.Where("activation_token = ?", token))
}

func (s *ActivationStore) Create(ctx context.Context, p CreateActivationParams) (*Activation, error) {
	a := &Activation{
		ID:              s.ids.NextID(),
		LicenseID:       p.LicenseID,
		HardwareIDHash:  p.HardwareHash,
		ActivationToken: p.Token,
		CustomerEmail:   p.CustomerEmail,
		CustomerName:    p.CustomerName,
		ActivatedAt:     s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Omit("License").Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func (s *ActivationStore) DeleteByLicenseID(ctx context.Context, licenseID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("license_id = ?", licenseID).Delete(&Activation{})
	return res.RowsAffected, res.Error
}

// ListByLicenseIDs loads the activations of many licenses in one query.
func (s *ActivationStore) ListByLicenseIDs(ctx context.Context, licenseIDs []string) ([]*Activation, error) {
	if len(licenseIDs) == 0 {
		return nil, nil
	}
	var out []*Activation
	if err := s.db.WithContext(ctx).
		Where("license_id IN ?", licenseIDs).
		Order("activated_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
