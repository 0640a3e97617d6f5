package license

import (
	"context"
	"errors"

	"license-service/pkg/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns the licenses table. Lookups return nil, nil when no row matches.
type Store struct {
	repository.Repository[License]
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		Repository: repository.ProvideStore[License](db),
		db:         db,
	}
}

// WithTrx binds the store to tx.
func (s *Store) WithTrx(tx *gorm.DB) *Store {
	if tx == nil {
		return s
	}
	return NewStore(tx)
}

func (s *Store) first(ctx context.Context, q *gorm.DB) (*License, error) {
	var l License
	if err := q.WithContext(ctx).First(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (s *Store) FindByKeyAndProduct(ctx context.Context, licenseKey, productID string) (*License, error) {
	return s.first(ctx, s.db.Where("license_key = ? AND product_id = ?", licenseKey, productID))
}

func (s *Store) FindByKey(ctx context.Context, licenseKey string) (*License, error) {
	return s.first(ctx, s.db.Where("license_key = ?", licenseKey))
}

func (s *Store) FindByID(ctx context.Context, id string) (*License, error) {
	return s.first(ctx, s.db.Where("id = ?", id))
}

// LockByID reads the license with SELECT ... FOR UPDATE. Only meaningful
// inside a transaction.
func (s *Store) LockByID(ctx context.Context, id string) (*License, error) {
	return s.first(ctx, s.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

// SetStatus overwrites the status unconditionally.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	return s.db.WithContext(ctx).Model(&License{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// TransitionStatus moves the license from one status to another only if it
// is still in from, and reports whether it did.
func (s *Store) TransitionStatus(ctx context.Context, id string, from, to Status) (bool, error) {
	res := s.db.WithContext(ctx).Model(&License{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
