package license

import (
	"context"
	"errors"
	"strings"
	"time"

	"license-service/pkg/errutil"
	"license-service/pkg/gen"
	"license-service/services/product"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("license-service/services/license")

// errLostRace aborts the bind transaction when another request activated the
// license between our read and our write.
var errLostRace = errors.New("license no longer available")

// Hasher turns a raw hardware fingerprint into a stored credential.
type Hasher interface {
	Hash(raw string) (string, error)
	Matches(raw, stored string) bool
}

type ActivateRequest struct {
	ProductID     string
	LicenseKey    string
	HardwareID    string
	CustomerEmail string
	CustomerName  string
}

type ActivateResult struct {
	ActivationToken string
	// Reactivated is set when the same machine presented an already bound
	// license and got its existing token back.
	Reactivated bool
}

type VerifyResult struct {
	Valid       bool
	ProductID   string
	Status      Status
	ActivatedAt time.Time
}

type Service struct {
	db          *gorm.DB
	products    product.Finder
	licenses    *Store
	activations *ActivationStore
	hasher      Hasher
	publisher   Publisher
	metrics     *Metrics
	newToken    func() string
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Products  product.Finder
	IDs       gen.IDGenerator
	Hasher    Hasher
	Publisher Publisher `optional:"true"`
	Metrics   *Metrics  `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{
		db:          p.DB,
		products:    p.Products,
		licenses:    NewStore(p.DB),
		activations: NewActivationStore(p.DB, p.IDs),
		hasher:      p.Hasher,
		publisher:   publisher,
		metrics:     p.Metrics,
		newToken:    uuid.NewString,
	}
}

func logger(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	return zap.L().With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}

func storageFailure(ctx context.Context, op string, err error) error {
	logger(ctx).Error("license storage failure", zap.String("op", op), zap.Error(err))
	return &Error{
		Kind:    KindTransactionFailure,
		Message: "Failed to process license due to a server error.",
		Err:     err,
	}
}

// Activate binds the license to the presented machine, or returns the
// existing token when that machine already holds it.
func (s *Service) Activate(ctx context.Context, req ActivateRequest) (res *ActivateResult, err error) {
	ctx, span := tracer.Start(ctx, "license.Activate")
	defer func() {
		s.metrics.observeActivation(res, err)
		endSpan(span, err)
	}()

	return s.activate(ctx, req)
}

func (s *Service) activate(ctx context.Context, req ActivateRequest) (*ActivateResult, error) {
	productID := strings.TrimSpace(req.ProductID)
	licenseKey := strings.TrimSpace(req.LicenseKey)
	if productID == "" || licenseKey == "" || strings.TrimSpace(req.HardwareID) == "" {
		return nil, errutil.BadRequest("productId, licenseKey and hardwareId are required", nil)
	}

	zapLog := logger(ctx).With(zap.String("product_id", productID), zap.String("license_key", licenseKey))

	p, err := s.products.FindByProductID(ctx, productID)
	if err != nil {
		return nil, storageFailure(ctx, "find product", err)
	}
	if p == nil {
		return nil, newError(KindProductNotFound, "Product ID %q not found. Please check the product ID.", productID)
	}
	if !p.Enabled {
		return nil, newError(KindProductDisabled, "Product is disabled.")
	}

	lic, err := s.resolveLicense(ctx, licenseKey, productID)
	if err != nil {
		return nil, err
	}

	var hwHash string
	for attempt := 0; ; attempt++ {
		if lic.Status == StatusActivated {
			return s.reconfirm(ctx, lic, req.HardwareID)
		}
		if !lic.Enabled {
			return nil, newError(KindLicenseDisabled, "License key is disabled.")
		}
		if lic.Status != StatusAvailable {
			return nil, newError(KindLicenseNotAvailable, "License status is: %s.", lic.Status)
		}

		if hwHash == "" {
			if hwHash, err = s.hasher.Hash(req.HardwareID); err != nil {
				zapLog.Error("failed to hash hardware id", zap.Error(err))
				return nil, errutil.Internal("failed to hash hardware id", err)
			}
		}

		act, won, err := s.bind(ctx, lic, hwHash, req)
		if err != nil {
			zapLog.Error("activation transaction failed", zap.Error(err))
			return nil, &Error{
				Kind:    KindTransactionFailure,
				Message: "Failed to activate license due to a server error.",
				Err:     err,
			}
		}
		if won {
			zapLog.Info("license activated", zap.String("license_id", lic.ID))
			s.publish(ctx, EventActivated, lic, act)
			return &ActivateResult{ActivationToken: act.ActivationToken}, nil
		}

		if attempt >= 1 {
			return nil, &Error{
				Kind:    KindTransactionFailure,
				Message: "License changed while activating. Please retry.",
				Err:     errLostRace,
			}
		}

		zapLog.Info("lost activation race, re-reading license", zap.String("license_id", lic.ID))
		if lic, err = s.licenses.FindByID(ctx, lic.ID); err != nil {
			return nil, storageFailure(ctx, "reload license", err)
		}
		if lic == nil {
			return nil, newError(KindLicenseNotFound, "License key %q not found for product %q.", licenseKey, productID)
		}
	}
}

func (s *Service) resolveLicense(ctx context.Context, licenseKey, productID string) (*License, error) {
	lic, err := s.licenses.FindByKeyAndProduct(ctx, licenseKey, productID)
	if err != nil {
		return nil, storageFailure(ctx, "find license", err)
	}
	if lic != nil {
		return lic, nil
	}

	other, err := s.licenses.FindByKey(ctx, licenseKey)
	if err != nil {
		return nil, storageFailure(ctx, "find license by key", err)
	}
	if other != nil {
		return nil, newError(KindWrongProduct,
			"License key found but belongs to product %q. You entered product %q. Please use the correct product ID.",
			other.ProductID, productID)
	}
	return nil, newError(KindLicenseNotFound, "License key %q not found for product %q.", licenseKey, productID)
}

// reconfirm handles a license that is already activated. It never writes and
// does not look at the enabled flag.
func (s *Service) reconfirm(ctx context.Context, lic *License, hardwareID string) (*ActivateResult, error) {
	act, err := s.activations.FindByLicenseID(ctx, lic.ID)
	if err != nil {
		return nil, storageFailure(ctx, "find activation", err)
	}
	if act == nil {
		logger(ctx).Error("activated license has no activation record",
			zap.String("license_id", lic.ID),
			zap.String("license_key", lic.LicenseKey),
		)
		return nil, newError(KindActivationRecordMismatch, "Activation record mismatch. Please contact support.")
	}

	if !s.hasher.Matches(hardwareID, act.HardwareIDHash) {
		return nil, newError(KindAlreadyActivatedElsewhere, "License key already activated on another device.")
	}

	return &ActivateResult{ActivationToken: act.ActivationToken, Reactivated: true}, nil
}

// bind flips the license to activated and inserts its activation in one
// transaction. won is false when the conditional update matched no row.
func (s *Service) bind(ctx context.Context, lic *License, hwHash string, req ActivateRequest) (act *Activation, won bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.licenses.WithTrx(tx).TransitionStatus(ctx, lic.ID, StatusAvailable, StatusActivated)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}

		// an admin reset to available can leave the previous binding behind
		activations := s.activations.WithTrx(tx)
		stale, err := activations.DeleteByLicenseID(ctx, lic.ID)
		if err != nil {
			return err
		}
		if stale > 0 {
			logger(ctx).Warn("dropped stale activations before binding",
				zap.String("license_id", lic.ID),
				zap.Int64("count", stale),
			)
		}

		act, err = activations.Create(ctx, CreateActivationParams{
			LicenseID:     lic.ID,
			HardwareHash:  hwHash,
			Token:         s.newToken(),
			CustomerEmail: strings.TrimSpace(req.CustomerEmail),
			CustomerName:  strings.TrimSpace(req.CustomerName),
		})
		return err
	})

	switch {
	case errors.Is(err, errLostRace):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return act, true, nil
}

// Verify reports whether the token still grants use of its license.
func (s *Service) Verify(ctx context.Context, token string) (res *VerifyResult, err error) {
	ctx, span := tracer.Start(ctx, "license.Verify")
	defer func() {
		s.metrics.observeVerification(err)
		endSpan(span, err)
	}()

	act, lic, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if lic.Status.Terminal() {
		return nil, newError(KindLicenseNotValid, "License status is: %s.", lic.Status)
	}

	return &VerifyResult{
		Valid:       true,
		ProductID:   lic.ProductID,
		Status:      lic.Status,
		ActivatedAt: act.ActivatedAt,
	}, nil
}

func (s *Service) resolveToken(ctx context.Context, token string) (*Activation, *License, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, errutil.BadRequest("activationToken is required", nil)
	}

	act, err := s.activations.FindByToken(ctx, token)
	if err != nil {
		return nil, nil, storageFailure(ctx, "find activation by token", err)
	}
	if act == nil {
		return nil, nil, newError(KindInvalidToken, "Invalid activation token.")
	}

	lic, err := s.licenses.FindByID(ctx, act.LicenseID)
	if err != nil {
		return nil, nil, storageFailure(ctx, "find license", err)
	}
	if lic == nil {
		logger(ctx).Error("activation references a missing license",
			zap.String("activation_id", act.ID),
			zap.String("license_id", act.LicenseID),
		)
		return nil, nil, newError(KindOrphanedActivation, "License not found for activation token.")
	}

	return act, lic, nil
}

// Deactivate releases the license held by token back to available. Any
// status is accepted.
func (s *Service) Deactivate(ctx context.Context, token string) (err error) {
	ctx, span := tracer.Start(ctx, "license.Deactivate")
	defer func() {
		s.metrics.observeDeactivation(err)
		endSpan(span, err)
	}()

	act, lic, err := s.resolveToken(ctx, token)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		licenses := s.licenses.WithTrx(tx)
		activations := s.activations.WithTrx(tx)

		locked, err := licenses.LockByID(ctx, lic.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return newError(KindOrphanedActivation, "License not found for activation token.")
		}

		// a concurrent deactivate may have won while we waited for the lock
		current, err := activations.FindByToken(ctx, act.ActivationToken)
		if err != nil {
			return err
		}
		if current == nil {
			return newError(KindInvalidToken, "Invalid activation token.")
		}

		if _, err := activations.DeleteByLicenseID(ctx, lic.ID); err != nil {
			return err
		}

		if locked.Status != StatusActivated {
			logger(ctx).Warn("releasing license that was not activated",
				zap.String("license_id", lic.ID),
				zap.String("status", string(locked.Status)),
			)
		}

		lic = locked
		return licenses.SetStatus(ctx, lic.ID, StatusAvailable)
	})
	if err != nil {
		if KindOf(err) != "" {
			return err
		}
		logger(ctx).Error("deactivation transaction failed", zap.String("license_id", lic.ID), zap.Error(err))
		return &Error{
			Kind:    KindTransactionFailure,
			Message: "Failed to deactivate license due to a server error.",
			Err:     err,
		}
	}

	logger(ctx).Info("license deactivated", zap.String("license_id", lic.ID))
	s.publish(ctx, EventDeactivated, lic, act)
	return nil
}

func (s *Service) publish(ctx context.Context, t EventType, lic *License, act *Activation) {
	err := s.publisher.Publish(ctx, t, EventPayload{
		LicenseID:    lic.ID,
		LicenseKey:   lic.LicenseKey,
		ProductID:    lic.ProductID,
		ActivationID: act.ID,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		logger(ctx).Warn("failed to publish license event",
			zap.String("type", string(t)),
			zap.String("license_id", lic.ID),
			zap.Error(err),
		)
	}
}
