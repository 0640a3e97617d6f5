package license

import (
	"context"
	"sync"
	"testing"

	"license-service/pkg/gen"
	"license-service/pkg/hwid"
	"license-service/services/product"
	"license-service/services/testutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type publishedEvent struct {
	Type    EventType
	Payload EventPayload
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, t EventType, payload EventPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: t, Payload: payload})
	return p.err
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type fixture struct {
	db      *gorm.DB
	ids     *gen.SnowflakeNode
	svc     *Service
	pub     *recordingPublisher
	metrics *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, Models()...)
	node, err := gen.NewSnowflakeNode(1)
	require.NoError(t, err)

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	pub := &recordingPublisher{}
	svc := NewService(ServiceParams{
		DB:        db,
		Products:  product.NewService(product.ServiceParams{DB: db, IDs: node}),
		IDs:       node,
		Hasher:    hwid.New(bcrypt.MinCost),
		Publisher: pub,
		Metrics:   metrics,
	})

	return &fixture{db: db, ids: node, svc: svc, pub: pub, metrics: metrics}
}

func (f *fixture) seedProduct(t *testing.T, productID string, enabled bool) *product.Product {
	t.Helper()
	p := &product.Product{
		ID:        f.ids.NextID(),
		ProductID: productID,
		Name:      productID,
		Enabled:   enabled,
	}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) seedLicense(t *testing.T, key, productID string, status Status, enabled bool) *License {
	t.Helper()
	l := &License{
		ID:         f.ids.NextID(),
		LicenseKey: key,
		ProductID:  productID,
		Status:     status,
		Enabled:    enabled,
	}
	require.NoError(t, f.db.Create(l).Error)
	return l
}

func (f *fixture) license(t *testing.T, id string) *License {
	t.Helper()
	var l License
	require.NoError(t, f.db.First(&l, "id = ?", id).Error)
	return &l
}

func (f *fixture) activationCount(t *testing.T, licenseID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&Activation{}).Where("license_id = ?", licenseID).Count(&n).Error)
	return n
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "unexpected error: %v", err)
}
