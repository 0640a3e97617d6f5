package product_test

import (
	"context"
	"testing"

	"license-service/pkg/errutil"
	"license-service/pkg/gen"
	"license-service/services/license"
	"license-service/services/product"
	"license-service/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newService(t *testing.T) (*product.Service, *gorm.DB, *gen.SnowflakeNode) {
	t.Helper()
	db := testutil.NewTestDB(t, license.Models()...)
	node, err := gen.NewSnowflakeNode(1)
	require.NoError(t, err)
	return product.NewService(product.ServiceParams{DB: db, IDs: node}), db, node
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	p, err := svc.Create(ctx, product.CreateRequest{Name: "Photo Studio Pro", Description: " desktop "})
	require.NoError(t, err)
	require.Equal(t, "photo-studio-pro", p.ProductID)
	require.Equal(t, "desktop", p.Description)
	require.True(t, p.Enabled)
	require.NotEmpty(t, p.ID)

	p, err = svc.Create(ctx, product.CreateRequest{ProductID: "P-100", Name: "Hidden", Enabled: boolPtr(false)})
	require.NoError(t, err)
	require.False(t, p.Enabled)

	found, err := svc.FindByProductID(ctx, "P-100")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.False(t, found.Enabled)

	missing, err := svc.FindByProductID(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestCreateRejects(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.Create(ctx, product.CreateRequest{ProductID: "dup", Name: "First"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, product.CreateRequest{ProductID: "dup", Name: "Second"})
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
	require.Contains(t, err.Error(), `Product with ID "dup" already exists`)

	_, err = svc.Create(ctx, product.CreateRequest{Name: "  "})
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))

	_, err = svc.Create(ctx, product.CreateRequest{Name: "X"})
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}

func TestListSearch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	for _, name := range []string{"Alpha Editor", "Beta Player", "Gamma Editor"} {
		_, err := svc.Create(ctx, product.CreateRequest{Name: name})
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, product.ListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	editors, err := svc.List(ctx, product.ListRequest{Search: "EDITOR"})
	require.NoError(t, err)
	require.Len(t, editors, 2)
	for _, p := range editors {
		require.Contains(t, p.Name, "Editor")
	}
}

func TestGetWithLicenses(t *testing.T) {
	ctx := context.Background()
	svc, db, node := newService(t)

	p, err := svc.Create(ctx, product.CreateRequest{ProductID: "P1-app", Name: "App"})
	require.NoError(t, err)

	require.NoError(t, db.Create(&license.License{
		ID:         node.NextID(),
		LicenseKey: "KEY-AAAA-BBBB-CCCC-DDDD",
		ProductID:  p.ProductID,
		Status:     license.StatusAvailable,
		Enabled:    true,
	}).Error)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "P1-app", got.ProductID)
	require.Len(t, got.Licenses, 1)
	require.Equal(t, "KEY-AAAA-BBBB-CCCC-DDDD", got.Licenses[0].LicenseKey)
	require.Equal(t, "available", got.Licenses[0].Status)

	_, err = svc.Get(ctx, "missing")
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	p, err := svc.Create(ctx, product.CreateRequest{ProductID: "P1-app", Name: "App"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, p.ID, product.UpdateRequest{
		Name:    strPtr("App 2"),
		Enabled: boolPtr(false),
	})
	require.NoError(t, err)
	require.Equal(t, "App 2", updated.Name)
	require.False(t, updated.Enabled)
	require.Equal(t, "P1-app", updated.ProductID)

	unchanged, err := svc.Update(ctx, p.ID, product.UpdateRequest{})
	require.NoError(t, err)
	require.Equal(t, "App 2", unchanged.Name)

	_, err = svc.Update(ctx, p.ID, product.UpdateRequest{Name: strPtr(" ")})
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))

	_, err = svc.Update(ctx, "missing", product.UpdateRequest{Enabled: boolPtr(true)})
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, db, node := newService(t)

	withLicense, err := svc.Create(ctx, product.CreateRequest{ProductID: "P1-app", Name: "App"})
	require.NoError(t, err)
	empty, err := svc.Create(ctx, product.CreateRequest{ProductID: "P2-app", Name: "Other"})
	require.NoError(t, err)

	require.NoError(t, db.Create(&license.License{
		ID:         node.NextID(),
		LicenseKey: "KEY-AAAA-BBBB-CCCC-DDDD",
		ProductID:  withLicense.ProductID,
		Status:     license.StatusAvailable,
		Enabled:    true,
	}).Error)

	err = svc.Delete(ctx, withLicense.ID)
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
	require.Contains(t, err.Error(), "Cannot delete product with 1 existing license(s)")

	require.NoError(t, svc.Delete(ctx, empty.ID))
	found, err := svc.FindByProductID(ctx, "P2-app")
	require.NoError(t, err)
	require.Nil(t, found)

	err = svc.Delete(ctx, empty.ID)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}
