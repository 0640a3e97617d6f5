package admin

import (
	"license-service/pkg/db/pagination"
	"license-service/services/license"
	"license-service/services/product"
)

// LicenseView is a license together with its product and activations, the
// shape every admin endpoint returns.
type LicenseView struct {
	*license.License
	Product     *product.Product      `json:"product"`
	Activations []*license.Activation `json:"activations"`
}

type CreateRequest struct {
	LicenseKey string `json:"licenseKey" binding:"required,min=10,max=255"`
	ProductID  string `json:"productId" binding:"required,min=3,max=255"`
	Notes      string `json:"notes"`
}

type GenerateRequest struct {
	ProductID string `json:"productId" binding:"required,min=3,max=255"`
	Count     int    `json:"count" binding:"required,gte=1,lte=500"`
	Prefix    string `json:"prefix" binding:"omitempty,max=16"`
	Notes     string `json:"notes"`
}

type GenerateResult struct {
	BatchCode string             `json:"batchCode,omitempty"`
	Licenses  []*license.License `json:"licenses"`
}

type ListRequest struct {
	Search    string `form:"search"`
	ProductID string `form:"productId"`
	Status    string `form:"status" binding:"omitempty,oneof=available activated expired revoked"`
	pagination.Pagination
}

type UpdateRequest struct {
	Status  *license.Status `json:"status" binding:"omitempty,oneof=available expired revoked"`
	Enabled *bool           `json:"enabled"`
	Notes   *string         `json:"notes"`
}

type ToggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
