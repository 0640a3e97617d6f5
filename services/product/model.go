package product

import "time"

type Product struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	ProductID   string    `gorm:"column:product_id;uniqueIndex;type:varchar(255);not null" json:"productId"`
	Name        string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Enabled     bool      `gorm:"column:enabled;not null" json:"enabled"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Product) TableName() string {
	return "products"
}

// LicenseSummary is the slice of a license row shown alongside its product.
type LicenseSummary struct {
	ID         string    `gorm:"column:id" json:"id"`
	LicenseKey string    `gorm:"column:license_key" json:"licenseKey"`
	Status     string    `gorm:"column:status" json:"status"`
	Enabled    bool      `gorm:"column:enabled" json:"enabled"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"createdAt"`
}

type ProductWithLicenses struct {
	*Product
	Licenses []LicenseSummary `json:"licenses"`
}

type CreateRequest struct {
	ProductID   string `json:"productId" binding:"omitempty,min=3,max=255"`
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Description string `json:"description"`
	Enabled     *bool  `json:"enabled"`
}

type UpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Enabled     *bool   `json:"enabled"`
}

type ListRequest struct {
	Search string `form:"search"`
}
