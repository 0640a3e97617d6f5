package license

import (
	"time"

	"license-service/services/product"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusActivated Status = "activated"
	StatusExpired   Status = "expired"
	StatusRevoked   Status = "revoked"
)

var Statuses = []Status{StatusAvailable, StatusActivated, StatusExpired, StatusRevoked}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusActivated, StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// Terminal statuses block activation and fail verification until an admin
// resets them.
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusRevoked
}

// License is a purchasable entitlement for one product. Status is activated
// exactly when one Activation row references it.
type License struct {
	ID         string           `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	LicenseKey string           `gorm:"column:license_key;uniqueIndex;type:varchar(255);not null" json:"licenseKey"`
	ProductID  string           `gorm:"column:product_id;index;type:varchar(255);not null" json:"productId"`
	Status     Status           `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	Enabled    bool             `gorm:"column:enabled;not null" json:"enabled"`
	Notes      string           `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	Product    *product.Product `gorm:"foreignKey:ProductID;references:ProductID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
}

func (License) TableName() string {
	return "licenses"
}

// Activation binds a license to one machine. Rows are created by Activate,
// deleted by Deactivate and never updated.
type Activation struct {
	ID              string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	LicenseID       string    `gorm:"column:license_id;index;type:varchar(32);not null" json:"licenseId"`
	HardwareIDHash  string    `gorm:"column:hardware_id_hash;type:varchar(255);not null" json:"-"`
	ActivationToken string    `gorm:"column:activation_token;uniqueIndex;type:varchar(64);not null" json:"activationToken"`
	CustomerEmail   string    `gorm:"column:customer_email;type:varchar(255);index" json:"customerEmail,omitempty"`
	CustomerName    string    `gorm:"column:customer_name;type:varchar(255)" json:"customerName,omitempty"`
	ActivatedAt     time.Time `gorm:"column:activated_at;not null" json:"activatedAt"`
	License         *License  `gorm:"foreignKey:LicenseID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Activation) TableName() string {
	return "activations"
}

type EventType string

const (
	EventActivated   EventType = "activated"
	EventDeactivated EventType = "deactivated"
)

// ActivationEvent is the audit trail written by the worker. One row per
// (type, activation).
type ActivationEvent struct {
	ID           string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Type         EventType `gorm:"column:type;type:varchar(20);not null;uniqueIndex:idx_activation_events_type_activation" json:"type"`
	ActivationID string    `gorm:"column:activation_id;type:varchar(32);not null;uniqueIndex:idx_activation_events_type_activation" json:"activationId"`
	LicenseID    string    `gorm:"column:license_id;type:varchar(32);not null;index" json:"licenseId"`
	LicenseKey   string    `gorm:"column:license_key;type:varchar(255);not null" json:"licenseKey"`
	ProductID    string    `gorm:"column:product_id;type:varchar(255);not null" json:"productId"`
	OccurredAt   time.Time `gorm:"column:occurred_at;not null" json:"occurredAt"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (ActivationEvent) TableName() string {
	return "activation_events"
}

// Models lists every table in migration order.
func Models() []any {
	return []any{&product.Product{}, &License{}, &Activation{}, &ActivationEvent{}}
}
