package model

import "time"

const (
	SettingRegistrationEnabled = "registration_enabled"
	SettingMaintenanceMode     = "maintenance_mode"
	SettingSupportEmail        = "support_email"
)

type SystemSetting struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedBy *string   `gorm:"size:16" json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
