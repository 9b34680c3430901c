package model

import "time"

// Migration records one-shot data migrations that already ran, schema
// changes are handled by AutoMigrate
type Migration struct {
	ID        int       `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}
