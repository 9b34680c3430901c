package internal

import (
	"bitwise74/cardio-api/config"
	"bitwise74/cardio-api/internal/auth"
	"bitwise74/cardio-api/internal/health"
	"bitwise74/cardio-api/internal/notify"
	"bitwise74/cardio-api/internal/report"
	"bitwise74/cardio-api/internal/settings"
	"bitwise74/cardio-api/pkg/ratelimit"
	"bitwise74/cardio-api/pkg/security"

	"gorm.io/gorm"
)

type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Argon    *security.ArgonHash
	Auth     *auth.Service
	Settings *settings.Store
	Notifier notify.Notifier
	Exporter *report.Exporter
	Health   *health.Checker

	// Attempts is nil when Redis is disabled, it's nil safe
	Attempts *ratelimit.AttemptLimiter
}

// Secure reports whether cookies should carry the Secure flag
func (d *Deps) Secure() bool {
	return d.Config.Host.SSL.Enabled || d.Config.Host.SecureCookies
}
