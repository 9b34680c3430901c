// Package service runs the background jobs of the API
package service

import (
	"bitwise74/cardio-api/internal/account"
	"bitwise74/cardio-api/internal/auth"
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reportPrefix = "reports/"

// ReportStore is implemented by the S3 client, exported reports outlive
// their download URL and get removed here
type ReportStore interface {
	DeleteOlderThan(ctx context.Context, prefix string, cutoff time.Time) (int, error)
}

type CleanupConfig struct {
	TokensSpec           string
	AccountsSpec         string
	UnverifiedAccountTTL time.Duration
	ReportTTL            time.Duration
}

// Cleanup periodically removes expired sessions, reset tokens, codes,
// unverified accounts and old exported reports
type Cleanup struct {
	db      *gorm.DB
	auth    *auth.Service
	reports ReportStore
	cfg     CleanupConfig
	cron    *cron.Cron
	now     func() time.Time
}

// NewCleanup creates the scheduler. reports may be nil when object storage
// is disabled.
func NewCleanup(db *gorm.DB, a *auth.Service, reports ReportStore, cfg CleanupConfig) *Cleanup {
	return &Cleanup{
		db:      db,
		auth:    a,
		reports: reports,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start schedules the jobs, it returns an error for invalid cron specs
func (c *Cleanup) Start(ctx context.Context) error {
	cr := cron.New(cron.WithChain(cron.Recover(cronLogger{})), cron.WithLogger(cronLogger{}))

	if _, err := cr.AddFunc(c.cfg.TokensSpec, func() { c.PurgeTokens(ctx) }); err != nil {
		return fmt.Errorf("invalid token cleanup schedule %q, %w", c.cfg.TokensSpec, err)
	}

	if _, err := cr.AddFunc(c.cfg.AccountsSpec, func() {
		c.PurgeAccounts(ctx)
		c.PurgeReports(ctx)
	}); err != nil {
		return fmt.Errorf("invalid account cleanup schedule %q, %w", c.cfg.AccountsSpec, err)
	}

	c.cron = cr
	c.cron.Start()

	zap.L().Debug("Cleanup scheduled",
		zap.String("tokens", c.cfg.TokensSpec),
		zap.String("accounts", c.cfg.AccountsSpec),
	)

	return nil
}

// Stop waits for running jobs to finish
func (c *Cleanup) Stop() {
	if c.cron == nil {
		return
	}

	<-c.cron.Stop().Done()
}

// RunOnce runs every job right away, used by cardioctl purge
func (c *Cleanup) RunOnce(ctx context.Context) {
	c.PurgeTokens(ctx)
	c.PurgeAccounts(ctx)
	c.PurgeReports(ctx)
}

func (c *Cleanup) PurgeTokens(ctx context.Context) {
	jobs := []struct {
		name  string
		purge func(context.Context) (int64, error)
	}{
		{"sessions", c.auth.Sessions.PurgeExpired},
		{"reset tokens", c.auth.Resets.PurgeExpired},
		{"verification codes", c.auth.Codes.PurgeExpired},
	}

	for _, j := range jobs {
		n, err := j.purge(ctx)
		if err != nil {
			zap.L().Error("Failed to purge "+j.name, zap.Error(err))
			continue
		}

		if n > 0 {
			zap.L().Debug("Purged "+j.name, zap.Int64("count", n))
		}
	}
}

func (c *Cleanup) PurgeAccounts(ctx context.Context) {
	if c.cfg.UnverifiedAccountTTL <= 0 {
		return
	}

	n, err := account.DeleteUnverified(ctx, c.db, c.now().Add(-c.cfg.UnverifiedAccountTTL))
	if err != nil {
		zap.L().Error("Failed to delete unverified accounts", zap.Error(err))
	}

	if n > 0 {
		zap.L().Info("Deleted unverified accounts", zap.Int64("count", n))
	}
}

func (c *Cleanup) PurgeReports(ctx context.Context) {
	if c.reports == nil || c.cfg.ReportTTL <= 0 {
		return
	}

	n, err := c.reports.DeleteOlderThan(ctx, reportPrefix, c.now().Add(-c.cfg.ReportTTL))
	if err != nil {
		zap.L().Error("Failed to delete old reports", zap.Error(err))
	}

	if n > 0 {
		zap.L().Debug("Deleted old reports", zap.Int("count", n))
	}
}

// cronLogger sends cron's own logging to zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	zap.S().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	zap.S().Errorw(msg, append(keysAndValues, "error", err)...)
}
