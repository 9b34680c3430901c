// Package bootstrap connects every dependency described by the config and
// assembles internal.Deps. Both the server and cardioctl start from here.
package bootstrap

import (
	"bitwise74/cardio-api/aws"
	"bitwise74/cardio-api/config"
	"bitwise74/cardio-api/db"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/auth"
	"bitwise74/cardio-api/internal/health"
	"bitwise74/cardio-api/internal/notify"
	"bitwise74/cardio-api/internal/report"
	"bitwise74/cardio-api/internal/service"
	"bitwise74/cardio-api/internal/settings"
	"bitwise74/cardio-api/pkg/ratelimit"
	"bitwise74/cardio-api/pkg/security"
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags
var Version = "dev"

const (
	sessionCacheTTL  = 30 * time.Second
	settingsCacheTTL = 5 * time.Second
)

type App struct {
	Deps    *internal.Deps
	Cleanup *service.Cleanup

	// Nil when the matching feature is disabled
	S3    *aws.S3Client
	Redis *redis.Client
	Queue *notify.Queue
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	gdb, err := db.New(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.PromoteBootstrapAdmin(gdb, cfg.Admin.BootstrapEmail); err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB, %w", err)
	}

	a := &App{}
	dev := cfg.App.DevMode()

	mailer := notify.NewMailer(cfg.Mail, dev)
	sms := notify.NewSMS(cfg.SMS, dev)
	dispatcher := notify.NewDispatcher(mailer, sms)

	checker := health.NewChecker(Version).
		Critical("database", health.PingProbe(sqlDB)).
		Static("email", channelStatus(mailer.Configured())).
		Static("sms", channelStatus(sms.Configured()))

	d := &internal.Deps{
		DB:     gdb,
		Config: cfg,
		Argon:  security.New(),
		Auth: auth.New(gdb, auth.Config{
			SessionTTL:      cfg.Security.SessionTTL,
			ResetTokenTTL:   cfg.Security.ResetTokenTTL,
			CodeTTL:         cfg.Security.VerificationCodeTTL,
			CodeLength:      cfg.Security.CodeLength,
			ResendCooldown:  cfg.Security.ResendCooldown,
			MaxCodeAttempts: cfg.Security.MaxCodeAttempts,
			SessionCacheTTL: sessionCacheTTL,
		}),
		Settings: settings.New(gdb, settingsCacheTTL),
		Notifier: dispatcher,
		Health:   checker,
	}
	a.Deps = d

	if cfg.Redis.Enabled {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis, %w", err)
		}

		d.Attempts = ratelimit.NewAttemptLimiter(a.Redis, "", cfg.Security.LoginAttempts, cfg.Security.LoginWindow)
		checker.Optional("redis", func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() })

		a.Queue = notify.NewQueue(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, dispatcher)
		d.Notifier = a.Queue
	} else {
		checker.Static("redis", health.StatusDisabled)
		zap.L().Warn("Redis disabled, login attempts are not throttled and notifications are sent inline")
	}

	var reports service.ReportStore
	if cfg.Storage.Enabled {
		a.S3, err = aws.NewS3(ctx, cfg.Storage)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
		}

		d.Exporter = report.NewExporter(a.S3, cfg.Storage.PresignTTL)
		checker.Optional("storage", a.S3.Ping)
		reports = a.S3
	} else {
		d.Exporter = report.NewExporter(nil, 0)
		checker.Static("storage", health.StatusDisabled)
	}

	a.Cleanup = service.NewCleanup(gdb, d.Auth, reports, service.CleanupConfig{
		TokensSpec:           cfg.Cleanup.TokensSpec,
		AccountsSpec:         cfg.Cleanup.AccountsSpec,
		UnverifiedAccountTTL: cfg.Cleanup.UnverifiedAccountTTL,
		ReportTTL:            cfg.Storage.PresignTTL,
	})

	return a, nil
}

// Close stops the notification worker and releases caches and connections.
// The cleanup scheduler is stopped by whoever started it.
func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Shutdown()
	}

	if a.Redis != nil {
		a.Redis.Close()
	}

	a.Deps.Auth.Close()
	a.Deps.Settings.Close()

	if sqlDB, err := a.Deps.DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func channelStatus(configured bool) string {
	if configured {
		return health.StatusHealthy
	}

	return health.StatusSimulated
}
