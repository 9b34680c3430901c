package service

import (
	"bitwise74/cardio-api/internal/auth"
	"bitwise74/cardio-api/internal/dbtest"
	"bitwise74/cardio-api/internal/model"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/gorm"
)

type fakeReports struct {
	prefix string
	cutoff time.Time
}

func (f *fakeReports) DeleteOlderThan(_ context.Context, prefix string, cutoff time.Time) (int, error) {
	f.prefix, f.cutoff = prefix, cutoff
	return 2, nil
}

var testCfg = CleanupConfig{
	TokensSpec:           "@every 1h",
	AccountsSpec:         "@daily",
	UnverifiedAccountTTL: 7 * 24 * time.Hour,
	ReportTTL:            time.Hour,
}

func setup(t *testing.T) (*gorm.DB, *auth.Service) {
	t.Helper()

	db := dbtest.New(t)
	a := auth.New(db, auth.Config{
		SessionTTL:      time.Hour,
		ResetTokenTTL:   time.Hour,
		CodeTTL:         time.Minute,
		CodeLength:      6,
		MaxCodeAttempts: 3,
	})
	t.Cleanup(func() { a.Close() })

	return db, a
}

func TestRunOnce(t *testing.T) {
	db, a := setup(t)
	ctx := context.Background()
	now := time.Now()

	old := now.Add(-10 * 24 * time.Hour)
	require.NoError(t, db.Create(&model.User{ID: "user000000000001", Email: "old@example.com", PasswordHash: "x", Active: true, CreatedAt: old}).Error)
	require.NoError(t, db.Create(&model.User{ID: "user000000000002", Email: "ok@example.com", PasswordHash: "x", Active: true, EmailVerified: true, CreatedAt: old}).Error)

	require.NoError(t, db.Create(&model.Session{Token: "expired", UserID: "user000000000002", ExpiresAt: now.Add(-time.Minute)}).Error)
	require.NoError(t, db.Create(&model.Session{Token: "live", UserID: "user000000000002", ExpiresAt: now.Add(time.Hour)}).Error)

	reports := &fakeReports{}
	c := NewCleanup(db, a, reports, testCfg)
	c.now = func() time.Time { return now }
	c.RunOnce(ctx)

	var tokens []string
	require.NoError(t, db.Model(&model.Session{}).Pluck("token", &tokens).Error)
	assert.Equal(t, []string{"live"}, tokens)

	var ids []string
	require.NoError(t, db.Model(&model.User{}).Pluck("id", &ids).Error)
	assert.Equal(t, []string{"user000000000002"}, ids)

	assert.Equal(t, reportPrefix, reports.prefix)
	assert.Equal(t, now.Add(-time.Hour), reports.cutoff)
}

func TestStartStopDoesNotLeak(t *testing.T) {
	db, a := setup(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewCleanup(db, a, nil, testCfg)
	require.NoError(t, c.Start(context.Background()))
	c.Stop()
}

func TestStartRejectsBadSpec(t *testing.T) {
	db, a := setup(t)

	cfg := testCfg
	cfg.TokensSpec = "every now and then"

	c := NewCleanup(db, a, nil, cfg)
	assert.Error(t, c.Start(context.Background()))

	// Stop on a scheduler that never started is a no-op
	c.Stop()
}
