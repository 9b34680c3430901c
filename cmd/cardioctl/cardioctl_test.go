package main

import (
	"bitwise74/cardio-api/internal/model"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cardio.db")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", path)
	t.Setenv("APP_LOG_LEVEL", "error")

	return path
}

func TestMigrateAndSettings(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Database is up to date")

	out, err = run(t, "settings", "set", model.SettingMaintenanceMode, "true")
	require.NoError(t, err)
	assert.Contains(t, out, "maintenance_mode=true")

	out, err = run(t, "settings", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "maintenance_mode=true")
	assert.Contains(t, out, "registration_enabled=true")

	_, err = run(t, "settings", "set", "nope", "1")
	assert.ErrorContains(t, err, "unknown setting")

	_, err = run(t, "settings", "set", model.SettingMaintenanceMode, "maybe")
	assert.Error(t, err)
}

func TestAdminPromoteDemote(t *testing.T) {
	path := setupEnv(t)

	_, err := run(t, "migrate")
	require.NoError(t, err)

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	require.NoError(t, gdb.Create(&model.User{ID: "user000000000001", Email: "root@example.com", PasswordHash: "x", Active: true}).Error)

	_, err = run(t, "admin", "promote", "Root@Example.com")
	require.NoError(t, err)

	var u model.User
	require.NoError(t, gdb.First(&u, "id = ?", "user000000000001").Error)
	assert.True(t, u.IsAdmin)

	_, err = run(t, "admin", "demote", "root@example.com")
	require.NoError(t, err)
	require.NoError(t, gdb.First(&u, "id = ?", "user000000000001").Error)
	assert.False(t, u.IsAdmin)

	_, err = run(t, "admin", "promote", "ghost@example.com")
	assert.ErrorContains(t, err, "no user with email")

	_, err = run(t, "admin", "promote")
	assert.Error(t, err)
}
