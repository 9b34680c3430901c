package db

import (
	"bitwise74/cardio-api/config"
	"bitwise74/cardio-api/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := Open(sqlite.Open("file:" + t.Name() + "?mode=memory&cache=shared"))
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return gdb
}

func TestOpenSeedsDefaultSettings(t *testing.T) {
	gdb := openMemory(t)

	var settings []model.SystemSetting
	require.NoError(t, gdb.Order("key").Find(&settings).Error)
	require.Len(t, settings, 3)

	values := map[string]string{}
	for _, s := range settings {
		values[s.Key] = s.Value
	}

	assert.Equal(t, "true", values[model.SettingRegistrationEnabled])
	assert.Equal(t, "false", values[model.SettingMaintenanceMode])
}

func TestMigrateIsIdempotent(t *testing.T) {
	gdb := openMemory(t)

	require.NoError(t, gdb.Model(&model.SystemSetting{}).
		Where("key = ?", model.SettingRegistrationEnabled).
		Update("value", "false").Error)

	require.NoError(t, Migrate(gdb))

	var s model.SystemSetting
	require.NoError(t, gdb.First(&s, "key = ?", model.SettingRegistrationEnabled).Error)
	assert.Equal(t, "false", s.Value, "data migrations must not run twice")

	var count int64
	require.NoError(t, gdb.Model(&model.Migration{}).Count(&count).Error)
	assert.EqualValues(t, len(dataMigrations), count)
}

func TestPromoteBootstrapAdmin(t *testing.T) {
	gdb := openMemory(t)

	require.NoError(t, gdb.Create(&model.User{ID: "u1", Email: "root@example.com", PasswordHash: "x", Active: true}).Error)

	require.NoError(t, PromoteBootstrapAdmin(gdb, ""))
	require.NoError(t, PromoteBootstrapAdmin(gdb, "root@example.com"))

	var u model.User
	require.NoError(t, gdb.First(&u, "id = ?", "u1").Error)
	assert.True(t, u.IsAdmin)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}
