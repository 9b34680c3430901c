// Package settings reads and writes the runtime switches stored in the
// system_settings table
package settings

import (
	"bitwise74/cardio-api/internal/model"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

// Known lists the settings that can be changed and how their values are checked
var Known = map[string]func(string) error{
	model.SettingRegistrationEnabled: validBool,
	model.SettingMaintenanceMode:     validBool,
	model.SettingSupportEmail:        func(string) error { return nil },
}

func validBool(v string) error {
	if _, err := strconv.ParseBool(v); err != nil {
		return ErrInvalidValue
	}

	return nil
}

// Store caches values for a few seconds because the maintenance switch is
// read on every request
type Store struct {
	db    *gorm.DB
	cache *ttlcache.Cache
}

func New(db *gorm.DB, cacheTTL time.Duration) *Store {
	s := &Store{db: db}

	if cacheTTL > 0 {
		c := ttlcache.NewCache()
		c.SetTTL(cacheTTL)
		c.SkipTTLExtensionOnHit(true)
		s.cache = c
	}

	return s
}

func (s *Store) Close() error {
	if s.cache == nil {
		return nil
	}

	return s.cache.Close()
}

// Get returns the raw value of key, "" if it was never set
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if s.cache != nil {
		if v, err := s.cache.Get(key); err == nil {
			return v.(string), nil
		}
	}

	var st model.SystemSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&st).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("failed to read setting %s, %w", key, err)
	}

	if s.cache != nil {
		s.cache.Set(key, st.Value)
	}

	return st.Value, nil
}

// Bool reads key as a boolean, falling back to def when unset or malformed
func (s *Store) Bool(ctx context.Context, key string, def bool) (bool, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return def, err
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, nil
	}

	return b, nil
}

func (s *Store) All(ctx context.Context) ([]model.SystemSetting, error) {
	var out []model.SystemSetting
	if err := s.db.WithContext(ctx).Order("key").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list settings, %w", err)
	}

	return out, nil
}

// Set validates and upserts key. updatedBy is the admin's user ID, nil when
// changed from the command line.
func (s *Store) Set(ctx context.Context, key, value string, updatedBy *string) (*model.SystemSetting, error) {
	check, ok := Known[key]
	if !ok {
		return nil, ErrUnknownKey
	}

	if err := check(value); err != nil {
		return nil, err
	}

	st := &model.SystemSetting{
		Key:       key,
		Value:     value,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Now(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(st).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save setting %s, %w", key, err)
	}

	if s.cache != nil {
		s.cache.Remove(key)
	}

	return st, nil
}
