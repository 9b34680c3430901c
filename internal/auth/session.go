package auth

import (
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/pkg/security"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Last seen is only written when it's older than this to keep lookups read-only
const touchInterval = time.Minute

// Principal is the result of a successful session lookup
type Principal struct {
	SessionID uint
	Token     string
	ExpiresAt time.Time
	User      model.User
}

type Sessions struct {
	db    *gorm.DB
	ttl   time.Duration
	cache *ttlcache.Cache
	now   func() time.Time
}

func NewSessions(db *gorm.DB, ttl, cacheTTL time.Duration) *Sessions {
	s := &Sessions{
		db:  db,
		ttl: ttl,
		now: time.Now,
	}

	if cacheTTL > 0 {
		c := ttlcache.NewCache()
		c.SetTTL(cacheTTL)
		c.SkipTTLExtensionOnHit(true)
		s.cache = c
	}

	return s
}

func (s *Sessions) Close() error {
	if s.cache == nil {
		return nil
	}

	return s.cache.Close()
}

// Create starts a new session for userID
func (s *Sessions) Create(ctx context.Context, userID, ip, userAgent string) (*model.Session, error) {
	now := s.now()

	if len(userAgent) > 512 {
		userAgent = userAgent[:512]
	}

	sess := &model.Session{
		Token:      security.NewToken(),
		UserID:     userID,
		IPAddress:  ip,
		UserAgent:  userAgent,
		ExpiresAt:  now.Add(s.ttl),
		LastSeenAt: now,
		CreatedAt:  now,
	}

	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to create session, %w", err)
	}

	return sess, nil
}

// Lookup resolves a session token to its user. Expired sessions are removed
// on sight.
func (s *Sessions) Lookup(ctx context.Context, token string) (*Principal, error) {
	if !security.IsToken(token) {
		return nil, ErrSessionNotFound
	}

	now := s.now()

	if p := s.cached(token); p != nil {
		if p.ExpiresAt.After(now) {
			return p, nil
		}

		s.forget(token)
	}

	db := s.db.WithContext(ctx)

	var sess model.Session
	if err := db.Where("token = ?", token).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}

		return nil, fmt.Errorf("failed to load session, %w", err)
	}

	if !sess.ExpiresAt.After(now) {
		if err := db.Delete(&model.Session{}, sess.ID).Error; err != nil {
			zap.L().Warn("Failed to delete expired session", zap.Error(err))
		}

		return nil, ErrSessionExpired
	}

	var user model.User
	if err := db.Where("id = ?", sess.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			db.Delete(&model.Session{}, sess.ID)
			return nil, ErrSessionNotFound
		}

		return nil, fmt.Errorf("failed to load session user, %w", err)
	}

	if !user.Active {
		return nil, ErrUserInactive
	}

	if now.Sub(sess.LastSeenAt) > touchInterval {
		if err := db.Model(&model.Session{}).
			Where("id = ?", sess.ID).
			UpdateColumn("last_seen_at", now).Error; err != nil {
			zap.L().Warn("Failed to touch session", zap.Error(err))
		}
	}

	p := &Principal{
		SessionID: sess.ID,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      user,
	}

	if s.cache != nil {
		s.cache.Set(token, p)
	}

	return p, nil
}

// Revoke ends a single session. Unknown tokens are not an error.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	s.forget(token)

	if err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("failed to revoke session, %w", err)
	}

	return nil
}

// RevokeAll ends every session of userID except the listed tokens
func (s *Sessions) RevokeAll(ctx context.Context, userID string, except ...string) (int64, error) {
	var tokens []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		tokens, err = revokeAllTx(tx, userID, except...)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions, %w", err)
	}

	s.forget(tokens...)
	return int64(len(tokens)), nil
}

// Refresh drops cached lookups of userID so the next request sees fresh
// user flags (admin, active)
func (s *Sessions) Refresh(ctx context.Context, userID string) error {
	if s.cache == nil {
		return nil
	}

	var tokens []string
	if err := s.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("user_id = ?", userID).
		Pluck("token", &tokens).Error; err != nil {
		return fmt.Errorf("failed to list sessions, %w", err)
	}

	s.forget(tokens...)
	return nil
}

// CountActive returns the number of unexpired sessions
func (s *Sessions) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("expires_at > ?", s.now()).
		Count(&n).Error

	return n, err
}

// PurgeExpired deletes every expired session and returns how many went away
func (s *Sessions) PurgeExpired(ctx context.Context) (int64, error) {
	r := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now()).
		Delete(&model.Session{})
	if r.Error != nil {
		return 0, fmt.Errorf("failed to purge sessions, %w", r.Error)
	}

	return r.RowsAffected, nil
}

func revokeAllTx(tx *gorm.DB, userID string, except ...string) ([]string, error) {
	q := tx.Model(&model.Session{}).Where("user_id = ?", userID)
	if len(except) > 0 {
		q = q.Where("token NOT IN ?", except)
	}

	var tokens []string
	if err := q.Pluck("token", &tokens).Error; err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		return nil, nil
	}

	if err := tx.Where("token IN ?", tokens).Delete(&model.Session{}).Error; err != nil {
		return nil, err
	}

	return tokens, nil
}

func (s *Sessions) cached(token string) *Principal {
	if s.cache == nil {
		return nil
	}

	v, err := s.cache.Get(token)
	if err != nil {
		return nil
	}

	p, _ := v.(*Principal)
	return p
}

func (s *Sessions) forget(tokens ...string) {
	if s.cache == nil {
		return
	}

	for _, t := range tokens {
		s.cache.Remove(t)
	}
}
