package auth

import (
	"bitwise74/cardio-api/internal/dbtest"
	"bitwise74/cardio-api/internal/model"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testCfg = Config{
	SessionTTL:      time.Hour,
	ResetTokenTTL:   time.Hour,
	CodeTTL:         10 * time.Minute,
	CodeLength:      6,
	ResendCooldown:  time.Minute,
	MaxCodeAttempts: 3,
	SessionCacheTTL: time.Minute,
}

func newService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := dbtest.New(t)
	s := New(db, testCfg)
	t.Cleanup(func() { s.Close() })

	return s, db
}

func createUser(t *testing.T, db *gorm.DB, id, email string) *model.User {
	t.Helper()

	u := &model.User{
		ID:           id,
		Email:        email,
		PasswordHash: "old-hash",
		Active:       true,
	}
	require.NoError(t, db.Create(u).Error)

	return u
}

// clock lets tests move time forward without sleeping
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestSessionLifecycle(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	sess, err := s.Sessions.Create(ctx, u.ID, "127.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.Len(t, sess.Token, 36)

	p, err := s.Sessions.Lookup(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.User.ID)
	assert.Equal(t, sess.ID, p.SessionID)

	require.NoError(t, s.Sessions.Revoke(ctx, sess.Token))

	_, err = s.Sessions.Lookup(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Revoking twice is fine
	assert.NoError(t, s.Sessions.Revoke(ctx, sess.Token))
}

func TestSessionLookupRejectsGarbage(t *testing.T) {
	s, _ := newService(t)

	for _, tok := range []string{"", "not-a-token", "00000000-0000-0000-0000-000000000000"} {
		_, err := s.Sessions.Lookup(context.Background(), tok)
		assert.ErrorIs(t, err, ErrSessionNotFound, tok)
	}
}

func TestSessionExpiry(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	c := &clock{t: time.Now()}
	s.Sessions.now = c.now

	sess, err := s.Sessions.Create(ctx, u.ID, "", "")
	require.NoError(t, err)

	_, err = s.Sessions.Lookup(ctx, sess.Token)
	require.NoError(t, err)

	c.advance(2 * time.Hour)

	// Cached entry must not outlive the session
	_, err = s.Sessions.Lookup(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)

	var count int64
	db.Model(&model.Session{}).Count(&count)
	assert.Zero(t, count, "expired session should be deleted on sight")
}

func TestSessionInactiveUser(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	sess, err := s.Sessions.Create(ctx, u.ID, "", "")
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.User{}).Where("id = ?", u.ID).Update("active", false).Error)
	require.NoError(t, s.Sessions.Refresh(ctx, u.ID))

	_, err = s.Sessions.Lookup(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestSessionTouch(t *testing.T) {
	db := dbtest.New(t)
	s := NewSessions(db, time.Hour, 0)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	c := &clock{t: time.Now()}
	s.now = c.now

	sess, err := s.Create(ctx, u.ID, "", "")
	require.NoError(t, err)

	c.advance(5 * time.Minute)
	_, err = s.Lookup(ctx, sess.Token)
	require.NoError(t, err)

	var got model.Session
	require.NoError(t, db.First(&got, sess.ID).Error)
	assert.WithinDuration(t, c.t, got.LastSeenAt, time.Second)
}

func TestRevokeAllKeepsExcept(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")
	other := createUser(t, db, "user000000000002", "b@example.com")

	keep, err := s.Sessions.Create(ctx, u.ID, "", "")
	require.NoError(t, err)
	drop, err := s.Sessions.Create(ctx, u.ID, "", "")
	require.NoError(t, err)
	foreign, err := s.Sessions.Create(ctx, other.ID, "", "")
	require.NoError(t, err)

	// Warm the cache so revocation has to clear it
	_, err = s.Sessions.Lookup(ctx, drop.Token)
	require.NoError(t, err)

	n, err := s.Sessions.RevokeAll(ctx, u.ID, keep.Token)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Sessions.Lookup(ctx, drop.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.Sessions.Lookup(ctx, keep.Token)
	assert.NoError(t, err)
	_, err = s.Sessions.Lookup(ctx, foreign.Token)
	assert.NoError(t, err)
}

func TestSessionPurgeExpired(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	c := &clock{t: time.Now()}
	s.Sessions.now = c.now

	_, err := s.Sessions.Create(ctx, u.ID, "", "")
	require.NoError(t, err)
	c.advance(30 * time.Minute)
	_, err = s.Sessions.Create(ctx, u.ID, "", "")
	require.NoError(t, err)

	c.advance(45 * time.Minute)

	active, err := s.Sessions.CountActive(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)

	n, err := s.Sessions.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestResetTokenSupersedes(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	first, err := s.Resets.Issue(ctx, u.ID)
	require.NoError(t, err)
	second, err := s.Resets.Issue(ctx, u.ID)
	require.NoError(t, err)

	_, err = s.Resets.Validate(ctx, first.Token)
	assert.ErrorIs(t, err, ErrTokenUsed)

	got, err := s.Resets.Validate(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	var valid int64
	db.Model(&model.PasswordResetToken{}).Where("user_id = ? AND is_valid = ?", u.ID, true).Count(&valid)
	assert.EqualValues(t, 1, valid)
}

func TestResetTokenConsume(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	sess, err := s.Sessions.Create(ctx, u.ID, "", "")
	require.NoError(t, err)
	_, err = s.Sessions.Lookup(ctx, sess.Token)
	require.NoError(t, err)

	tok, err := s.Resets.Issue(ctx, u.ID)
	require.NoError(t, err)

	userID, err := s.Resets.Consume(ctx, tok.Token, "new-hash")
	require.NoError(t, err)
	assert.Equal(t, u.ID, userID)

	var got model.User
	require.NoError(t, db.First(&got, "id = ?", u.ID).Error)
	assert.Equal(t, "new-hash", got.PasswordHash)

	// Every session, including cached ones, is gone
	_, err = s.Sessions.Lookup(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = s.Resets.Consume(ctx, tok.Token, "another-hash")
	assert.ErrorIs(t, err, ErrTokenUsed)

	var stored model.PasswordResetToken
	require.NoError(t, db.Where("token = ?", tok.Token).First(&stored).Error)
	assert.False(t, stored.IsValid)
	assert.NotNil(t, stored.UsedAt)
}

func TestResetTokenErrors(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	_, err := s.Resets.Validate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = s.Resets.Consume(ctx, "9b2f3c43-2b8a-4c4d-9a8e-6b0f0d1e2f3a", "x")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	c := &clock{t: time.Now()}
	s.Resets.now = c.now

	tok, err := s.Resets.Issue(ctx, u.ID)
	require.NoError(t, err)

	c.advance(2 * time.Hour)

	_, err = s.Resets.Validate(ctx, tok.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = s.Resets.Consume(ctx, tok.Token, "x")
	assert.ErrorIs(t, err, ErrTokenExpired)

	n, err := s.Resets.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestResetTokenConsumeOnce(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	tok, err := s.Resets.Issue(ctx, u.ID)
	require.NoError(t, err)

	const workers = 8

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		used int
	)

	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := s.Resets.Consume(ctx, tok.Token, "hash")

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, ErrTokenUsed, "worker %d", i):
				used++
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, used)
}

func TestCodeIssueAndVerify(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	code, err := s.Codes.Issue(ctx, CodeRequest{
		Target:  "a@example.com",
		Channel: model.ChannelEmail,
		Purpose: model.PurposeEmailVerify,
	})
	require.NoError(t, err)
	assert.Len(t, code, 6)

	rec, err := s.Codes.Verify(ctx, "a@example.com", model.PurposeEmailVerify, code)
	require.NoError(t, err)
	assert.True(t, rec.Used)

	_, err = s.Codes.Verify(ctx, "a@example.com", model.PurposeEmailVerify, code)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestCodeCooldown(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c := &clock{t: time.Now()}
	s.Codes.now = c.now

	req := CodeRequest{Target: "+15555550100", Channel: model.ChannelSMS, Purpose: model.PurposePhoneVerify}

	first, err := s.Codes.Issue(ctx, req)
	require.NoError(t, err)

	c.advance(20 * time.Second)

	_, err = s.Codes.Issue(ctx, req)
	require.ErrorIs(t, err, ErrResendCooldown)

	var cd *CooldownError
	require.ErrorAs(t, err, &cd)
	assert.Equal(t, 40, cd.RetrySeconds())

	c.advance(41 * time.Second)

	second, err := s.Codes.Issue(ctx, req)
	require.NoError(t, err)

	// The first code was superseded
	if first != second {
		_, err = s.Codes.Verify(ctx, req.Target, req.Purpose, first)
		assert.ErrorIs(t, err, ErrCodeInvalid)
	}

	_, err = s.Codes.Verify(ctx, req.Target, req.Purpose, second)
	assert.NoError(t, err)
}

func TestCodeAttempts(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	code, err := s.Codes.Issue(ctx, CodeRequest{Target: "a@example.com", Channel: model.ChannelEmail, Purpose: model.PurposeEmailVerify})
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for range testCfg.MaxCodeAttempts {
		_, err = s.Codes.Verify(ctx, "a@example.com", model.PurposeEmailVerify, wrong)
		assert.ErrorIs(t, err, ErrCodeInvalid)
	}

	_, err = s.Codes.Verify(ctx, "a@example.com", model.PurposeEmailVerify, code)
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}

func TestCodeExpiry(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	c := &clock{t: time.Now()}
	s.Codes.now = c.now

	code, err := s.Codes.Issue(ctx, CodeRequest{Target: "a@example.com", Channel: model.ChannelEmail, Purpose: model.PurposeEmailVerify})
	require.NoError(t, err)

	c.advance(11 * time.Minute)

	_, err = s.Codes.Verify(ctx, "a@example.com", model.PurposeEmailVerify, code)
	assert.ErrorIs(t, err, ErrCodeExpired)

	n, err := s.Codes.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCodePurposeIsolation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	code, err := s.Codes.Issue(ctx, CodeRequest{Target: "a@example.com", Channel: model.ChannelEmail, Purpose: model.PurposeEmailVerify})
	require.NoError(t, err)

	_, err = s.Codes.Verify(ctx, "a@example.com", model.PurposePhoneVerify, code)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestResetTokenConcurrentIssue(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.Resets.Issue(ctx, u.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var valid int64
	require.NoError(t, db.Model(&model.PasswordResetToken{}).Where("user_id = ? AND is_valid = ?", u.ID, true).Count(&valid).Error)
	assert.EqualValues(t, 1, valid)
}

func TestCodeConcurrentIssueRespectsCooldown(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	u := createUser(t, db, "user000000000001", "a@example.com")

	req := CodeRequest{UserID: &u.ID, Target: u.Email, Channel: model.ChannelEmail, Purpose: model.PurposeEmailVerify}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		issued int
	)

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.Codes.Issue(ctx, req)
			if err != nil {
				assert.ErrorIs(t, err, ErrResendCooldown)
				return
			}

			mu.Lock()
			issued++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, issued)

	var n int64
	require.NoError(t, db.Model(&model.VerificationCode{}).Where("target = ?", u.Email).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestCodeParallelGuessesStopAtLimit(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()

	code, err := s.Codes.Issue(ctx, CodeRequest{Target: "a@example.com", Channel: model.ChannelEmail, Purpose: model.PurposeEmailVerify})
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		invalid  int
		rejected int
	)

	for range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.Codes.Verify(ctx, "a@example.com", model.PurposeEmailVerify, wrong)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case errors.Is(err, ErrCodeInvalid):
				invalid++
			case errors.Is(err, ErrTooManyAttempts):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, testCfg.MaxCodeAttempts, invalid)
	assert.Equal(t, 40-testCfg.MaxCodeAttempts, rejected)

	var rec model.VerificationCode
	require.NoError(t, db.Where("target = ?", "a@example.com").First(&rec).Error)
	assert.Equal(t, testCfg.MaxCodeAttempts, rec.Attempts)

	// The right code is refused once the budget is spent
	_, err = s.Codes.Verify(ctx, "a@example.com", model.PurposeEmailVerify, code)
	assert.ErrorIs(t, err, ErrTooManyAttempts)
}
