package auth

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/pkg/metrics"
	"bitwise74/cardio-api/pkg/middleware"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(c *gin.Context, d *internal.Deps) {
	requestID := common.RequestID(c)
	ctx := c.Request.Context()

	var data loginBody
	if !common.Bind(c, &data) {
		return
	}

	data.Email = common.NormalizeEmail(data.Email)

	if data.Email == "" {
		common.Fail(c, http.StatusBadRequest, "Email field can't be empty")
		return
	}

	if data.Password == "" {
		common.Fail(c, http.StatusBadRequest, "Password field can't be empty")
		return
	}

	allowed, wait, err := d.Attempts.Allow(ctx, "login:"+data.Email)
	if err != nil {
		// Redis being down shouldn't lock everyone out
		zap.L().Warn("Failed to check login attempts", zap.Error(err), zap.String("requestID", requestID))
		allowed = true
	}

	if !allowed {
		tooManyAttempts(c, wait)
		return
	}

	var user model.User
	if err := d.DB.WithContext(ctx).Where("email = ?", data.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthEvent("login_failed")
			common.Fail(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		common.ServerError(c, "Failed to fetch user", err)
		return
	}

	ok, needsRehash, err := d.Argon.VerifyPasswd(data.Password, user.PasswordHash)
	if err != nil {
		common.ServerError(c, "Failed to verify password", err)
		return
	}

	if !ok {
		metrics.AuthEvent("login_failed")
		common.Fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if !user.Active {
		common.Fail(c, http.StatusForbidden, "Your account has been deactivated")
		return
	}

	if !user.EmailVerified {
		c.JSON(http.StatusForbidden, gin.H{
			"error":             "Please verify your email before logging in",
			"needsVerification": true,
			"requestID":         requestID,
		})
		return
	}

	now := time.Now()
	updates := map[string]any{"last_login_at": now}

	if needsRehash {
		if hash, err := d.Argon.GenerateFromPassword(data.Password); err == nil {
			updates["password_hash"] = hash
		} else {
			zap.L().Warn("Failed to upgrade password hash", zap.Error(err), zap.String("requestID", requestID))
		}
	}

	if err := d.DB.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		zap.L().Warn("Failed to update last login", zap.Error(err), zap.String("requestID", requestID))
	}
	user.LastLoginAt = &now

	if !startSession(c, d, &user) {
		return
	}

	if err := d.Attempts.Reset(ctx, "login:"+data.Email); err != nil {
		zap.L().Warn("Failed to reset login attempts", zap.Error(err), zap.String("requestID", requestID))
	}

	metrics.AuthEvent("login")

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}

// startSession creates a session for u and sets the cookies. It answers the
// request itself on failure.
func startSession(c *gin.Context, d *internal.Deps, u *model.User) bool {
	sess, err := d.Auth.Sessions.Create(c.Request.Context(), u.ID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		common.ServerError(c, "Failed to create session", err)
		return false
	}

	maxAge := int(d.Config.Security.SessionTTL / time.Second)
	middleware.SetSessionCookies(c, sess.Token, u.IsAdmin, maxAge, d.Secure())

	return true
}

func tooManyAttempts(c *gin.Context, wait time.Duration) {
	retry := int(wait.Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}

	c.Header("Retry-After", strconv.Itoa(retry))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":      "Too many attempts, please try again later",
		"retryAfter": retry,
		"requestID":  common.RequestID(c),
	})
}

func Logout(c *gin.Context, d *internal.Deps) {
	p := middleware.CurrentPrincipal(c)

	if err := d.Auth.Sessions.Revoke(c.Request.Context(), p.Token); err != nil {
		common.ServerError(c, "Failed to revoke session", err)
		return
	}

	middleware.ClearSessionCookies(c, d.Secure())
	metrics.AuthEvent("logout")

	c.JSON(http.StatusOK, gin.H{
		"loggedOut": true,
	})
}

// Session returns the user behind the current session
func Session(c *gin.Context, d *internal.Deps) {
	p := middleware.CurrentPrincipal(c)

	c.JSON(http.StatusOK, gin.H{
		"user":      p.User,
		"expiresAt": p.ExpiresAt,
	})
}
