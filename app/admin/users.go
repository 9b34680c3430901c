package admin

import (
	"bitwise74/cardio-api/app/common"
	"bitwise74/cardio-api/internal"
	"bitwise74/cardio-api/internal/account"
	"bitwise74/cardio-api/internal/model"
	"bitwise74/cardio-api/pkg/middleware"
	"bitwise74/cardio-api/pkg/validators"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListUsers supports ?search= (email or name), ?admin= and ?verified= filters
// and paging
func ListUsers(c *gin.Context, d *internal.Deps) {
	page, limit, offset := common.Paging(c)

	q := d.DB.WithContext(c.Request.Context()).Model(&model.User{})

	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}

	for param, column := range map[string]string{"admin": "is_admin", "verified": "email_verified", "active": "active"} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}

		b, err := strconv.ParseBool(raw)
		if err != nil {
			common.Fail(c, http.StatusBadRequest, param+" must be true or false")
			return
		}
		q = q.Where(column+" = ?", b)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		common.ServerError(c, "Failed to count users", err)
		return
	}

	users := []model.User{}
	if err := q.Order("created_at DESC").Order("id").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		common.ServerError(c, "Failed to fetch users", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func GetUser(c *gin.Context, d *internal.Deps) {
	ctx := c.Request.Context()

	u, ok := findUser(c, d)
	if !ok {
		return
	}

	var predictions, sessions int64
	if err := d.DB.WithContext(ctx).Model(&model.Prediction{}).Where("user_id = ?", u.ID).Count(&predictions).Error; err != nil {
		common.ServerError(c, "Failed to count predictions", err)
		return
	}

	if err := d.DB.WithContext(ctx).Model(&model.Session{}).Where("user_id = ? AND expires_at > ?", u.ID, nowFunc()).Count(&sessions).Error; err != nil {
		common.ServerError(c, "Failed to count sessions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":            u,
		"predictionCount": predictions,
		"activeSessions":  sessions,
	})
}

type patchUserBody struct {
	FullName *string `json:"fullName"`
	IsAdmin  *bool   `json:"isAdmin"`
	Active   *bool   `json:"active"`
}

func UpdateUser(c *gin.Context, d *internal.Deps) {
	requestID := common.RequestID(c)
	ctx := c.Request.Context()
	self := middleware.CurrentPrincipal(c).User.ID

	var data patchUserBody
	if !common.Bind(c, &data) {
		return
	}

	u, ok := findUser(c, d)
	if !ok {
		return
	}

	updates := map[string]any{}

	if data.FullName != nil {
		name := strings.TrimSpace(*data.FullName)
		if err := validators.NameValidator(name); err != nil {
			common.Fail(c, http.StatusBadRequest, err.Error())
			return
		}
		updates["full_name"] = name
	}

	if data.IsAdmin != nil {
		if u.ID == self && !*data.IsAdmin {
			common.Fail(c, http.StatusBadRequest, "You can't remove your own admin rights")
			return
		}
		updates["is_admin"] = *data.IsAdmin
	}

	if data.Active != nil {
		if u.ID == self && !*data.Active {
			common.Fail(c, http.StatusBadRequest, "You can't deactivate your own account")
			return
		}
		updates["active"] = *data.Active
	}

	if len(updates) == 0 {
		common.Fail(c, http.StatusBadRequest, "Nothing to update")
		return
	}

	if err := d.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
		common.ServerError(c, "Failed to update user", err)
		return
	}

	if data.Active != nil && !*data.Active {
		if _, err := d.Auth.Sessions.RevokeAll(ctx, u.ID); err != nil {
			zap.L().Error("Failed to revoke sessions of deactivated user", zap.Error(err), zap.String("requestID", requestID))
		}
	}

	if err := d.Auth.Sessions.Refresh(ctx, u.ID); err != nil {
		zap.L().Warn("Failed to refresh sessions", zap.Error(err), zap.String("requestID", requestID))
	}

	if err := d.DB.WithContext(ctx).Where("id = ?", u.ID).First(u).Error; err != nil {
		common.ServerError(c, "Failed to fetch user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": u,
	})

	zap.L().Info("User updated by admin",
		zap.String("userID", u.ID),
		zap.String("adminID", self),
		zap.Any("fields", keys(updates)),
		zap.String("requestID", requestID),
	)
}

func DeleteUser(c *gin.Context, d *internal.Deps) {
	requestID := common.RequestID(c)
	self := middleware.CurrentPrincipal(c).User.ID

	id := c.Param("id")
	if id == self {
		common.Fail(c, http.StatusBadRequest, "You can't delete your own account from the admin panel")
		return
	}

	if err := account.Delete(c.Request.Context(), d.DB, d.Auth.Sessions, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, "User not found")
			return
		}

		common.ServerError(c, "Failed to delete user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": true,
	})

	zap.L().Info("User deleted by admin", zap.String("userID", id), zap.String("adminID", self), zap.String("requestID", requestID))
}

func findUser(c *gin.Context, d *internal.Deps) (*model.User, bool) {
	var u model.User
	if err := d.DB.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, "User not found")
			return nil, false
		}

		common.ServerError(c, "Failed to fetch user", err)
		return nil, false
	}

	return &u, true
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}
