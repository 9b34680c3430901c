// Package common holds the response helpers shared by every handler group
package common

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

func RequestID(c *gin.Context) string {
	return c.MustGet("requestID").(string)
}

// Fail answers with a client facing error message
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"error":     msg,
		"requestID": RequestID(c),
	})
}

// ServerError logs err under msg and answers a generic 500
func ServerError(c *gin.Context, msg string, err error) {
	requestID := RequestID(c)

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":     "Internal server error",
		"requestID": requestID,
	})

	zap.L().Error(msg, zap.Error(err), zap.String("requestID", requestID))
}

// Bind decodes the JSON body into dst, answering 400 on failure
func Bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Fail(c, http.StatusRequestEntityTooLarge, "Request body size exceeds limit")
			return false
		}

		Fail(c, http.StatusBadRequest, "Invalid request body")

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", RequestID(c)))
		return false
	}

	return true
}

// Paging reads ?page= and ?limit= with sane bounds
func Paging(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}

	limit, _ = strconv.Atoi(c.Query("limit"))
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return page, limit, (page - 1) * limit
}

// NormalizeEmail lower cases and trims so lookups don't depend on how the
// user typed the address
func NormalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
