package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gamegoo/socialgraph/social"
	"github.com/gin-gonic/gin"
)

// statusFor maps a relationship error kind to an HTTP status.
func statusFor(err error) int {
	switch social.KindOf(err) {
	case social.KindValidation:
		return http.StatusBadRequest
	case social.KindNotFound:
		return http.StatusNotFound
	case social.KindConflict:
		return http.StatusConflict
	case social.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": msg, "code": code}. Errors outside the
// relationship taxonomy are reported as a generic internal error.
func writeError(c *gin.Context, err error) {
	var se *social.Error
	if !errors.As(err, &se) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(statusFor(err), gin.H{"error": se.Msg, "code": se.Code})
}

// pathID parses a positive int64 path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// pageParams reads the optional "cursor" and "size" query parameters.
func pageParams(c *gin.Context) (cursor *int64, size int, ok bool) {
	if v := c.Query("cursor"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cursor"})
			return nil, 0, false
		}
		cursor = &n
	}
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
			return nil, 0, false
		}
		size = n
	}
	return cursor, size, true
}
