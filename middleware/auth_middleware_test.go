package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gamegoo/socialgraph/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubMembers struct {
	active map[int64]bool
	err    error
}

func (s stubMembers) IsActive(_ context.Context, id int64) (bool, error) {
	return s.active[id], s.err
}

var testSec = config.SecurityConfig{JWTSecret: "secret"}

func newProtectedRouter(members MemberChecker) *gin.Engine {
	r := gin.New()
	r.Use(Auth(testSec, members))
	r.GET("/protected", func(ctx *gin.Context) {
		ctx.Status(http.StatusOK)
	})
	return r
}

func doProtected(r *gin.Engine, header, query string) int {
	url := "/protected"
	if query != "" {
		url += "?token=" + query
	}
	req := httptest.NewRequest(http.MethodGet, url, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuth_MissingAuthHeader(t *testing.T) {
	r := newProtectedRouter(nil)
	assert.Equal(t, http.StatusUnauthorized, doProtected(r, "", ""))
}

func TestAuth_NoBearer(t *testing.T) {
	r := newProtectedRouter(nil)
	assert.Equal(t, http.StatusUnauthorized, doProtected(r, "Token abc123", ""))
}

func TestAuth_InvalidToken(t *testing.T) {
	r := newProtectedRouter(nil)
	assert.Equal(t, http.StatusUnauthorized, doProtected(r, "Bearer notavalidtoken", ""))
}

func TestAuth_ValidToken(t *testing.T) {
	r := newProtectedRouter(nil)
	token, err := GenerateToken(42, "secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doProtected(r, "Bearer "+token, ""))
}

func TestAuth_QueryToken(t *testing.T) {
	r := newProtectedRouter(nil)
	token, err := GenerateToken(42, "secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doProtected(r, "", token))
}

func TestAuth_NonPositiveMember(t *testing.T) {
	r := newProtectedRouter(nil)
	token, err := GenerateToken(0, "secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doProtected(r, "Bearer "+token, ""))
}

func TestAuth_InactiveMember(t *testing.T) {
	r := newProtectedRouter(stubMembers{active: map[int64]bool{42: true}})
	ok, err := GenerateToken(42, "secret", time.Hour)
	require.NoError(t, err)
	gone, err := GenerateToken(43, "secret", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, doProtected(r, "Bearer "+ok, ""))
	assert.Equal(t, http.StatusUnauthorized, doProtected(r, "Bearer "+gone, ""))
}

func TestAuth_DirectoryError(t *testing.T) {
	r := newProtectedRouter(stubMembers{err: errors.New("db down")})
	token, err := GenerateToken(42, "secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, doProtected(r, "Bearer "+token, ""))
}

func TestAuth_SetsMemberIDInContext(t *testing.T) {
	var got int64
	r := gin.New()
	r.Use(Auth(testSec, nil))
	r.GET("/me", func(ctx *gin.Context) {
		got = GetMemberID(ctx)
		ctx.Status(http.StatusOK)
	})

	token, err := GenerateToken(42, "secret", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), got)
}

func TestGetMemberID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, int64(0), GetMemberID(c))
}

func TestGetMemberID_Present(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(MemberIDKey, int64(99))
	assert.Equal(t, int64(99), GetMemberID(c))
}

func TestRecovery_CatchesPanic(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	r := gin.New()
	r.Use(TraceID())
	r.Use(Recovery(logger))
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), w.Header().Get(TraceIDHeader))
}

func TestRecovery_NoPanic_PassesThrough(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	r := gin.New()
	r.Use(Recovery(logger))
	r.GET("/ok", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogger_RequestLogged(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	r := gin.New()
	r.Use(TraceID())
	r.Use(Logger(logger))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogger_ErrorResponse(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	r := gin.New()
	r.Use(Logger(logger))
	r.GET("/fail", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
