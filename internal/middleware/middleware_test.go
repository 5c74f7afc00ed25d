package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type staticValidator map[string]*models.JWTClaims

func (v staticValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Wrap(errors.New("bad token"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
}

type observedRequest struct {
	method, path string
	status       int
}

type recordingObserver struct {
	seen []observedRequest
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.seen = append(r.seen, observedRequest{method: method, path: path, status: status})
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator := staticValidator{
		"admin-token":  {UserID: "u1", Role: models.RoleAdmin},
		"viewer-token": {UserID: "u2", Role: models.RoleViewer},
	}
	router := gin.New()
	router.GET("/schedules/:id", JWT(validator), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/schedules/generate", JWT(validator), RequireRoles(models.RoleAdmin, models.RoleCoordinator), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	router.GET("/optional", OptionalJWT(validator), func(c *gin.Context) {
		if _, ok := c.Get(ContextUserKey); ok {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusNoContent)
	})
	return router
}

func request(router http.Handler, method, target, token string) int {
	req, _ := http.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestJWTAndRBAC(t *testing.T) {
	router := newAuthRouter()

	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodGet, "/schedules/s1", ""))
	assert.Equal(t, http.StatusUnauthorized, request(router, http.MethodGet, "/schedules/s1", "nope"))
	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "/schedules/s1", "viewer-token"))
	assert.Equal(t, http.StatusForbidden, request(router, http.MethodPost, "/schedules/generate", "viewer-token"))
	assert.Equal(t, http.StatusCreated, request(router, http.MethodPost, "/schedules/generate", "admin-token"))
}

func TestRequireRolesNamesAllowedRoles(t *testing.T) {
	router := newAuthRouter()
	req, _ := http.NewRequest(http.MethodPost, "/schedules/generate", nil)
	req.Header.Set("Authorization", "Bearer viewer-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "requires role ADMIN or COORDINATOR")

	// Without JWT in front the guard has no claims to check.
	bare := gin.New()
	bare.POST("/x", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, request(bare, http.MethodPost, "/x", ""))
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	router := newAuthRouter()
	req, _ := http.NewRequest(http.MethodGet, "/schedules/s1", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization header")
}

func TestOptionalJWT(t *testing.T) {
	router := newAuthRouter()
	assert.Equal(t, http.StatusNoContent, request(router, http.MethodGet, "/optional", ""))
	assert.Equal(t, http.StatusNoContent, request(router, http.MethodGet, "/optional", "nope"))
	assert.Equal(t, http.StatusOK, request(router, http.MethodGet, "/optional", "admin-token"))
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/schedules/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	request(router, http.MethodGet, "/schedules/abc", "")
	request(router, http.MethodGet, "/nowhere", "")

	require.Len(t, observer.seen, 2)
	assert.Equal(t, observedRequest{method: http.MethodGet, path: "/schedules/:id", status: http.StatusOK}, observer.seen[0])
	assert.Equal(t, "unmatched", observer.seen[1].path)
	assert.Equal(t, http.StatusNotFound, observer.seen[1].status)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/x", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	request(router, http.MethodGet, "/x", "")
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}
