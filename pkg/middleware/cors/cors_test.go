package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/schedules/:id/export", func(c *gin.Context) {
		c.Header("Content-Disposition", `attachment; filename="t.csv"`)
		c.Status(http.StatusOK)
	})
	return r
}

func do(r http.Handler, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/schedules/s1/export", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSAllowList(t *testing.T) {
	r := newRouter("https://planner.example/")

	w := do(r, http.MethodGet, "https://planner.example", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://planner.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	w = do(r, http.MethodGet, "https://evil.example", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodOptions, "https://evil.example", true)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSWildcardHasNoCredentials(t *testing.T) {
	r := newRouter()

	w := do(r, http.MethodGet, "https://any.example", false)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter("https://planner.example")

	w := do(r, http.MethodOptions, "https://planner.example", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, allowedMethods, w.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCORSSameOriginPassesThrough(t *testing.T) {
	r := newRouter("https://planner.example")

	w := do(r, http.MethodGet, "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
}
