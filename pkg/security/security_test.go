package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(mw)
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func doRequest(router *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/ping", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORSWhitelist(t *testing.T) {
	router := newRouter(CORS([]string{"http://localhost:3000"}))

	// 白名单内的来源被回显并允许凭据
	w := doRequest(router, http.MethodGet, "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	// 名单外的来源不放行
	w = doRequest(router, http.MethodGet, "http://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))

	// 预检请求直接204结束
	w = doRequest(router, http.MethodOptions, "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCORSWildcard(t *testing.T) {
	router := newRouter(CORS([]string{"*"}))

	// 通配模式放行任意来源，但不带凭据
	w := doRequest(router, http.MethodGet, "http://anywhere.example")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestSecureHeaders(t *testing.T) {
	router := newRouter(Secure())

	w := doRequest(router, http.MethodGet, "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}

func TestRateLimiter(t *testing.T) {
	router := newRouter(RateLimiter(3, time.Minute))

	for i := 0; i < 3; i++ {
		w := doRequest(router, http.MethodGet, "")
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := doRequest(router, http.MethodGet, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestVisitorStoreEviction(t *testing.T) {
	store := newVisitorStore(10, time.Minute)
	store.allow("1.2.3.4")

	// 过了TTL之后的访问会清掉过期条目
	store.mu.Lock()
	store.visitors["1.2.3.4"].lastSeen = time.Now().Add(-4 * time.Minute)
	store.nextSweep = time.Time{}
	store.mu.Unlock()

	store.allow("5.6.7.8")

	store.mu.Lock()
	_, stale := store.visitors["1.2.3.4"]
	store.mu.Unlock()
	assert.False(t, stale)
}
