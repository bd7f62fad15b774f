package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_PerClientHeader(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(0.001), 2, "X-Kiosk-Client"))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	a := http.Header{"X-Kiosk-Client": {"10.0.0.1, 172.16.0.1"}}
	b := http.Header{"X-Kiosk-Client": {"10.0.0.2"}}

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", a).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", a).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/", a).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", b).Code)
}

func TestClientKey(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.0.2.7:5555"

	assert.Equal(t, "192.0.2.7", ClientKey(c, "X-Kiosk-Client"))
	c.Request.Header.Set("X-Kiosk-Client", " kiosk-2 ")
	assert.Equal(t, "kiosk-2", ClientKey(c, "X-Kiosk-Client"))
	assert.Equal(t, "192.0.2.7", ClientKey(c, ""))
}

func TestCache_HitAndInvalidate(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0

	r := gin.New()
	r.Use(Invalidate(store))
	r.GET("/guide", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.PUT("/upload", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.PUT("/broken", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	first := do(r, http.MethodGet, "/guide", nil)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := do(r, http.MethodGet, "/guide", nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	do(r, http.MethodPut, "/broken", nil)
	assert.Equal(t, "HIT", do(r, http.MethodGet, "/guide", nil).Header().Get("X-Cache"))

	do(r, http.MethodPut, "/upload", nil)
	third := do(r, http.MethodGet, "/guide", nil)
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestCache_SkipsErrors(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	r := gin.New()
	r.GET("/missing", Cache(store, time.Minute), func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "nope"})
	})

	do(r, http.MethodGet, "/missing", nil)
	assert.Equal(t, 0, store.ItemCount())
}
