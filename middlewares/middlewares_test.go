package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"tobbedansen/utils"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func get(s *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	s.ServeHTTP(w, req)
	return w
}

/* -------------------- ResponseCache -------------------- */

func TestResponseCache_MissThenHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, rdb := newRedis(t)

	calls := 0
	s := gin.New()
	s.Use(ResponseCache(rdb, 30*time.Second))
	s.GET("/api/event/current", func(c *gin.Context) {
		calls++
		c.JSON(200, gin.H{"id": "evt-2024"})
	})

	w1 := get(s, "/api/event/current", nil)
	if w1.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("want MISS, got %q", w1.Header().Get("X-Cache"))
	}

	w2 := get(s, "/api/event/current", nil)
	if w2.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("want HIT, got %q", w2.Header().Get("X-Cache"))
	}
	if w2.Body.String() != w1.Body.String() {
		t.Fatalf("cached body mismatch: %q vs %q", w2.Body.String(), w1.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler should run once, ran %d times", calls)
	}
}

func TestResponseCache_SkipsErrorsAndUncachedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, rdb := newRedis(t)

	s := gin.New()
	s.Use(ResponseCache(rdb, 30*time.Second))
	s.GET("/api/vessel-types", func(c *gin.Context) { c.JSON(500, gin.H{"message": "boom"}) })
	s.GET("/api/registration", func(c *gin.Context) { c.String(501, "nope") })

	get(s, "/api/vessel-types", nil)
	get(s, "/api/registration", nil)
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("nothing should be cached, got %v", keys)
	}
}

func TestResponseCache_InvalidatedByPurge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, rdb := newRedis(t)
	inv := utils.NewCacheInvalidator(rdb)

	s := gin.New()
	s.Use(ResponseCache(rdb, 30*time.Second))
	s.GET("/api/event/current", func(c *gin.Context) { c.JSON(200, nil) })

	get(s, "/api/event/current", nil)
	if w := get(s, "/api/event/current", nil); w.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("want HIT before purge")
	}
	inv.PurgeEvents(context.Background())
	if w := get(s, "/api/event/current", nil); w.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("want MISS after purge, got %q", w.Header().Get("X-Cache"))
	}
}

/* -------------------- Quota -------------------- */

func TestQuota_Exceed429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, rdb := newRedis(t)

	s := gin.New()
	s.Use(Quota(rdb, QuotaRule{
		Limit:  2,
		Window: time.Hour,
		KeyFn:  func(c *gin.Context) string { return "quota:registration:ip:" + c.ClientIP() },
	}))
	s.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	for i := 0; i < 2; i++ {
		if w := get(s, "/x", nil); w.Code != 200 {
			t.Fatalf("request %d: unexpected %d", i, w.Code)
		}
	}
	if w := get(s, "/x", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d; body=%s", w.Code, w.Body.String())
	}
}

func TestQuota_WindowExpires(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, rdb := newRedis(t)

	s := gin.New()
	s.Use(Quota(rdb, QuotaRule{Limit: 1, Window: time.Minute, KeyFn: func(*gin.Context) string { return "q" }}))
	s.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	get(s, "/x", nil)
	if w := get(s, "/x", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", w.Code)
	}
	mr.FastForward(2 * time.Minute)
	if w := get(s, "/x", nil); w.Code != 200 {
		t.Fatalf("want 200 after window, got %d", w.Code)
	}
}

func TestQuota_RedisDownLetsThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	s := gin.New()
	s.Use(Quota(rdb, QuotaRule{Limit: 0, Window: time.Minute, KeyFn: func(*gin.Context) string { return "q" }}))
	s.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	if w := get(s, "/x", nil); w.Code != 200 {
		t.Fatalf("want 200 while redis is down, got %d", w.Code)
	}
}

/* -------------------- RateLimiter -------------------- */

func TestRateLimiter_429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(LimiterConfig{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	t.Cleanup(rl.Close)

	s := gin.New()
	s.Use(rl.Middleware(func(c *gin.Context) string { return "k" }))
	s.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	if w := get(s, "/x", nil); w.Code != 200 {
		t.Fatalf("first request: want 200, got %d", w.Code)
	}
	w := get(s, "/x", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(LimiterConfig{RPS: 1, Burst: 1, IdleTTL: time.Minute})
	t.Cleanup(rl.Close)

	s := gin.New()
	s.Use(rl.Middleware(func(c *gin.Context) string { return c.GetHeader("X-Key") }))
	s.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	if w := get(s, "/x", map[string]string{"X-Key": "a"}); w.Code != 200 {
		t.Fatalf("key a: want 200, got %d", w.Code)
	}
	if w := get(s, "/x", map[string]string{"X-Key": "b"}); w.Code != 200 {
		t.Fatalf("key b: want 200, got %d", w.Code)
	}
}

/* -------------------- Authenticate -------------------- */

func authServer(tokens *utils.Tokens) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(tokens))
	r.GET("/p", func(c *gin.Context) { c.JSON(200, gin.H{"adminId": c.GetInt64("adminId")}) })
	return r
}

func TestAuthenticate_MissingToken_401(t *testing.T) {
	r := authServer(utils.NewTokens("s", time.Hour))
	if w := get(r, "/p", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
}

func TestAuthenticate_InvalidToken_401(t *testing.T) {
	r := authServer(utils.NewTokens("s", time.Hour))
	if w := get(r, "/p", map[string]string{"Authorization": "this-is-not-a-jwt"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
}

func TestAuthenticate_BearerToken_200(t *testing.T) {
	tokens := utils.NewTokens("s", time.Hour)
	tok, err := tokens.Generate("bestuur@tobbedansen.be", 3)
	if err != nil {
		t.Fatalf("gen: %v", err)
	}
	r := authServer(tokens)

	for _, h := range []string{tok, "Bearer " + tok} {
		w := get(r, "/p", map[string]string{"Authorization": h})
		if w.Code != 200 {
			t.Fatalf("want 200 for %q, got %d", h, w.Code)
		}
		if w.Body.String() != `{"adminId":3}` {
			t.Fatalf("unexpected body %s", w.Body.String())
		}
	}
}
