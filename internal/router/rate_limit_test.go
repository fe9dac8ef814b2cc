package router

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/course-referral/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateLimitedEngine(client *redis.Client, rule RateLimitRule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/auth/login", RateLimitMiddleware(client, rule, KeyByIPAndJSONField("email")), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status_code": 0})
	})
	return r
}

func postLogin(t *testing.T, r *gin.Engine, email string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"`+email+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.1:4000"
	r.ServeHTTP(w, req)
	return w
}

func TestKeyByIPAndJSONField(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(`{"email":" Agent@Example.com "}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.RemoteAddr = "1.2.3.4:5678"

	assert.Equal(t, "agent@example.com|1.2.3.4", KeyByIPAndJSONField("email")(c))

	body, err := io.ReadAll(c.Request.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Agent@Example.com")
}

func TestKeyByUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/payout-requests", nil)
	c.Request.RemoteAddr = "1.2.3.4:5678"

	assert.Equal(t, "1.2.3.4", KeyByUserID(c))
	c.Set("user_id", uint(42))
	assert.Equal(t, "user:42", KeyByUserID(c))
}

func TestRateLimitMiddlewareRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := newRateLimitedEngine(client, RateLimitRule{Prefix: "rl:login", WindowSeconds: 60, MaxRequests: 2})

	assert.Equal(t, 0, decodeStatusCode(t, postLogin(t, r, "a@example.com")))
	assert.Equal(t, 0, decodeStatusCode(t, postLogin(t, r, "a@example.com")))
	blocked := postLogin(t, r, "a@example.com")
	assert.Equal(t, 429, decodeStatusCode(t, blocked))
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	// 不同邮箱独立计数
	assert.Equal(t, 0, decodeStatusCode(t, postLogin(t, r, "b@example.com")))
	assert.True(t, mr.Exists("rl:login:a@example.com|10.0.0.1"))
}

func TestRateLimitMiddlewareLocalFallback(t *testing.T) {
	r := newRateLimitedEngine(nil, RateLimitRule{Prefix: "rl:login", WindowSeconds: 60, MaxRequests: 1})

	assert.Equal(t, 0, decodeStatusCode(t, postLogin(t, r, "a@example.com")))
	assert.Equal(t, 429, decodeStatusCode(t, postLogin(t, r, "a@example.com")))
	assert.Equal(t, 0, decodeStatusCode(t, postLogin(t, r, "b@example.com")))
}

func TestRateLimitMiddlewareDisabledRule(t *testing.T) {
	r := newRateLimitedEngine(nil, RateLimitRule{})
	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, decodeStatusCode(t, postLogin(t, r, "a@example.com")))
	}
}

func TestRuleFromConfigUsesLongerBlock(t *testing.T) {
	rule := RuleFromConfig("rl:login", config.RateLimitConfig{WindowSeconds: 300, MaxAttempts: 5, BlockSeconds: 900})
	assert.Equal(t, 900, rule.WindowSeconds)
	assert.Equal(t, 5, rule.MaxRequests)
}

func TestToInt64(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int64
		ok    bool
	}{
		{name: "int64", input: int64(10), want: 10, ok: true},
		{name: "int", input: int(11), want: 11, ok: true},
		{name: "uint8", input: uint8(12), want: 12, ok: true},
		{name: "float64", input: float64(13.9), want: 13, ok: true},
		{name: "string", input: "bad", want: 0, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := toInt64(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
