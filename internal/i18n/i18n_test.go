package i18n

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestResolveLocale(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		url    string
		header map[string]string
		want   string
	}{
		{"default", "/", nil, LocaleEN},
		{"query", "/?lang=zh", nil, LocaleZH},
		{"x-locale", "/", map[string]string{"X-Locale": "zh-CN"}, LocaleZH},
		{"accept-language", "/", map[string]string{"Accept-Language": "fr-FR,zh-TW;q=0.8"}, LocaleZH},
		{"unsupported", "/", map[string]string{"Accept-Language": "de-DE"}, LocaleEN},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", tc.url, nil)
			for k, v := range tc.header {
				c.Request.Header.Set(k, v)
			}
			if got := ResolveLocale(c); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestTranslateFallback(t *testing.T) {
	if got := T(LocaleZH, "error.not_found"); got != "资源不存在" {
		t.Fatalf("unexpected zh message: %s", got)
	}
	if got := T("ja-JP", "error.not_found"); got != "Resource not found" {
		t.Fatalf("expected fallback to default locale, got %s", got)
	}
	if got := T(LocaleEN, "error.unknown_key"); got != "error.unknown_key" {
		t.Fatalf("expected key fallback, got %s", got)
	}
	if got := Sprintf(LocaleEN, "error.password_min_length", 10); got != "Password must be at least 10 characters" {
		t.Fatalf("unexpected formatted message: %s", got)
	}
}

func TestMessageTablesHaveSameKeys(t *testing.T) {
	for key := range messages[LocaleEN] {
		if _, ok := messages[LocaleZH][key]; !ok {
			t.Fatalf("zh-CN missing key %s", key)
		}
	}
	if len(messages[LocaleEN]) != len(messages[LocaleZH]) {
		t.Fatalf("locale tables differ in size")
	}
}
