package i18n

import (
	"testing"
)

func TestLang(t *testing.T) {
	l := NewLocalizer("zh-CN", "en")

	if got := l.Get("en", ERROR_FILE_LOCKED); got == ERROR_FILE_LOCKED {
		t.Fatalf("expected localized message for %s, got raw key", ERROR_FILE_LOCKED)
	}
	t.Log(l.Get("zh-CN", ERROR_FILE_LOCKED))
	t.Log(l.Get("en", ERROR_INTERNAL))

	// 未注册的语言回退为 key 本身
	if got := l.Get("fr", ERROR_INTERNAL); got != ERROR_INTERNAL {
		t.Fatalf("expected raw key fallback, got %s", got)
	}
}
