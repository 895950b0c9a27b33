package middleware

import (
	"context"
	"net/http"

	"github.com/soaringjerry/qforms/internal/utils"
)

type ctxKey int

const localeKey ctxKey = 1

// SupportedLocales are the languages error messages are translated into.
var SupportedLocales = []string{"en", "es"}

const defaultLocale = "en"

// LocaleMiddleware picks the response language from ?lang= or
// Accept-Language, stores it in the request context and announces it in
// Content-Language.
func LocaleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := utils.DetermineLocale(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), SupportedLocales, defaultLocale)
		w.Header().Set("Content-Language", locale)
		w.Header().Add("Vary", "Accept-Language")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeKey, locale)))
	})
}

func LocaleFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(localeKey).(string); ok && s != "" {
		return s
	}
	return defaultLocale
}
