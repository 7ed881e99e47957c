package i18n

import (
	"net/http"
)

// Middleware extracts locale from the Accept-Language header and adds it
// to the request context
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acceptLang := r.Header.Get("Accept-Language")
		locale := ParseAcceptLanguage(acceptLang)

		ctx := WithLocale(r.Context(), locale)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
