package i18n

import "net/http"

// Middleware injects a localizer into every request context. A ?lang= query
// parameter switches the language and is remembered in a cookie; otherwise
// the cookie, then the configured default apply.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := defaultLang
			if q := r.URL.Query().Get("lang"); q != "" {
				lang = q
				http.SetCookie(w, &http.Cookie{Name: "lang", Value: q, Path: "/"})
			} else if ck, err := r.Cookie("lang"); err == nil && ck.Value != "" {
				lang = ck.Value
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
