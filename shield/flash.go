// CLAUDE:SUMMARY One-shot flash messages carried in a short-lived cookie across the redirect back to the form.
package shield

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const flashCookie = "flash"

// Flash moves a pending flash cookie into the request context (FlashKey)
// and expires it, so the message shows exactly once.
func Flash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(flashCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

		ctx := context.WithValue(r.Context(), FlashKey, parseFlash(cookie.Value))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseFlash decodes "type:message". Unknown or missing types read as errors.
func parseFlash(raw string) *FlashMessage {
	raw, _ = url.QueryUnescape(raw)
	kind, msg, ok := strings.Cut(raw, ":")
	if !ok || (kind != "success" && kind != "error") {
		return &FlashMessage{Type: "error", Message: raw}
	}
	return &FlashMessage{Type: kind, Message: msg}
}

// SetFlash queues a message for the next page the browser loads.
func SetFlash(w http.ResponseWriter, flashType, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(flashType + ":" + message),
		Path:     "/",
		MaxAge:   10,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
