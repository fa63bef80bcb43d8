// Package shield provides the HTTP middleware stack in front of the domfinder
// form: security headers, form body limits, request tracing, flash messages,
// and HEAD method handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(64 * 1024) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"net/http"
)

type contextKey string

const (
	// LoggerKey is the context key for the per-request structured logger.
	LoggerKey contextKey = "shield_logger"

	// FlashKey is the context key for flash messages.
	FlashKey contextKey = "shield_flash"
)

// FlashMessage represents a one-time notification shown to the user.
type FlashMessage struct {
	Type    string // "success" or "error"
	Message string
}

// GetFlash retrieves the flash message from the request context.
func GetFlash(ctx context.Context) *FlashMessage {
	v, _ := ctx.Value(FlashKey).(*FlashMessage)
	return v
}

// DefaultStack returns the middleware stack for the form service, ordered
// HeadToGet → SecurityHeaders → MaxFormBody → TraceID → Flash.
// maxFormBytes <= 0 falls back to 1 MiB.
func DefaultStack(maxFormBytes int64) []func(http.Handler) http.Handler {
	if maxFormBytes <= 0 {
		maxFormBytes = 1 << 20
	}
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxFormBody(maxFormBytes),
		TraceID,
		Flash,
	}
}
