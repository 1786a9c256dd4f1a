// Package middleware provides middleware for bridge routers.
package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/broady/bridge/wire"
)

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists the origins a cross-domain call can be made from.
	// "*" allows every origin. Default: ["*"]
	AllowedOrigins []string

	// AllowedMethods lists the methods the client may use.
	// Default: ["POST", "OPTIONS"]
	AllowedMethods []string

	// AllowedHeaders lists the request headers the client may send.
	// The API-Type and API-Method headers are always allowed.
	// Default: ["Content-Type", "Authorization"]
	AllowedHeaders []string

	// ExposedHeaders lists the response headers visible to the client.
	ExposedHeaders []string

	// AllowCredentials indicates whether the call can include credentials.
	AllowCredentials bool

	// MaxAge is how long, in seconds, a preflight result can be cached.
	// Zero leaves the header unset.
	MaxAge int
}

// DefaultCORSConfig returns a permissive configuration suitable for
// development.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
}

// CORS returns an HTTP middleware that answers preflight requests and sets
// CORS headers. Pass it to Router.WithMiddleware. A nil cfg uses
// DefaultCORSConfig.
func CORS(cfg *CORSConfig) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultCORSConfig()
	}
	defaults := DefaultCORSConfig()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = defaults.AllowedOrigins
	}
	methods := cfg.AllowedMethods
	if len(methods) == 0 {
		methods = defaults.AllowedMethods
	}
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaults.AllowedHeaders
	}
	for _, h := range []string{wire.HeaderAPIType, wire.HeaderAPIMethod} {
		if !slices.ContainsFunc(headers, func(s string) bool { return strings.EqualFold(s, h) }) {
			headers = append(slices.Clip(headers), h)
		}
	}

	wildcard := slices.Contains(origins, "*")
	allowedMethods := strings.Join(methods, ", ")
	allowedHeaders := strings.Join(headers, ", ")
	exposedHeaders := strings.Join(cfg.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if wildcard || (origin != "" && slices.Contains(origins, origin)) {
				switch {
				case origin != "" && !wildcard:
					w.Header().Set("Access-Control-Allow-Origin", origin)
				case origin != "" && cfg.AllowCredentials:
					// "*" is not allowed together with credentials.
					w.Header().Set("Access-Control-Allow-Origin", origin)
				default:
					w.Header().Set("Access-Control-Allow-Origin", "*")
				}
				if !wildcard || cfg.AllowCredentials {
					w.Header().Add("Vary", "Origin")
				}
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				if exposedHeaders != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposedHeaders)
				}
				if cfg.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
