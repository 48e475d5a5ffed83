package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// CORSConfig lists the browser origins allowed to call the chat API and open /ws.
type CORSConfig struct {
	Origins     []string
	Methods     []string
	Headers     []string
	Exposed     []string
	Credentials bool
	MaxAge      time.Duration
}

// DefaultCORSConfig allows the given origins, or any origin when the list is empty, to use
// the pull surface with a bearer token.
func DefaultCORSConfig(origins []string) *CORSConfig {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &CORSConfig{
		Origins:     origins,
		Methods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		Headers:     []string{"Authorization", "Content-Type", "Accept"},
		Exposed:     []string{"Content-Length"},
		Credentials: true,
		MaxAge:      24 * time.Hour,
	}
}

// OriginAllowed reports whether origin may call the API. Requests without an Origin
// header (non-browser clients) are allowed.
func (c *CORSConfig) OriginAllowed(origin string) bool {
	return origin == "" || lo.Contains(c.Origins, "*") || lo.Contains(c.Origins, origin)
}

// CORSMiddleware echoes allowed origins and answers preflights itself. Preflights from
// other origins get 403; their plain requests pass through without CORS headers.
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultCORSConfig(nil)
	}
	shared := map[string]string{
		"Access-Control-Allow-Methods":  strings.Join(config.Methods, ", "),
		"Access-Control-Allow-Headers":  strings.Join(config.Headers, ", "),
		"Access-Control-Expose-Headers": strings.Join(config.Exposed, ", "),
		"Access-Control-Max-Age":        strconv.Itoa(int(config.MaxAge.Seconds())),
	}
	if config.Credentials {
		shared["Access-Control-Allow-Credentials"] = "true"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !config.OriginAllowed(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			for k, v := range shared {
				w.Header().Set(k, v)
			}
			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
