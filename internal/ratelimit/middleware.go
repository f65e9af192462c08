package ratelimit

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"evolution-gateway/internal/common/logging"
)

// rejectionBody is the JSON answered on a 429.
type rejectionBody struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// Middleware enforces the class budget for every request it wraps. A nil
// governor disables enforcement, mirroring the RATE_LIMIT_ENABLED switch.
func Middleware(g *Governor, class Class, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			decision := g.Consume(key, class)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}

			logging.Warn("Rate limit exceeded",
				logging.String("class", string(class)),
				logging.String("key", key),
				logging.String("path", r.URL.Path),
				logging.Int("retry_after", retryAfter),
			)

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(rejectionBody{
				Success:    false,
				Message:    "Too many requests. Try again later.",
				RetryAfter: retryAfter,
			})
		})
	}
}
