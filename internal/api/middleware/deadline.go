package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Deadline gives a long-running route its own budget: the request context
// expires after d, and the connection's read and write deadlines move out to
// match so the server-wide timeouts do not cut the request short.
func Deadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deadline := time.Now().Add(d)

			rc := http.NewResponseController(w)
			if err := rc.SetReadDeadline(deadline); err != nil {
				log.Debug().Err(err).Msg("Could not extend read deadline")
			}
			if err := rc.SetWriteDeadline(deadline); err != nil {
				log.Debug().Err(err).Msg("Could not extend write deadline")
			}

			ctx, cancel := context.WithDeadline(r.Context(), deadline)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
