package aspects

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth"
	"github.com/didip/tollbooth/limiter"
	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openbid/config"
)

// NewLimiter builds the per client limiter shared by every rate limited route, or nil when
// rate limiting is off.
func NewLimiter(cfg config.RateLimit) *limiter.Limiter {
	if !cfg.Enabled {
		return nil
	}
	return tollbooth.NewLimiter(cfg.RequestsPerSecond, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
}

// RateLimited answers 429 once a client exceeds the limiter's budget. A nil limiter lets every
// request through.
func RateLimited(f httprouter.Handle, lmt *limiter.Limiter) httprouter.Handle {
	if lmt == nil {
		return f
	}

	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		tollbooth.LimitFuncHandler(lmt, func(w http.ResponseWriter, r *http.Request) {
			f(w, r, params)
		}).ServeHTTP(w, r)
	}
}
