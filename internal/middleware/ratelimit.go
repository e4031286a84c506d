package middleware

import (
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/zhouzirui/ai-collective/backend/pkg/utils"
)

// RateLimit 使用令牌桶限制请求频率，超限返回 429
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow() {
				retry := 1
				if l := limiter.Limit(); l > 0 && l != rate.Inf {
					retry = int(math.Ceil(1 / float64(l)))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				utils.RespondError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
