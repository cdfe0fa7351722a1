package middleware

import "net/http"

// DefaultMaxBodyBytes はリクエストボディの既定上限（1 MiB）。
const DefaultMaxBodyBytes int64 = 1 << 20

// NewBodyLimitMiddleware はリクエストボディをmaxBytesに制限するミドルウェアを返す。
// 超過分の読み取りは*http.MaxBytesErrorで失敗する。
func NewBodyLimitMiddleware(maxBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
