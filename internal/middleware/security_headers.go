package middleware

import "net/http"

// securityHeaders はすべてのレスポンスに付与するヘッダー。
// JSONのみを返すAPIのため、CSPは全リソースを拒否し、レスポンスはキャッシュさせない。
var securityHeaders = [...]struct{ name, value string }{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
}

// NewSecurityHeadersMiddleware はセキュリティ関連のレスポンスヘッダーを付与するミドルウェアを返す。
// ハンドラーが同名のヘッダーを設定した場合はそちらが優先される。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, sh := range securityHeaders {
				h.Set(sh.name, sh.value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
