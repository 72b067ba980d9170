package middleware

import "net/http"

// hstsValue はHTTPS配信時に付与するStrict-Transport-Securityの値。
const hstsValue = "max-age=63072000; includeSubDomains"

// SecurityHeadersConfig はセキュリティヘッダーミドルウェアの設定。
type SecurityHeadersConfig struct {
	// HSTS はStrict-Transport-Securityを付与するかどうか。HTTPS配信時のみ有効にする。
	HSTS bool
}

// NewSecurityHeadersMiddleware はAPIレスポンス用のセキュリティヘッダーを付与するミドルウェアを返す。
// レスポンスはJSONとリダイレクトのみのため、CSPで全リソースの読み込みとフレーム埋め込みを禁止する。
// トークンやユーザー情報を含むレスポンスがキャッシュされないようno-storeを付与する。
func NewSecurityHeadersMiddleware(config SecurityHeadersConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			if config.HSTS {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			next.ServeHTTP(w, r)
		})
	}
}
