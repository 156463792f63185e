package middleware

import "net/http"

// SecurityHeadersConfig selects between the strict production policy and
// the looser development one.
type SecurityHeadersConfig struct {
	Env string
}

// SecurityHeaders sets the browser security headers on every response.
// The set is fixed per environment, so it is assembled once when the
// middleware is built; only HSTS depends on the individual request.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	prod := config.Env == "production"
	static := staticHeaders(prod)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range static {
				h.Set(name, value)
			}

			// Browsers ignore HSTS over plain HTTP, so only send it when
			// the request arrived on HTTPS (directly or via the proxy).
			if prod && (r.Header.Get("X-Forwarded-Proto") == "https" || r.URL.Scheme == "https") {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func staticHeaders(prod bool) map[string]string {
	headers := map[string]string{
		"X-Frame-Options":            "DENY",
		"X-Content-Type-Options":     "nosniff",
		"X-XSS-Protection":           "1; mode=block",
		"Referrer-Policy":            "strict-origin-when-cross-origin",
		"X-DNS-Prefetch-Control":     "off",
		"Cross-Origin-Opener-Policy": "same-origin",
		"Permissions-Policy": "accelerometer=(), camera=(), geolocation=(), " +
			"gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()",
	}

	if prod {
		// connect-src carries wss: for the notification feed socket;
		// img-src allows https: for magazine cover CDNs.
		headers["Content-Security-Policy"] = "default-src 'self'; " +
			"script-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data: https:; " +
			"font-src 'self'; " +
			"connect-src 'self' wss:; " +
			"frame-ancestors 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'"
		headers["Cross-Origin-Embedder-Policy"] = "require-corp"
	} else {
		// Development stays loose enough for hot reload and local tooling.
		headers["Content-Security-Policy"] = "default-src 'self' http: https: ws:; " +
			"script-src 'self' 'unsafe-inline' 'unsafe-eval' http: https: ws:; " +
			"style-src 'self' 'unsafe-inline' http: https:; " +
			"img-src 'self' data: https: http:; " +
			"font-src 'self' data: http: https:; " +
			"connect-src 'self' http: https: ws: wss:; " +
			"frame-ancestors 'self'; " +
			"base-uri 'self'; " +
			"form-action 'self'"
		headers["Cross-Origin-Embedder-Policy"] = "credentialless"
	}

	return headers
}
