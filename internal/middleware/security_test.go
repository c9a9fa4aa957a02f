package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// serveWithHeaders mounts SecurityHeadersMiddleware in front of a JSON
// endpoint shaped like the context surface and returns the recorder.
func serveWithHeaders(cfg SecurityHeadersConfig) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(SecurityHeadersMiddleware(cfg))
	r.GET("/api/v1/context", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"active_group_id": "g1"})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/context", nil))
	return w
}

// ---------------------------------------------------------------------------
// Presets
// ---------------------------------------------------------------------------

func TestAPISecurityHeadersConfig_Preset(t *testing.T) {
	cfg := APISecurityHeadersConfig()

	if !cfg.EnableHSTS || cfg.HSTSMaxAge != 31536000 || !cfg.HSTSIncludeSubdomains {
		t.Errorf("API preset HSTS = %+v, want enabled for 1 year with subdomains", cfg)
	}
	if cfg.HSTSPreload {
		t.Error("API preset opted into HSTS preload; that is an operator decision")
	}
	if cfg.EnableXSSProtection {
		t.Error("API preset enables X-XSS-Protection; the JSON surface serves no HTML")
	}
	if cfg.ContentSecurityPolicy != "default-src 'none'; frame-ancestors 'none'" {
		t.Errorf("API preset CSP = %q, want the deny-everything policy", cfg.ContentSecurityPolicy)
	}
	if cfg.ReferrerPolicy != "no-referrer" {
		t.Errorf("API preset ReferrerPolicy = %q, want no-referrer", cfg.ReferrerPolicy)
	}
	if cfg.PermissionsPolicy != "" {
		t.Errorf("API preset PermissionsPolicy = %q, want empty", cfg.PermissionsPolicy)
	}
}

func TestDefaultSecurityHeadersConfig_Preset(t *testing.T) {
	cfg := DefaultSecurityHeadersConfig()

	if !cfg.EnableHSTS || cfg.HSTSMaxAge != 31536000 {
		t.Errorf("default preset HSTS = %+v, want enabled for 1 year", cfg)
	}
	if cfg.FrameOptionsValue != "DENY" {
		t.Errorf("FrameOptionsValue = %q, want DENY", cfg.FrameOptionsValue)
	}
	if !cfg.EnableContentTypeOptions || !cfg.EnableXSSProtection {
		t.Error("default preset should enable nosniff and the legacy XSS filter")
	}
	if !strings.Contains(cfg.ContentSecurityPolicy, "default-src 'self'") {
		t.Errorf("CSP = %q, want a same-origin default-src for the bundled client", cfg.ContentSecurityPolicy)
	}
	if !strings.Contains(cfg.ContentSecurityPolicy, "connect-src 'self'") {
		t.Errorf("CSP = %q, want connect-src 'self' so the client can call the API", cfg.ContentSecurityPolicy)
	}
	if cfg.ReferrerPolicy != "strict-origin-when-cross-origin" {
		t.Errorf("ReferrerPolicy = %q, want strict-origin-when-cross-origin", cfg.ReferrerPolicy)
	}
	for _, feature := range []string{"geolocation=()", "microphone=()", "camera=()"} {
		if !strings.Contains(cfg.PermissionsPolicy, feature) {
			t.Errorf("PermissionsPolicy = %q, want %s locked off", cfg.PermissionsPolicy, feature)
		}
	}
}

// ---------------------------------------------------------------------------
// Header emission
// ---------------------------------------------------------------------------

func TestSecurityHeadersMiddleware_APIPresetResponse(t *testing.T) {
	w := serveWithHeaders(APISecurityHeadersConfig())

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	want := map[string]string{
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"X-Frame-Options":           "DENY",
		"X-Content-Type-Options":    "nosniff",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":           "no-referrer",
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
	for _, absent := range []string{"X-XSS-Protection", "Permissions-Policy"} {
		if got := w.Header().Get(absent); got != "" {
			t.Errorf("%s = %q, want absent on the JSON surface", absent, got)
		}
	}
}

func TestSecurityHeadersMiddleware_Toggles(t *testing.T) {
	tests := []struct {
		name   string
		cfg    SecurityHeadersConfig
		header string
		want   string
	}{
		{
			name:   "hsts with preload",
			cfg:    SecurityHeadersConfig{EnableHSTS: true, HSTSMaxAge: 86400, HSTSPreload: true},
			header: "Strict-Transport-Security",
			want:   "max-age=86400; preload",
		},
		{
			name:   "hsts disabled",
			cfg:    SecurityHeadersConfig{EnableHSTS: false},
			header: "Strict-Transport-Security",
			want:   "",
		},
		{
			name:   "frame options sameorigin",
			cfg:    SecurityHeadersConfig{EnableFrameOptions: true, FrameOptionsValue: "SAMEORIGIN"},
			header: "X-Frame-Options",
			want:   "SAMEORIGIN",
		},
		{
			name:   "frame options enabled with empty value stays silent",
			cfg:    SecurityHeadersConfig{EnableFrameOptions: true, FrameOptionsValue: ""},
			header: "X-Frame-Options",
			want:   "",
		},
		{
			name:   "nosniff disabled",
			cfg:    SecurityHeadersConfig{EnableContentTypeOptions: false},
			header: "X-Content-Type-Options",
			want:   "",
		},
		{
			name:   "legacy xss filter enabled",
			cfg:    SecurityHeadersConfig{EnableXSSProtection: true},
			header: "X-XSS-Protection",
			want:   "1; mode=block",
		},
		{
			name:   "custom csp passes through verbatim",
			cfg:    SecurityHeadersConfig{ContentSecurityPolicy: "default-src 'self'"},
			header: "Content-Security-Policy",
			want:   "default-src 'self'",
		},
		{
			name:   "empty referrer policy stays silent",
			cfg:    SecurityHeadersConfig{ReferrerPolicy: ""},
			header: "Referrer-Policy",
			want:   "",
		},
		{
			name:   "permissions policy passes through verbatim",
			cfg:    SecurityHeadersConfig{PermissionsPolicy: "geolocation=()"},
			header: "Permissions-Policy",
			want:   "geolocation=()",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveWithHeaders(tt.cfg)
			if got := w.Header().Get(tt.header); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestSecurityHeadersMiddleware_IsolationHeadersAlwaysPresent(t *testing.T) {
	// Even a zero config keeps the cross-origin isolation headers: nothing
	// this service serves should be loadable from another origin.
	w := serveWithHeaders(SecurityHeadersConfig{})

	want := map[string]string{
		"X-Permitted-Cross-Domain-Policies": "none",
		"Cross-Origin-Embedder-Policy":      "require-corp",
		"Cross-Origin-Opener-Policy":        "same-origin",
		"Cross-Origin-Resource-Policy":      "same-origin",
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}

func TestBuildSecurityHeaders_OmitsDisabledEntries(t *testing.T) {
	headers := buildSecurityHeaders(SecurityHeadersConfig{})

	if len(headers) != 4 {
		t.Errorf("zero config produced %d headers, want only the 4 isolation headers: %v", len(headers), headers)
	}
	if _, ok := headers["Strict-Transport-Security"]; ok {
		t.Error("HSTS present despite being disabled")
	}
}
