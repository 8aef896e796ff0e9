package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"imagetag/internal/service/auth"
)

type stubParser struct{}

func (stubParser) ParseToken(token string) (*auth.Principal, error) {
	if token == "good" {
		return &auth.Principal{UserID: 1, Username: "alice"}, nil
	}
	return nil, errors.New("bad token")
}

func TestAuthMiddleware(t *testing.T) {
	var seen *auth.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(stubParser{}, next)

	tests := []struct {
		name     string
		method   string
		path     string
		cookie   string
		expected int
		user     bool
	}{
		{"public listing", http.MethodGet, "/api/images", "", http.StatusOK, false},
		{"public image file", http.MethodGet, "/images/a.jpg", "", http.StatusOK, false},
		{"public login", http.MethodPost, "/auth/login", "", http.StatusOK, false},
		{"upload anonymous", http.MethodPost, "/api/images", "", http.StatusUnauthorized, false},
		{"detect bad token", http.MethodPost, "/api/images/1/detect", "bad", http.StatusUnauthorized, false},
		{"logs anonymous", http.MethodGet, "/logs/info", "", http.StatusUnauthorized, false},
		{"detect logged in", http.MethodPost, "/api/images/1/detect", "good", http.StatusOK, true},
		{"listing logged in", http.MethodGet, "/api/images", "good", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, rr.Code)
			}
			if (seen != nil) != tt.user {
				t.Errorf("Expected principal present=%v, got %+v", tt.user, seen)
			}
		})
	}
}

func TestRateLimiter_Limit(t *testing.T) {
	limiter := NewRateLimiter(1, 2, nil)
	handler := limiter.Limit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		handler(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected [200 200 429], got %v", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	other.RemoteAddr = "10.0.0.2:5000"
	rr := httptest.NewRecorder()
	handler(rr, other)
	if rr.Code != http.StatusOK {
		t.Errorf("Other clients should have their own bucket, got %d", rr.Code)
	}
}

func TestRateLimiter_Evict(t *testing.T) {
	limiter := NewLoginRateLimiter(nil)
	limiter.getVisitor("10.0.0.1")

	limiter.evict(time.Now().Add(time.Second))

	if len(limiter.visitors) != 0 {
		t.Errorf("Expected idle visitors to be evicted, have %d", len(limiter.visitors))
	}
}

func TestGetRealIP(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.168.1.1"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies failed: %v", err)
	}

	tests := []struct {
		name     string
		remote   string
		xff      string
		realIP   string
		proxies  TrustedProxies
		expected string
	}{
		{"socket address", "192.168.1.5:1234", "", "", nil, "192.168.1.5"},
		{"untrusted peer ignores headers", "203.0.113.9:1234", "198.51.100.1", "198.51.100.2", proxies, "203.0.113.9"},
		{"no proxies configured", "10.0.0.1:1234", "198.51.100.1", "", nil, "10.0.0.1"},
		{"trusted proxy forwards", "10.0.0.1:1234", "198.51.100.1", "", proxies, "198.51.100.1"},
		{"spoofed left hop skipped", "10.0.0.1:1234", "1.2.3.4, 198.51.100.7, 10.0.0.2", "", proxies, "198.51.100.7"},
		{"real ip header", "192.168.1.1:1234", "", "198.51.100.3", proxies, "198.51.100.3"},
		{"only proxies forwarded", "10.0.0.1:1234", "10.0.0.3", "", proxies, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if ip := GetRealIP(req, tt.proxies); ip != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, ip)
			}
		})
	}
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	if _, err := ParseTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Error("Expected error for invalid proxy entry")
	}
	if _, err := ParseTrustedProxies([]string{"10.0.0.0/99"}); err == nil {
		t.Error("Expected error for invalid CIDR")
	}
}

func TestRateLimiter_IgnoresSpoofedHeaders(t *testing.T) {
	limiter := NewRateLimiter(1, 1, nil)
	handler := limiter.Limit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := []int{}
	for _, forwarded := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:5000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rr := httptest.NewRecorder()
		handler(rr, req)
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Rotating X-Forwarded-For must not reset the bucket, got %v", codes)
	}
}
