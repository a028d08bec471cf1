package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"task-gravity-backend/internal/analytics"
)

func TestMiddleware(t *testing.T) {
	var seen, seenAnalytics string
	h := New(secret).Wrap(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		seenAnalytics, _ = analytics.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tok, err := GenerateToken(secret, uid, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + tok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h(rr, req)
			if rr.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rr.Code)
			}
		})
	}

	if seen != uid || seenAnalytics != uid {
		t.Fatalf("user id not propagated: %q / %q", seen, seenAnalytics)
	}
}
