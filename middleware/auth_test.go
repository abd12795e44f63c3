package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthenticate(t *testing.T) {
	valid := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	expired := signToken(t, testSecret, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	foreign := signToken(t, "other-secret", jwt.MapClaims{"user_id": 42})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUserID int
	}{
		{name: "anonymous passes through", header: "", wantStatus: http.StatusOK},
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusOK, wantUserID: 42},
		{name: "expired token", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUserID int
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if id, err := GetUserIDFromContext(r.Context()); err == nil {
					gotUserID = id
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/matches/1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			Authenticate(testSecret)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotUserID != tt.wantUserID {
				t.Errorf("user id = %d, want %d", gotUserID, tt.wantUserID)
			}
		})
	}
}

func TestAccessTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/matches/1?token=from-query", nil)
	if got := AccessTokenFromRequest(req); got != "from-query" {
		t.Errorf("query token = %q, want from-query", got)
	}

	req.Header.Set(AccessTokenHeader, "from-header")
	if got := AccessTokenFromRequest(req); got != "from-header" {
		t.Errorf("header token = %q, want from-header", got)
	}
}
