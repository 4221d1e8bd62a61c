package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *Service {
	return NewService(Config{
		LoginID:  "operator",
		Password: "s3cret",
		Secret:   "test-signing-key",
		TokenTTL: time.Hour,
	})
}

func TestService_Login(t *testing.T) {
	svc := newService()

	token, err := svc.Login("operator", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", subject)
}

func TestService_Login_BadCredentials(t *testing.T) {
	svc := newService()

	tests := []struct {
		name     string
		loginID  string
		password string
	}{
		{name: "wrong password", loginID: "operator", password: "nope"},
		{name: "wrong login", loginID: "intruder", password: "s3cret"},
		{name: "empty", loginID: "", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(tt.loginID, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestService_Verify_Expired(t *testing.T) {
	issued := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	svc := newService().WithClock(func() time.Time { return issued })

	token, err := svc.Login("operator", "s3cret")
	require.NoError(t, err)

	// Move past the TTL.
	svc.WithClock(func() time.Time { return issued.Add(2 * time.Hour) })

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_Verify_WrongKey(t *testing.T) {
	token, err := newService().Login("operator", "s3cret")
	require.NoError(t, err)

	other := NewService(Config{Secret: "different-key"})

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	svc := newService()

	token, err := svc.Login("operator", "s3cret")
	require.NoError(t, err)

	var gotSubject string

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "valid token", authHeader: "Bearer " + token, wantStatus: http.StatusNoContent},
		{name: "missing header", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", authHeader: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", authHeader: "Bearer garbage", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSubject = ""

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, "operator", gotSubject)
			}
		})
	}
}
