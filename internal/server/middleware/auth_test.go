package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/interview-progress/internal/types"
)

// testTokenValidator is a test implementation of TokenValidator for unit tests.
type testTokenValidator struct {
	validTokens map[string]uuid.UUID
}

func newTestTokenValidator() *testTokenValidator {
	return &testTokenValidator{validTokens: make(map[string]uuid.UUID)}
}

func (v *testTokenValidator) addValidToken(token string, userID uuid.UUID) {
	v.validTokens[token] = userID
}

func (v *testTokenValidator) ValidateToken(tokenString string) (UserIDGetter, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token string is empty")
	}
	userID, ok := v.validTokens[tokenString]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return &testClaims{userID: userID}, nil
}

type testClaims struct {
	userID uuid.UUID
}

func (c *testClaims) GetUserID() uuid.UUID {
	return c.userID
}

// captureHandler records whether it ran and which user it saw.
type captureHandler struct {
	called bool
	userID uuid.UUID
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.userID = UserIDOrNil(r)
	w.WriteHeader(http.StatusOK)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	validator := newTestTokenValidator()
	userID := uuid.New()
	validator.addValidToken("valid-test-token-123", userID)

	for _, header := range []string{"Bearer valid-test-token-123", "bearer valid-test-token-123", "BEARER   valid-test-token-123"} {
		t.Run(header, func(t *testing.T) {
			h := &captureHandler{}
			req := httptest.NewRequest(http.MethodGet, "/progress", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()

			AuthMiddleware(validator)(h).ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, h.called)
			assert.Equal(t, userID, h.userID)
		})
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	validator := newTestTokenValidator()
	validator.addValidToken("nil-user", uuid.Nil)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no scheme", "valid-test-token-123"},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"bearer without token", "Bearer"},
		{"too many parts", "Bearer a b"},
		{"unknown token", "Bearer not-a-token"},
		{"token without user", "Bearer nil-user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &captureHandler{}
			req := httptest.NewRequest(http.MethodGet, "/progress", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			AuthMiddleware(validator)(h).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, h.called)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body types.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "Unauthorized", body.Error)
			assert.Equal(t, "unauthenticated", body.Kind)
			assert.False(t, body.Retryable)
		})
	}
}

func TestIdentifyMiddleware(t *testing.T) {
	validator := newTestTokenValidator()
	userID := uuid.New()
	validator.addValidToken("good", userID)

	t.Run("valid token sets user", func(t *testing.T) {
		h := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/progress", nil)
		req.Header.Set("Authorization", "Bearer good")
		IdentifyMiddleware(validator)(h).ServeHTTP(httptest.NewRecorder(), req)
		assert.True(t, h.called)
		assert.Equal(t, userID, h.userID)
	})

	t.Run("anonymous request passes through", func(t *testing.T) {
		h := &captureHandler{}
		req := httptest.NewRequest(http.MethodPost, "/progress", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()
		IdentifyMiddleware(validator)(h).ServeHTTP(w, req)
		assert.True(t, h.called)
		assert.Equal(t, uuid.Nil, h.userID)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestGetUserID(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := GetUserID(req)
	assert.Error(t, err)
	assert.Equal(t, uuid.Nil, UserIDOrNil(req))

	wrongType := req.WithContext(context.WithValue(req.Context(), userIDKey, "not-a-uuid"))
	_, err = GetUserID(wrongType)
	assert.Error(t, err)

	withUser := req.WithContext(WithUserID(req.Context(), userID))
	got, err := GetUserID(withUser)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
	assert.Equal(t, userID, UserIDOrNil(withUser))
}
