package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/interview-progress/internal/db"
	"github.com/jonathan/interview-progress/internal/progress"
	"github.com/jonathan/interview-progress/internal/questions"
	"github.com/jonathan/interview-progress/internal/server/ratelimit"
	"github.com/jonathan/interview-progress/internal/types"
)

// busyStore reports contention on every transaction.
type busyStore struct{}

func (busyStore) BeginProgress(context.Context, uuid.UUID) (db.ProgressTx, error) {
	return nil, fmt.Errorf("begin: %w", db.ErrContention)
}

func (busyStore) GetProgress(context.Context, uuid.UUID) (*types.ProgressRecord, error) {
	return nil, nil
}

// failingGenerator always fails.
type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, types.Domain, types.Difficulty) (*types.Question, error) {
	return nil, errors.New("model unavailable")
}

type testServer struct {
	*Server
	handler http.Handler
	jwt     *JWTService
}

type testOption func(*Deps)

func withStore(store progress.Store) testOption {
	return func(d *Deps) {
		d.Progress = progress.NewService(store, progress.Config{MaxAttempts: 2})
	}
}

func withGenerator(g questions.Generator) testOption {
	return func(d *Deps) { d.Questions = g }
}

func withRateLimiter(l *ratelimit.Limiter) testOption {
	return func(d *Deps) { d.RateLimiter = l }
}

func newTestServer(t *testing.T, opts ...testOption) *testServer {
	t.Helper()
	static, err := questions.NewStaticGenerator()
	require.NoError(t, err)

	jwtService := setupTestJWTService(t, 24)
	deps := Deps{
		Progress:  progress.NewService(db.NewMemoryDB(), progress.DefaultConfig()),
		Questions: static,
		JWT:       jwtService,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	s, err := New(Config{MaxBodyBytes: 1024}, deps)
	require.NoError(t, err)
	return &testServer{Server: s, handler: s.Handler(), jwt: jwtService}
}

func (ts *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := ts.jwt.GenerateToken(userID)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestNew_RequiresDependencies(t *testing.T) {
	static, err := questions.NewStaticGenerator()
	require.NoError(t, err)
	svc := progress.NewService(db.NewMemoryDB(), progress.DefaultConfig())
	jwtService := setupTestJWTService(t, 1)

	_, err = New(Config{}, Deps{Questions: static, JWT: jwtService})
	assert.Error(t, err)
	_, err = New(Config{}, Deps{Progress: svc, JWT: jwtService})
	assert.Error(t, err)
	_, err = New(Config{}, Deps{Progress: svc, Questions: static})
	assert.Error(t, err)

	s, err := New(Config{}, Deps{Progress: svc, Questions: static, JWT: jwtService})
	require.NoError(t, err)
	assert.Equal(t, ":8080", s.httpServer.Addr)
	assert.Equal(t, int64(DefaultMaxBodyBytes), s.cfg.MaxBodyBytes)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodOptions, "/progress", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestUpdateProgress_Unauthenticated(t *testing.T) {
	ts := newTestServer(t)

	for name, token := range map[string]string{"no token": "", "bad token": "garbage"} {
		t.Run(name, func(t *testing.T) {
			// Auth is checked before the payload, so a bad body still yields 401.
			w := ts.do(http.MethodPost, "/progress", token, `{"domain": "cooking"}`)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, "unauthenticated", resp.Kind)
			assert.False(t, resp.Retryable)
		})
	}
}

func TestUpdateProgress_InvalidArgument(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, uuid.New())

	tests := []struct {
		name   string
		body   string
		reason string
		field  string
	}{
		{"empty body", "", "missing_payload", ""},
		{"null body", "null", "missing_payload", ""},
		{"not json", "{domain", "malformed_payload", ""},
		{"unknown domain", `{"domain": "cooking", "difficulty": "beginner", "isCorrect": true}`, "invalid_domain", "domain"},
		{"missing domain", `{"difficulty": "beginner", "isCorrect": true}`, "invalid_domain", "domain"},
		{"domain before difficulty", `{"domain": "x", "difficulty": "y", "isCorrect": "z"}`, "invalid_domain", "domain"},
		{"unknown difficulty", `{"domain": "hr", "difficulty": "expert", "isCorrect": true}`, "invalid_difficulty", "difficulty"},
		{"string isCorrect", `{"domain": "hr", "difficulty": "beginner", "isCorrect": "yes"}`, "invalid_signal", "isCorrect"},
		{"missing isCorrect", `{"domain": "hr", "difficulty": "beginner"}`, "invalid_signal", "isCorrect"},
		{"too large", `{"domain": "hr", "pad": "` + strings.Repeat("x", 2048) + `"}`, "malformed_payload", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/progress", token, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := decodeError(t, w)
			assert.Equal(t, "invalid_argument", resp.Kind)
			assert.Equal(t, tt.reason, resp.Reason)
			if tt.field != "" {
				assert.Equal(t, tt.field, resp.Field)
			}
			assert.False(t, resp.Retryable)
		})
	}

	// Rejected requests never create a record.
	w := ts.do(http.MethodGet, "/progress", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got types.GetProgressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 0, got.Data.TotalQuestions)
}

func TestUpdateProgress_EscalatesAfterTenCorrect(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, uuid.New())
	body := `{"domain": "technical", "difficulty": "beginner", "isCorrect": true}`

	for i := 1; i <= 9; i++ {
		w := ts.do(http.MethodPost, "/progress", token, body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := ts.do(http.MethodPost, "/progress", token, body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.UpdateProgressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "intermediate")
	assert.Equal(t, 10, resp.Data.TotalQuestions)
	assert.Equal(t, 10, resp.Data.CorrectAnswers)
	assert.Equal(t, types.DomainProgress{
		TotalQuestions:    10,
		CorrectAnswers:    10,
		CurrentDifficulty: types.DifficultyIntermediate,
	}, resp.Data.DomainProgress[types.DomainTechnical])

	// The wire format uses the camelCase field names.
	assert.Contains(t, w.Body.String(), `"currentDifficulty":"intermediate"`)
	assert.Contains(t, w.Body.String(), `"message"`)
}

func TestUpdateProgress_PlainMessageWithoutEscalation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, uuid.New())

	w := ts.do(http.MethodPost, "/progress", token, `{"domain": "hr", "difficulty": "beginner", "isCorrect": false}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.UpdateProgressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Progress updated successfully", resp.Message)
	assert.Equal(t, 1, resp.Data.TotalQuestions)
	assert.Equal(t, 0, resp.Data.CorrectAnswers)
}

func TestUpdateProgress_StoreContention(t *testing.T) {
	ts := newTestServer(t, withStore(busyStore{}))
	token := ts.token(t, uuid.New())

	w := ts.do(http.MethodPost, "/progress", token, `{"domain": "hr", "difficulty": "beginner", "isCorrect": true}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	resp := decodeError(t, w)
	assert.Equal(t, "store_contention", resp.Kind)
	assert.True(t, resp.Retryable)
}

func TestGetProgress(t *testing.T) {
	ts := newTestServer(t)
	user := uuid.New()
	token := ts.token(t, user)

	w := ts.do(http.MethodGet, "/progress", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/progress", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"totalQuestions":0,"correctAnswers":0,"domainProgress":{}}}`, w.Body.String())

	ts.do(http.MethodPost, "/progress", token, `{"domain": "marketing", "difficulty": "beginner", "isCorrect": true}`)
	w = ts.do(http.MethodGet, "/progress", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.GetProgressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.DomainProgress[types.DomainMarketing].TotalQuestions)

	// Another user's token sees only their own record.
	w = ts.do(http.MethodGet, "/progress", ts.token(t, uuid.New()), "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Data.TotalQuestions)
}

func TestNextQuestion(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, uuid.New())

	w := ts.do(http.MethodPost, "/questions/next", "", `{"domain": "technical"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/questions/next", token, `{"domain": "cooking"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "domain", decodeError(t, w).Field)

	w = ts.do(http.MethodPost, "/questions/next", token, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/questions/next", token, `{"domain": "technical"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp types.NextQuestionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.DifficultyBeginner, resp.Data.Difficulty)
	assert.NotEmpty(t, resp.Data.Prompt)

	for i := 0; i < 10; i++ {
		ts.do(http.MethodPost, "/progress", token, `{"domain": "technical", "difficulty": "beginner", "isCorrect": true}`)
	}

	w = ts.do(http.MethodPost, "/questions/next", token, `{"domain": "technical"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.DifficultyIntermediate, resp.Data.Difficulty)

	w = ts.do(http.MethodPost, "/questions/next", token, `{"domain": "hr"}`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.DifficultyBeginner, resp.Data.Difficulty, "domains escalate independently")
}

func TestNextQuestion_GeneratorFailure(t *testing.T) {
	ts := newTestServer(t, withGenerator(failingGenerator{}))
	w := ts.do(http.MethodPost, "/questions/next", ts.token(t, uuid.New()), `{"domain": "hr"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.True(t, decodeError(t, w).Retryable)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewLimiter(&ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		EndpointConfigs: []ratelimit.EndpointConfig{
			{Path: "/progress", Method: http.MethodPost, Limit: 1, Window: time.Minute},
		},
	})
	t.Cleanup(limiter.Stop)

	ts := newTestServer(t, withRateLimiter(limiter))
	token := ts.token(t, uuid.New())
	body := `{"domain": "hr", "difficulty": "beginner", "isCorrect": true}`

	w := ts.do(http.MethodPost, "/progress", token, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = ts.do(http.MethodPost, "/progress", token, body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = ts.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ts := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
