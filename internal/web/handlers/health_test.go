package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockStaleChecker struct {
	mock.Mock
}

func (m *MockStaleChecker) Stale() bool {
	return m.Called().Bool(0)
}

func getHealth(h *HealthHandler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Check(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	t.Run("all services up", func(t *testing.T) {
		repo := new(MockPinger)
		store := new(MockStaleChecker)
		repo.On("Ping", mock.Anything).Return(nil)
		store.On("Stale").Return(false)

		h := NewHealthHandler(repo, store, "anthropic", slog.New(slog.DiscardHandler))
		w := getHealth(h)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t,
			`{"status":"healthy","services":{"database":"connected","catalog":"fresh","llm":"available"}}`,
			w.Body.String())
	})

	t.Run("database down degrades", func(t *testing.T) {
		repo := new(MockPinger)
		store := new(MockStaleChecker)
		repo.On("Ping", mock.Anything).Return(errors.New("connection refused"))
		store.On("Stale").Return(false)

		h := NewHealthHandler(repo, store, "anthropic", slog.New(slog.DiscardHandler))
		w := getHealth(h)

		require.Equal(t, http.StatusOK, w.Code, "degraded is reported in the body, not the status code")
		assert.JSONEq(t,
			`{"status":"degraded","services":{"database":"disconnected","catalog":"fresh","llm":"available"}}`,
			w.Body.String())
	})

	t.Run("stale catalog stays healthy", func(t *testing.T) {
		repo := new(MockPinger)
		store := new(MockStaleChecker)
		repo.On("Ping", mock.Anything).Return(nil)
		store.On("Stale").Return(true)

		h := NewHealthHandler(repo, store, "anthropic", slog.New(slog.DiscardHandler))
		w := getHealth(h)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t,
			`{"status":"healthy","services":{"database":"connected","catalog":"stale","llm":"available"}}`,
			w.Body.String(),
			"a stale snapshot still serves queries and must not degrade health")
	})

	t.Run("missing llm provider", func(t *testing.T) {
		repo := new(MockPinger)
		store := new(MockStaleChecker)
		repo.On("Ping", mock.Anything).Return(nil)
		store.On("Stale").Return(false)

		h := NewHealthHandler(repo, store, "", slog.New(slog.DiscardHandler))
		w := getHealth(h)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t,
			`{"status":"healthy","services":{"database":"connected","catalog":"fresh","llm":"unavailable"}}`,
			w.Body.String())
	})
}
