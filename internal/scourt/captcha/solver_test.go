package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/courtsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestSolver(t *testing.T, handler http.HandlerFunc) (*Solver, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := NewSolver(Config{
		Endpoint:     srv.URL,
		APIKey:       "test-key",
		Model:        "test-model",
		AnswerLength: 6,
		PerMinuteCap: 30,
	}, testLogger())
	return s, srv
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(b)
}

func TestSolve_Success(t *testing.T) {
	s, _ := newTestSolver(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		io.WriteString(w, chatReply("483920"))
	})

	got, err := s.Solve(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "483920", got)
}

func TestSolve_ExtractsDigitsFromChatter(t *testing.T) {
	s, _ := newTestSolver(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, chatReply("The digits shown are 112233."))
	})

	got, err := s.Solve(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "112233", got)
}

func TestSolve_UnparsableReply(t *testing.T) {
	s, _ := newTestSolver(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, chatReply("I cannot read this image."))
	})

	_, err := s.Solve(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestSolve_WrongLengthRunIsUnparsable(t *testing.T) {
	s, _ := newTestSolver(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, chatReply("1234567"))
	})

	_, err := s.Solve(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestSolve_RetriesOnThrottle(t *testing.T) {
	calls := 0
	s, _ := newTestSolver(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, chatReply("654321"))
	})

	got, err := s.Solve(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "654321", got)
	assert.Equal(t, 2, calls)
}

func TestSolve_AuthErrorFailsImmediately(t *testing.T) {
	calls := 0
	s, _ := newTestSolver(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	_, err := s.Solve(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnparsable))
	assert.Equal(t, 1, calls, "auth errors must not be retried")
}

func TestSolve_RateCapSkipsCycle(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, chatReply("111111"))
	}))
	t.Cleanup(srv.Close)

	// cap of 1 per minute: first call passes, second is skipped locally
	s := NewSolver(Config{
		Endpoint:     srv.URL,
		Model:        "m",
		AnswerLength: 6,
		PerMinuteCap: 1,
	}, testLogger())

	_, err := s.Solve(context.Background(), []byte("img"))
	require.NoError(t, err)

	_, err = s.Solve(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, calls, "capped call must not reach the backend")
}

func TestExtractDigits(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"483920", 6, "483920"},
		{"answer: 483920.", 6, "483920"},
		{"12 345678 90", 6, "345678"},
		{"1234567", 6, ""},
		{"12345", 6, ""},
		{"no digits", 6, ""},
		{"", 6, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractDigits(tt.in, tt.n), "input %q", tt.in)
	}
}
