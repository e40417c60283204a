package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/codecraftes/mottu-yard/internal/domain/errors"
)

type memTokens struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (m *memTokens) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

type recorded struct {
	method string
	path   string
	auth   string
	reqID  string
	body   string
}

func newRecordingServer(t *testing.T, status int, response string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recorded{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			reqID:  r.Header.Get(RequestIDHeader),
			body:   string(raw),
		})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, baseURL string, tokens *memTokens) *Client {
	t.Helper()
	c, err := NewClient(Options{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Tokens:  StoreTokenSource(tokens, "backend_token"),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestBearerInjection(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches stored token", func(t *testing.T) {
		srv, calls := newRecordingServer(t, http.StatusOK, `{}`)
		c := newTestClient(t, srv.URL, &memTokens{values: map[string]string{"backend_token": "tok-1"}})

		require.NoError(t, c.GetJSON(ctx, "/filial/all", nil))

		require.Len(t, *calls, 1)
		assert.Equal(t, "Bearer tok-1", (*calls)[0].auth)
		assert.Len(t, (*calls)[0].reqID, 26, "ULID request id")
	})

	t.Run("reads the token on every request", func(t *testing.T) {
		srv, calls := newRecordingServer(t, http.StatusOK, `{}`)
		tokens := &memTokens{values: map[string]string{"backend_token": "tok-1"}}
		c := newTestClient(t, srv.URL, tokens)

		require.NoError(t, c.GetJSON(ctx, "/a", nil))
		tokens.mu.Lock()
		tokens.values["backend_token"] = "tok-2"
		tokens.mu.Unlock()
		require.NoError(t, c.GetJSON(ctx, "/b", nil))
		tokens.mu.Lock()
		delete(tokens.values, "backend_token")
		tokens.mu.Unlock()
		require.NoError(t, c.GetJSON(ctx, "/c", nil))

		require.Len(t, *calls, 3)
		assert.Equal(t, "Bearer tok-1", (*calls)[0].auth)
		assert.Equal(t, "Bearer tok-2", (*calls)[1].auth)
		assert.Empty(t, (*calls)[2].auth)
	})

	t.Run("no token sends unauthenticated", func(t *testing.T) {
		srv, calls := newRecordingServer(t, http.StatusOK, `{}`)
		c := newTestClient(t, srv.URL, &memTokens{values: map[string]string{}})

		require.NoError(t, c.PostJSON(ctx, "/api/push/register", map[string]string{"token": "x"}, nil))
		assert.Empty(t, (*calls)[0].auth)
	})

	t.Run("storage failure fails the request", func(t *testing.T) {
		srv, calls := newRecordingServer(t, http.StatusOK, `{}`)
		c := newTestClient(t, srv.URL, &memTokens{err: errors.New("keychain locked")})

		err := c.GetJSON(ctx, "/moto/all", nil)

		var appErr apperrors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperrors.CodeStorageUnavailable, appErr.Code)
		assert.Empty(t, *calls)
	})

	t.Run("401 is an ordinary status error", func(t *testing.T) {
		srv, _ := newRecordingServer(t, http.StatusUnauthorized, `{"message":"expired"}`)
		c := newTestClient(t, srv.URL, &memTokens{values: map[string]string{"backend_token": "old"}})

		err := c.GetJSON(ctx, "/patio/all", nil)

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
		assert.Equal(t, `{"message":"expired"}`, statusErr.Body)
		assert.Equal(t, "/patio/all", statusErr.Path)
	})
}

func TestClientJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("post encodes and decodes", func(t *testing.T) {
		srv, calls := newRecordingServer(t, http.StatusOK, `{"token":"abc"}`)
		c := newTestClient(t, srv.URL+"/", &memTokens{values: map[string]string{}})

		var out struct {
			Token string `json:"token"`
		}
		require.NoError(t, c.PostJSON(ctx, "firebase-login", map[string]string{"firebaseToken": "fed"}, &out))

		assert.Equal(t, "abc", out.Token)
		assert.Equal(t, "/firebase-login", (*calls)[0].path)
		var sent map[string]string
		require.NoError(t, json.Unmarshal([]byte((*calls)[0].body), &sent))
		assert.Equal(t, "fed", sent["firebaseToken"])
	})

	t.Run("base path is preserved", func(t *testing.T) {
		srv, calls := newRecordingServer(t, http.StatusNoContent, ``)
		c := newTestClient(t, srv.URL+"/v1", &memTokens{values: map[string]string{}})

		require.NoError(t, c.Delete(ctx, "/moto/7"))
		assert.Equal(t, http.MethodDelete, (*calls)[0].method)
		assert.Equal(t, "/v1/moto/7", (*calls)[0].path)
	})

	t.Run("empty success body with out", func(t *testing.T) {
		srv, _ := newRecordingServer(t, http.StatusOK, ``)
		c := newTestClient(t, srv.URL, &memTokens{values: map[string]string{}})

		var out map[string]any
		assert.NoError(t, c.PutJSON(ctx, "/filial/1", map[string]string{"nome": "x"}, &out))
		assert.Nil(t, out)
	})

	t.Run("malformed response", func(t *testing.T) {
		srv, _ := newRecordingServer(t, http.StatusOK, `not json`)
		c := newTestClient(t, srv.URL, &memTokens{values: map[string]string{}})

		var out map[string]any
		err := c.GetJSON(ctx, "/x", &out)
		assert.ErrorContains(t, err, "failed to decode")
	})

	t.Run("server error body is kept", func(t *testing.T) {
		srv, _ := newRecordingServer(t, http.StatusInternalServerError, strings.Repeat("e", maxErrorBody+100))
		c := newTestClient(t, srv.URL, &memTokens{values: map[string]string{}})

		err := c.GetJSON(ctx, "/x", nil)
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Len(t, statusErr.Body, maxErrorBody)
	})
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "not a url"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestMaskSensitiveHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("Accept", "application/json")

	masked := maskSensitiveHeaders(h)

	assert.Equal(t, "***", masked["Authorization"])
	assert.Equal(t, "application/json", masked["Accept"])
	assert.Equal(t, "Bearer secret", h.Get("Authorization"), "original untouched")
}
