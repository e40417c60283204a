package api

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"

	apperrors "github.com/codecraftes/mottu-yard/internal/domain/errors"
)

// RequestIDHeader carries a per-request ULID for correlating client and backend logs.
const RequestIDHeader = "X-Request-ID"

// TokenSource yields the current backend session token. ok is false when
// the device holds none.
type TokenSource interface {
	Token(ctx context.Context) (token string, ok bool, err error)
}

// TokenGetter is the read side of the secure store.
type TokenGetter interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

type storeTokenSource struct {
	store TokenGetter
	key   string
}

// StoreTokenSource reads the token from store under key on every call.
func StoreTokenSource(store TokenGetter, key string) TokenSource {
	return storeTokenSource{store: store, key: key}
}

func (s storeTokenSource) Token(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, s.key)
}

// BearerTransport attaches "Authorization: Bearer <token>" when a token is
// present. Requests without a token are sent unauthenticated. A token read
// failure fails the request instead.
type BearerTransport struct {
	Base   http.RoundTripper
	Source TokenSource
}

func (t *BearerTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok, err := t.Source.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, apperrors.NewStorageUnavailableError("failed to read session token", err)
	}

	out := req.Clone(req.Context())
	if ok && token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, ulid.Make().String())
	}
	return t.base().RoundTrip(out)
}
