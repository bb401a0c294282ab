package notifyclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/notifications/httpapi"
)

// TokenSource returns the bearer token that authenticates userID.
type TokenSource func(ctx context.Context, userID string) (string, error)

// HTTPBackend talks to the notifyd HTTP API.
type HTTPBackend struct {
	baseURL string
	client  *http.Client
	token   TokenSource
}

var _ Backend = (*HTTPBackend)(nil)

type HTTPBackendOption func(*HTTPBackend)

func WithHTTPClient(c *http.Client) HTTPBackendOption {
	return func(b *HTTPBackend) {
		if c != nil {
			b.client = c
		}
	}
}

// NewHTTPBackend returns a backend rooted at baseURL, for example
// "https://notify.example.com".
func NewHTTPBackend(baseURL string, token TokenSource, opts ...HTTPBackendOption) *HTTPBackend {
	b := &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
		token:   token,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *HTTPBackend) ListForUser(ctx context.Context, userID string) ([]notifications.Notification, error) {
	var env httpapi.Envelope[[]notifications.Notification]
	if err := b.do(ctx, userID, http.MethodGet, "/notifications", &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []notifications.Notification{}, nil
	}
	return env.Data, nil
}

func (b *HTTPBackend) MarkRead(ctx context.Context, id, userID string) (notifications.Notification, error) {
	var env httpapi.Envelope[notifications.Notification]
	if err := b.do(ctx, userID, http.MethodPatch, "/notifications/"+url.PathEscape(id)+"/read", &env); err != nil {
		return notifications.Notification{}, err
	}
	return env.Data, nil
}

func (b *HTTPBackend) MarkAllRead(ctx context.Context, userID string) (int, error) {
	var env httpapi.Envelope[httpapi.MarkAllResult]
	if err := b.do(ctx, userID, http.MethodPatch, "/notifications/read", &env); err != nil {
		return 0, err
	}
	return env.Data.Updated, nil
}

// do performs the request and decodes the envelope into out.
// Error responses carrying a domain code become that domain error;
// every other failure is returned as a transport error.
func (b *HTTPBackend) do(ctx context.Context, userID, method, path string, out any) error {
	token, err := b.token(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: obtaining token: %w", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var env httpapi.Envelope[json.RawMessage]
		if json.Unmarshal(body, &env) == nil && env.Error != nil {
			if domainErr := httpapi.ErrorForCode(env.Error.Code); domainErr != nil {
				return fmt.Errorf("%w: %s", domainErr, env.Error.Message)
			}
			return fmt.Errorf("%w: %s %s: %d %s", ErrTransport, method, path, resp.StatusCode, env.Error.Code)
		}
		return fmt.Errorf("%w: %s %s: %d", ErrTransport, method, path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrTransport, err)
	}
	return nil
}

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func(context.Context, string) (string, error) { return token, nil }
}
