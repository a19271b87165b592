package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prreminder/frontend/pkg/service/backend"
)

// memTokens is an in-memory TokenStore.
type memTokens struct {
	mu    sync.Mutex
	token string
}

func (m *memTokens) Token(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *memTokens) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memTokens) ClearToken(context.Context) error {
	return m.SetToken(context.Background(), "")
}

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

func newBackend(t *testing.T, handler http.HandlerFunc) (*httptest.Server, func() []recorded) {
	t.Helper()

	var mu sync.Mutex
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   string(body),
		})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), calls...)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_BearerHeader(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "name": "Alice", "email": "a@example.com"})
	})

	tokens := &memTokens{}
	client := backend.New(srv.URL, tokens)
	ctx := context.Background()

	t.Run("no token sends no header", func(t *testing.T) {
		_, err := client.GetCurrentUser(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, calls()[0].Auth).Equal("")
		gt.Value(t, calls()[0].Path).Equal("/api/v1/users/me")
	})

	t.Run("token is read from the store on every call", func(t *testing.T) {
		gt.NoError(t, tokens.SetToken(ctx, "abc")).Required()
		user, err := client.GetCurrentUser(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, user.Name).Equal("Alice")
		gt.Value(t, calls()[1].Auth).Equal("Bearer abc")
	})
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("detail is propagated verbatim", func(t *testing.T) {
		srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
		})

		_, err := backend.New(srv.URL, nil).GetNotification(ctx, "n1")
		gt.Value(t, err).NotNil()
		gt.Value(t, err.Error()).Equal("not found")
		gt.Value(t, backend.StatusCode(err)).Equal(http.StatusNotFound)
		gt.Bool(t, backend.IsNotFound(err)).True()
	})

	t.Run("non JSON body falls back to status text", func(t *testing.T) {
		srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("<html>boom</html>"))
		})

		_, err := backend.New(srv.URL, nil).Stats(ctx)
		gt.Value(t, err).NotNil()
		gt.Value(t, err.Error()).Equal("HTTP 500: Internal Server Error")
		gt.Value(t, backend.StatusCode(err)).Equal(http.StatusInternalServerError)
	})

	t.Run("JSON without detail", func(t *testing.T) {
		srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "x"})
		})

		_, err := backend.New(srv.URL, nil).Stats(ctx)
		gt.Value(t, err.Error()).Equal("Request failed with status 400")
	})

	t.Run("validation detail list", func(t *testing.T) {
		srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": []map[string]any{{"msg": "field required"}, {"msg": "value is not a valid integer"}},
			})
		})

		_, err := backend.New(srv.URL, nil).Stats(ctx)
		gt.Value(t, err.Error()).Equal("field required; value is not a valid integer")
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		})

		_, err := backend.New(srv.URL, backend.StaticToken("expired")).GetCurrentUser(ctx)
		gt.Bool(t, backend.IsUnauthorized(err)).True()
	})

	t.Run("malformed JSON on success", func(t *testing.T) {
		srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not json"))
		})

		_, err := backend.New(srv.URL, nil).Stats(ctx)
		var apiErr *backend.APIError
		gt.Bool(t, errors.As(err, &apiErr)).True()
		gt.Value(t, apiErr.StatusCode).Equal(http.StatusOK)
	})

	t.Run("network failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		_, err := backend.New(srv.URL, nil).Stats(ctx)
		var apiErr *backend.APIError
		gt.Bool(t, errors.As(err, &apiErr)).True()
		gt.Value(t, apiErr.StatusCode).Equal(0)
		gt.String(t, apiErr.Error()).Contains("Network error")
	})

	t.Run("timeout", func(t *testing.T) {
		srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			writeJSON(w, http.StatusOK, map[string]any{})
		})

		_, err := backend.New(srv.URL, nil, backend.WithTimeout(20*time.Millisecond)).Stats(ctx)
		gt.Value(t, backend.StatusCode(err)).Equal(0)
		gt.Value(t, err).NotNil()
	})
}

func TestClient_RefreshToken(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "new-token", "token_type": "bearer"})
	})

	tokens := &memTokens{token: "old-token"}
	client := backend.New(srv.URL, tokens)
	ctx := context.Background()

	resp, err := client.RefreshToken(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, resp.AccessToken).Equal("new-token")
	gt.Value(t, calls()[0].Method).Equal(http.MethodPost)
	gt.Value(t, calls()[0].Path).Equal("/api/v1/auth/refresh")
	gt.Value(t, calls()[0].Auth).Equal("Bearer old-token")

	stored, _ := tokens.Token(ctx)
	gt.Value(t, stored).Equal("new-token")

	gt.NoError(t, client.ClearAuthToken(ctx)).Required()
	stored, _ = tokens.Token(ctx)
	gt.Value(t, stored).Equal("")
}

func TestClient_StaticTokenIsReadOnly(t *testing.T) {
	client := backend.New("http://example.invalid", backend.StaticToken("fixed"))
	gt.Error(t, client.SetAuthToken(context.Background(), "other")).Is(backend.ErrReadOnlyToken)
}

func TestClient_GoogleLoginURL(t *testing.T) {
	gt.Value(t, backend.New("https://api.example.com/", nil).GoogleLoginURL()).
		Equal("https://api.example.com/api/v1/auth/google/login")
	gt.Value(t, backend.New("", nil).GoogleLoginURL()).
		Equal("http://localhost:8000/api/v1/auth/google/login")
}

func TestClient_Bind(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	base := backend.New(srv.URL, nil)
	a := base.Bind(backend.StaticToken("token-a"))
	b := base.Bind(backend.StaticToken("token-b"))

	_, err := a.Stats(context.Background())
	gt.NoError(t, err).Required()
	_, err = b.Stats(context.Background())
	gt.NoError(t, err).Required()

	gt.Value(t, calls()[0].Auth).Equal("Bearer token-a")
	gt.Value(t, calls()[1].Auth).Equal("Bearer token-b")
}

func TestClient_Metrics(t *testing.T) {
	srv, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "nope"})
	})

	reg := prometheus.NewRegistry()
	metrics := backend.NewMetrics(reg)
	client := backend.New(srv.URL, nil, backend.WithMetrics(metrics))

	_, _ = client.Stats(context.Background())
	_, _ = client.Stats(context.Background())

	gt.Value(t, testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("stats", "404"))).Equal(2.0)
}

func TestClient_RateLimit(t *testing.T) {
	srv, calls := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	client := backend.New(srv.URL, nil, backend.WithRateLimit(0.001, 1))
	_, err := client.Stats(context.Background())
	gt.NoError(t, err).Required()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Stats(ctx)
	gt.Value(t, err).NotNil()
	gt.Array(t, calls()).Length(1)
}

func TestErrorDetail(t *testing.T) {
	gt.Value(t, backend.ErrorDetail(502, "502 Bad Gateway", []byte("upstream down"))).Equal("HTTP 502: Bad Gateway")
	gt.Value(t, backend.ErrorDetail(503, "", []byte(""))).Equal("HTTP 503: Service Unavailable")
	gt.Value(t, backend.ErrorDetail(409, "409 Conflict", []byte(`{"detail":"already connected"}`))).Equal("already connected")
}

var _ backend.TokenStore = &memTokens{}
