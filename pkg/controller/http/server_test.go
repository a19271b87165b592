package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/prometheus/client_golang/prometheus"
	httpctrl "github.com/prreminder/frontend/pkg/controller/http"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/repository/memory"
	"github.com/prreminder/frontend/pkg/service/backend"
	"github.com/prreminder/frontend/pkg/usecase"
)

// fakeAPI is a minimal PR Reminder REST backend.
type fakeAPI struct {
	mu            sync.Mutex
	users         map[string]*model.User
	notifications []model.PRNotification
	listQueries   []url.Values
	deleted       []string
	userCalls     int
}

func (f *fakeAPI) userCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userCalls
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.userCalls++
		user, ok := f.users[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		writeJSON(w, http.StatusOK, user)
	})

	mux.HandleFunc("GET /api/v1/pr/notifications", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listQueries = append(f.listQueries, r.URL.Query())

		status := r.URL.Query().Get("status_filter")
		var items []model.PRNotification
		for _, n := range f.notifications {
			if status == "" || string(n.PRStatus) == status {
				items = append(items, n)
			}
		}
		writeJSON(w, http.StatusOK, model.NotificationList{
			Notifications: items,
			Limit:         20,
			PageInfo:      model.PageInfo{TotalCount: len(items), CurrentPage: 1, TotalPages: 1},
		})
	})

	mux.HandleFunc("DELETE /api/v1/pr/notifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		for i, n := range f.notifications {
			if n.ID == id {
				f.notifications = append(f.notifications[:i], f.notifications[i+1:]...)
				f.deleted = append(f.deleted, id)
				writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Notification not found"})
	})

	mux.HandleFunc("GET /api/v1/pr/notifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Notification not found"})
	})

	mux.HandleFunc("GET /api/v1/pr/stats", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, model.Stats{TotalNotifications: len(f.notifications)})
	})

	mux.HandleFunc("GET /api/v1/pr/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="prs.csv"`)
		_, _ = io.WriteString(w, "id,title\nn1,Fix bug\n")
	})

	mux.HandleFunc("GET /api/v1/auth/slack/auth-url", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.SlackAuthURL{AuthURL: "https://slack.example/oauth?state=abc", State: "abc"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testEnv struct {
	api    *fakeAPI
	uc     *usecase.UseCases
	server *httptest.Server
	client *http.Client
}

func setup(t *testing.T, opts ...httpctrl.Options) *testEnv {
	t.Helper()

	team := "acme"
	repo := "org/web"
	api := &fakeAPI{
		users: map[string]*model.User{
			"connected":  {ID: "u1", Name: "Alice Smith", Email: "alice@example.com", ForwardingEmail: "alice@in.example", SlackConnection: &model.SlackConnection{TeamName: &team}},
			"incomplete": {ID: "u2", Name: "Bob", Email: "bob@example.com"},
		},
		notifications: []model.PRNotification{
			{ID: "n1", RepoName: &repo, PRTitle: "Fix login redirect", PRStatus: model.PRStatusOpened, SenderEmail: "carol-dev@github.com"},
			{ID: "n2", RepoName: &repo, PRTitle: "Bump deps", PRStatus: model.PRStatusMerged},
		},
	}
	backendSrv := httptest.NewServer(api.handler())
	t.Cleanup(backendSrv.Close)

	client := backend.New(backendSrv.URL, nil)
	uc := usecase.New(memory.New(), func(tokens backend.TokenStore) backend.Service {
		return client.Bind(tokens)
	})

	srv, err := httpctrl.New(uc, opts...)
	gt.NoError(t, err).Required()
	front := httptest.NewServer(srv)
	t.Cleanup(front.Close)

	jar, err := cookiejar.New(nil)
	gt.NoError(t, err).Required()

	return &testEnv{
		api:    api,
		uc:     uc,
		server: front,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	gt.NoError(t, err).Required()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	gt.NoError(t, err).Required()
	return resp, string(body)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.PostForm(e.server.URL+path, form)
	gt.NoError(t, err).Required()
	_ = resp.Body.Close()
	return resp
}

// signIn completes the OAuth return trip with token.
func (e *testEnv) signIn(t *testing.T, token string) {
	t.Helper()
	resp, _ := e.get(t, "/dashboard?token="+token)
	gt.Value(t, resp.StatusCode).Equal(http.StatusFound)
	gt.Value(t, resp.Header.Get("Location")).Equal("/dashboard")
}

func TestHealthz(t *testing.T) {
	env := setup(t)
	resp, body := env.get(t, "/healthz")
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	gt.String(t, body).Contains(`"ok"`)
}

func TestSessionCookie(t *testing.T) {
	env := setup(t)
	resp, _ := env.get(t, "/login")
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == httpctrl.SessionCookieName {
			cookie = c
		}
	}
	gt.Value(t, cookie).NotNil()
	gt.Bool(t, cookie.HttpOnly).True()
	gt.Value(t, cookie.SameSite).Equal(http.SameSiteLaxMode)
	gt.NoError(t, model.SessionID(cookie.Value).Validate())
}

func TestGuards(t *testing.T) {
	t.Run("unauthenticated is sent to login", func(t *testing.T) {
		env := setup(t)
		for _, path := range []string{"/dashboard", "/settings", "/onboarding", "/email-setup"} {
			resp, _ := env.get(t, path)
			gt.Value(t, resp.StatusCode).Equal(http.StatusSeeOther)
			gt.Value(t, resp.Header.Get("Location")).Equal("/login")
		}
	})

	t.Run("incomplete user is sent to onboarding", func(t *testing.T) {
		env := setup(t)
		resp, _ := env.get(t, "/dashboard?token=incomplete")
		gt.Value(t, resp.StatusCode).Equal(http.StatusFound)

		resp, _ = env.get(t, "/dashboard")
		gt.Value(t, resp.Header.Get("Location")).Equal("/onboarding")

		resp, _ = env.get(t, "/login")
		gt.Value(t, resp.Header.Get("Location")).Equal("/onboarding")

		resp, body := env.get(t, "/onboarding")
		gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
		gt.String(t, body).Contains("Connect Slack")
	})

	t.Run("connected user skips guest pages", func(t *testing.T) {
		env := setup(t)
		env.signIn(t, "connected")

		resp, _ := env.get(t, "/")
		gt.Value(t, resp.Header.Get("Location")).Equal("/dashboard")

		resp, _ = env.get(t, "/onboarding")
		gt.Value(t, resp.Header.Get("Location")).Equal("/email-setup")

		resp, body := env.get(t, "/email-setup")
		gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
		gt.String(t, body).Contains("alice@in.example")
	})

	t.Run("invalid token resolves to login", func(t *testing.T) {
		env := setup(t)
		resp, _ := env.get(t, "/dashboard?token=bogus")
		gt.Value(t, resp.StatusCode).Equal(http.StatusFound)

		resp, _ = env.get(t, "/dashboard")
		gt.Value(t, resp.Header.Get("Location")).Equal("/login")
	})
}

func TestTokenQueryIsStripped(t *testing.T) {
	env := setup(t)
	resp, _ := env.get(t, "/settings?token=connected&tab=slack")
	gt.Value(t, resp.StatusCode).Equal(http.StatusFound)
	gt.Value(t, resp.Header.Get("Location")).Equal("/settings?tab=slack")
}

func TestTokenQueryOutsideScreens(t *testing.T) {
	env := setup(t)
	for _, path := range []string{"/notifications/n1?token=connected", "/dashboard/export?token=connected"} {
		resp, _ := env.get(t, path)
		gt.Value(t, resp.StatusCode).Equal(http.StatusSeeOther)
		gt.Value(t, resp.Header.Get("Location")).Equal("/login")
	}
	gt.Value(t, env.api.userCallCount()).Equal(0)

	resp, _ := env.get(t, "/dashboard")
	gt.Value(t, resp.Header.Get("Location")).Equal("/login")
}

// sessionID returns the session the cookie jar currently carries.
func (e *testEnv) sessionID(t *testing.T) model.SessionID {
	t.Helper()
	u, err := url.Parse(e.server.URL)
	gt.NoError(t, err).Required()
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == httpctrl.SessionCookieName {
			return model.SessionID(c.Value)
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func TestSlackReturn(t *testing.T) {
	env := setup(t)
	resp, _ := env.get(t, "/login")
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

	// The credential is stored but not yet resolved, and the Slack
	// connection finished on the backend.
	ctx := context.Background()
	gt.NoError(t, env.uc.Sessions.SetAuth(ctx, env.sessionID(t), "incomplete", true)).Required()
	team := "beta"
	env.api.mu.Lock()
	env.api.users["incomplete"].SlackConnection = &model.SlackConnection{TeamName: &team}
	env.api.mu.Unlock()

	resp, body := env.get(t, "/onboarding?slack_success=true")
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	gt.String(t, body).Contains("Connected to beta")
	gt.String(t, body).Contains(`content="2;url=/email-setup"`)
	gt.Value(t, env.api.userCallCount()).Equal(1)

	resp, _ = env.get(t, "/dashboard")
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	gt.Value(t, env.api.userCallCount()).Equal(1)
}

func TestCallback(t *testing.T) {
	t.Run("success with slack goes to dashboard", func(t *testing.T) {
		env := setup(t)
		resp, _ := env.get(t, "/auth/callback?success=true&token=connected&slack_connected=true&user_name=Alice")
		gt.Value(t, resp.StatusCode).Equal(http.StatusSeeOther)
		gt.Value(t, resp.Header.Get("Location")).Equal("/dashboard")

		resp, body := env.get(t, "/dashboard")
		gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
		gt.String(t, body).Contains("Welcome, Alice!")
	})

	t.Run("success without slack goes to onboarding", func(t *testing.T) {
		env := setup(t)
		resp, _ := env.get(t, "/auth/callback?success=true&token=incomplete&slack_connected=false")
		gt.Value(t, resp.Header.Get("Location")).Equal("/onboarding")
	})

	t.Run("failure shows error and schedules login", func(t *testing.T) {
		env := setup(t)
		resp, body := env.get(t, "/auth/callback?success=false&error=access_denied")
		gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
		gt.String(t, body).Contains("access_denied")
		gt.String(t, body).Contains(`content="3;url=/login?error=access_denied"`)
	})
}

func TestLogout(t *testing.T) {
	env := setup(t)
	env.signIn(t, "connected")

	resp := env.post(t, "/logout", nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusSeeOther)
	gt.Value(t, resp.Header.Get("Location")).Equal("/login")

	resp, _ = env.get(t, "/dashboard")
	gt.Value(t, resp.Header.Get("Location")).Equal("/login")
}

func TestDashboard(t *testing.T) {
	env := setup(t)
	env.signIn(t, "connected")

	resp, body := env.get(t, "/dashboard")
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	gt.String(t, body).Contains("Fix login redirect")
	gt.String(t, body).Contains("Bump deps")
	gt.String(t, body).Contains("carol-dev")
	gt.String(t, body).Contains(`data-state="ready"`)

	t.Run("filter by status", func(t *testing.T) {
		resp := env.post(t, "/dashboard/filters", url.Values{"status": {"merged"}})
		gt.Value(t, resp.StatusCode).Equal(http.StatusSeeOther)

		_, body := env.get(t, "/dashboard")
		gt.String(t, body).Contains("Bump deps")
		gt.Bool(t, strings.Contains(body, "Fix login redirect")).False()

		env.api.mu.Lock()
		last := env.api.listQueries[len(env.api.listQueries)-1]
		env.api.mu.Unlock()
		gt.Value(t, last.Get("status_filter")).Equal("merged")
		gt.Value(t, last.Get("page")).Equal("1")
	})

	t.Run("invalid status is reported", func(t *testing.T) {
		env.post(t, "/dashboard/filters", url.Values{"status": {"weird"}})
		_, body := env.get(t, "/dashboard")
		gt.String(t, body).Contains("Invalid filter")
	})

	t.Run("delete removes the row", func(t *testing.T) {
		env.post(t, "/dashboard/filters/reset", nil)
		resp := env.post(t, "/notifications/n1/delete", nil)
		gt.Value(t, resp.StatusCode).Equal(http.StatusSeeOther)

		_, body := env.get(t, "/dashboard")
		gt.String(t, body).Contains("Notification deleted")
		gt.Bool(t, strings.Contains(body, "Fix login redirect")).False()
		gt.Value(t, env.api.deleted).Equal([]string{"n1"})
	})

	t.Run("delete failure is flashed", func(t *testing.T) {
		env.post(t, "/notifications/missing/delete", nil)
		_, body := env.get(t, "/dashboard")
		gt.String(t, body).Contains("Failed to delete notification")
		gt.String(t, body).Contains("Notification not found")
	})

	t.Run("empty bulk selection", func(t *testing.T) {
		env.post(t, "/notifications/bulk", url.Values{"action": {"delete"}})
		_, body := env.get(t, "/dashboard")
		gt.String(t, body).Contains("Bulk delete failed")
	})

	t.Run("missing notification is 404", func(t *testing.T) {
		resp, _ := env.get(t, "/notifications/zzz")
		gt.Value(t, resp.StatusCode).Equal(http.StatusNotFound)
	})

	t.Run("export", func(t *testing.T) {
		resp, body := env.get(t, "/dashboard/export?format=csv")
		gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
		gt.Value(t, resp.Header.Get("Content-Type")).Equal("text/csv")
		gt.String(t, resp.Header.Get("Content-Disposition")).Contains(`filename="prs.csv"`)
		gt.String(t, body).Contains("n1,Fix bug")
	})
}

func TestSettings(t *testing.T) {
	env := setup(t)
	env.signIn(t, "connected")

	resp, body := env.get(t, "/settings")
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	gt.String(t, body).Contains("Alice Smith")

	t.Run("reminder preferences", func(t *testing.T) {
		resp := env.post(t, "/settings/reminders", url.Values{"reminders_enabled": {"on"}, "reminder_days": {"7"}})
		gt.Value(t, resp.StatusCode).Equal(http.StatusSeeOther)
		_, body := env.get(t, "/settings")
		gt.String(t, body).Contains("Reminder settings saved")
		gt.String(t, body).Contains(`<option value="7" selected>`)
	})

	t.Run("unsupported reminder days", func(t *testing.T) {
		env.post(t, "/settings/reminders", url.Values{"reminder_days": {"4"}})
		_, body := env.get(t, "/settings")
		gt.String(t, body).Contains("Invalid reminder setting")
	})

	t.Run("connect redirects to slack", func(t *testing.T) {
		resp := env.post(t, "/onboarding/slack", url.Values{"return_to": {"/settings"}})
		gt.Value(t, resp.StatusCode).Equal(http.StatusSeeOther)
		gt.Value(t, resp.Header.Get("Location")).Equal("https://slack.example/oauth?state=abc")
	})
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "prreminder_test_total"})
	reg.MustRegister(counter)
	counter.Inc()

	env := setup(t, httpctrl.WithMetrics(reg))
	resp, body := env.get(t, "/metrics")
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	gt.String(t, body).Contains("prreminder_test_total 1")
}
