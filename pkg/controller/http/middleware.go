package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/usecase"
	"github.com/prreminder/frontend/pkg/utils/errutil"
	"github.com/prreminder/frontend/pkg/utils/logging"
)

// SessionCookieName carries the session ID. The bearer token itself never
// leaves the server.
const SessionCookieName = "prr_session"

type ctxSessionKey struct{}
type ctxAuthKey struct{}

func sessionFrom(ctx context.Context) *model.Session {
	session, _ := ctx.Value(ctxSessionKey{}).(*model.Session)
	return session
}

func authFrom(ctx context.Context) (usecase.AuthSnapshot, bool) {
	snap, ok := ctx.Value(ctxAuthKey{}).(usecase.AuthSnapshot)
	return snap, ok
}

func (s *Server) sessionCookie(r *http.Request, session *model.Session) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookie || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
	}
}

// sessionMiddleware resumes the browser's session, starting a new one when
// the cookie is missing or no longer valid.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var id model.SessionID
		if c, err := r.Cookie(SessionCookieName); err == nil {
			id = model.SessionID(c.Value)
		}

		session, err := s.uc.Sessions.Resume(ctx, id)
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to resume session"), http.StatusInternalServerError)
			return
		}
		if session.ID != id {
			logging.From(ctx).Debug("started new session", "replaced", id != "")
		}
		http.SetCookie(w, s.sessionCookie(r, session))

		ctx = context.WithValue(ctx, ctxSessionKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tokenScreens are the pages the OAuth return trip may land on.
var tokenScreens = map[string]bool{
	usecase.LandingPath:    true,
	usecase.LoginPath:      true,
	usecase.OnboardingPath: true,
	usecase.EmailSetupPath: true,
	usecase.DashboardPath:  true,
	usecase.SettingsPath:   true,
}

func acceptsToken(r *http.Request) bool {
	path := r.URL.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return r.Method == http.MethodGet && tokenScreens[path]
}

// tokenMiddleware consumes a bearer token handed over in the query string
// by the OAuth return trip and redirects to the same URL without it. Other
// URLs carrying a token are served as if it were absent.
func (s *Server) tokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" || !acceptsToken(r) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		snap := s.scope(r).Auth.ConsumeToken(ctx, token)
		logging.From(ctx).Info("consumed token from query", "state", snap.State)

		clean := *r.URL
		q := clean.Query()
		q.Del("token")
		clean.RawQuery = q.Encode()
		http.Redirect(w, r, localURL(&clean), http.StatusFound)
	})
}

// require renders the page only when the session may see it and sends the
// browser to the right screen otherwise.
func (s *Server) require(access usecase.Access) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			auth := s.scope(r).Auth
			var snap usecase.AuthSnapshot
			if slackReturn(r) {
				// The connection changed on the backend side.
				snap = auth.Refetch(ctx)
			} else {
				snap = auth.Current(ctx)
			}

			if redirect, ok := usecase.Guard(access, snap.State); !ok {
				http.Redirect(w, r, redirect, http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r.WithContext(withAuth(ctx, snap)))
		})
	}
}

// slackReturn reports the successful end of the Slack OAuth flow.
func slackReturn(r *http.Request) bool {
	return r.URL.Path == usecase.OnboardingPath && r.URL.Query().Get("slack_success") == "true"
}

func withAuth(ctx context.Context, snap usecase.AuthSnapshot) context.Context {
	return context.WithValue(ctx, ctxAuthKey{}, snap)
}

func (s *Server) scope(r *http.Request) *usecase.Scope {
	return s.uc.Scope(sessionFrom(r.Context()).ID)
}

// localURL drops scheme and host so a redirect never leaves the site.
func localURL(u *url.URL) string {
	out := u.EscapedPath()
	if out == "" {
		out = "/"
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}

// backTo returns the local return_to form value, or fallback.
func backTo(r *http.Request, fallback string) string {
	to := r.FormValue("return_to")
	if len(to) == 0 || to[0] != '/' || strings.HasPrefix(to, "//") || strings.HasPrefix(to, "/\\") {
		return fallback
	}
	return to
}
