package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/service/backend"
	"github.com/prreminder/frontend/pkg/utils/logging"
	"golang.org/x/sync/singleflight"
)

// AuthState is the screen-selecting state of a session.
type AuthState string

const (
	AuthUnauthenticated AuthState = "unauthenticated"
	AuthLoading         AuthState = "loading"
	AuthIncomplete      AuthState = "authenticated-incomplete"
	AuthComplete        AuthState = "authenticated-complete"
)

func (s AuthState) Authenticated() bool {
	return s == AuthIncomplete || s == AuthComplete
}

const (
	// DefaultRefreshWindow is how close to expiry a JWT gets refreshed.
	DefaultRefreshWindow = 5 * time.Minute

	callbackFailureDelay = 3 * time.Second
	resolveTimeout       = 30 * time.Second
	defaultAuthFailure   = "Authentication failed"
)

// AuthSnapshot is a consistent view of the controller.
type AuthSnapshot struct {
	State AuthState
	User  *model.User
	Error string
}

// AuthController drives login, logout, OAuth callback and token refresh for
// one session.
type AuthController struct {
	sessionID     model.SessionID
	sessions      *SessionStore
	api           backend.Service
	refreshWindow time.Duration
	now           func() time.Time
	group         singleflight.Group

	mu            sync.RWMutex
	state         AuthState
	user          *model.User
	lastErr       string
	resolvedToken string
}

func NewAuthController(id model.SessionID, sessions *SessionStore, api backend.Service, refreshWindow time.Duration) *AuthController {
	return &AuthController{
		sessionID:     id,
		sessions:      sessions,
		api:           api,
		refreshWindow: refreshWindow,
		now:           time.Now,
		state:         AuthLoading,
	}
}

func (c *AuthController) Snapshot() AuthSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return AuthSnapshot{State: c.state, User: c.user.Clone(), Error: c.lastErr}
}

func (c *AuthController) set(state AuthState, user *model.User, token, errMsg string) AuthSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.user = user
	c.lastErr = errMsg
	c.resolvedToken = token
	return AuthSnapshot{State: state, User: user.Clone(), Error: errMsg}
}

// Current returns the resolved state, resolving again when the session
// token changed since the last resolution or is about to expire.
func (c *AuthController) Current(ctx context.Context) AuthSnapshot {
	session, err := c.sessions.Get(ctx, c.sessionID)
	if err != nil {
		return c.set(AuthUnauthenticated, nil, "", "")
	}

	c.mu.RLock()
	cached := c.state.Authenticated() && c.resolvedToken != "" && c.resolvedToken == session.Token
	c.mu.RUnlock()

	if cached && !c.needsRefresh(session.Token) {
		return c.Snapshot()
	}
	return c.Resolve(ctx)
}

// Resolve fetches the current user for the stored token. Concurrent calls
// share one backend round trip, which runs detached from any single caller.
// A caller that gives up early gets the last known snapshot and the
// credential is left in place. Any backend failure clears it.
func (c *AuthController) Resolve(ctx context.Context) AuthSnapshot {
	prev := c.Snapshot()
	ch := c.group.DoChan("resolve", func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return c.resolve(shared), nil
	})

	select {
	case res := <-ch:
		return res.Val.(AuthSnapshot)
	case <-ctx.Done():
		logging.From(ctx).Debug("caller left before user was resolved", "error", ctx.Err())
		return prev
	}
}

// aborted reports whether err comes from ctx giving up rather than from the
// backend answering.
func aborted(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}

func (c *AuthController) resolve(ctx context.Context) AuthSnapshot {
	logger := logging.From(ctx)

	session, err := c.sessions.Get(ctx, c.sessionID)
	if err != nil {
		return c.set(AuthUnauthenticated, nil, "", "")
	}
	token := session.Token
	if token == "" {
		return c.set(AuthUnauthenticated, nil, "", "")
	}

	c.mu.Lock()
	prevState, prevUser, prevToken := c.state, c.user, c.resolvedToken
	c.state = AuthLoading
	c.mu.Unlock()

	keep := func(err error) AuthSnapshot {
		logger.Info("user resolution aborted, keeping credential", "error", err)
		return c.set(prevState, prevUser, prevToken, "")
	}

	if c.needsRefresh(token) {
		resp, err := c.api.RefreshToken(ctx)
		if err != nil {
			if aborted(ctx, err) {
				return keep(err)
			}
			logger.Info("token refresh failed, clearing credential", "error", err)
			return c.fail(ctx, err)
		}
		token = resp.AccessToken
	}

	user, err := c.api.GetCurrentUser(ctx)
	if err != nil {
		if aborted(ctx, err) {
			return keep(err)
		}
		logger.Info("failed to load user, clearing credential", "error", err, "unauthorized", backend.IsUnauthorized(err))
		return c.fail(ctx, err)
	}

	applied, err := c.sessions.setUserForToken(ctx, c.sessionID, token, user)
	if err != nil {
		return c.set(AuthUnauthenticated, nil, "", err.Error())
	}
	if !applied {
		// The credential was replaced or cleared while the request was in
		// flight; the response belongs to a session state that is gone.
		logger.Debug("dropping stale user response")
		return c.set(AuthUnauthenticated, nil, "", "")
	}

	state := AuthIncomplete
	if user.HasSlackConnection() {
		state = AuthComplete
	}
	return c.set(state, user, token, "")
}

func (c *AuthController) fail(ctx context.Context, cause error) AuthSnapshot {
	if err := c.sessions.ClearAuth(ctx, c.sessionID); err != nil {
		logging.From(ctx).Warn("failed to clear credential", "error", err)
	}
	return c.set(AuthUnauthenticated, nil, "", cause.Error())
}

// needsRefresh reports whether token is a JWT expiring within the refresh
// window. Opaque tokens are never refreshed.
func (c *AuthController) needsRefresh(token string) bool {
	if c.refreshWindow <= 0 || strings.Count(token, ".") != 2 {
		return false
	}
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return false
	}
	exp := parsed.Expiration()
	if exp.IsZero() {
		return false
	}
	return !c.now().Add(c.refreshWindow).Before(exp)
}

// ConsumeToken stores a token delivered by the OAuth return trip and
// resolves the user for it.
func (c *AuthController) ConsumeToken(ctx context.Context, token string) AuthSnapshot {
	if err := c.sessions.SetAuth(ctx, c.sessionID, token, true); err != nil {
		return c.set(AuthUnauthenticated, nil, "", err.Error())
	}
	return c.Resolve(ctx)
}

// LoginURL is where the browser goes to sign in.
func (c *AuthController) LoginURL() string {
	return c.api.GoogleLoginURL()
}

// CallbackOutcome tells the callback page what to show and where to go.
type CallbackOutcome struct {
	Success  bool
	Message  string
	Redirect string
	Delay    time.Duration
	UserName string
}

// HandleCallback consumes the OAuth return parameters. Only success=true
// with a token is a success; everything else redirects to the login page
// with the error after a short delay.
func (c *AuthController) HandleCallback(ctx context.Context, params model.CallbackParams) CallbackOutcome {
	if !params.Succeeded() {
		msg := strings.TrimSpace(params.Error)
		if msg == "" {
			msg = defaultAuthFailure
		}
		return failedCallback(msg)
	}

	user := &model.User{
		ID:    params.UserID,
		Name:  params.UserName,
		Email: params.UserEmail,
	}
	if params.ProfileImage != "" {
		img := params.ProfileImage
		user.ProfileImage = &img
	}
	if params.SlackIsConnected() {
		conn := &model.SlackConnection{}
		if params.SlackTeam != "" {
			team := params.SlackTeam
			conn.TeamName = &team
		}
		user.SlackConnection = conn
	}

	if err := c.sessions.SetAuth(ctx, c.sessionID, params.Token, true); err != nil {
		logging.From(ctx).Error("failed to store callback token", "error", err)
		return failedCallback("Failed to process authentication callback")
	}
	if err := c.sessions.SetUser(ctx, c.sessionID, user); err != nil {
		logging.From(ctx).Error("failed to store callback user", "error", err)
		return failedCallback("Failed to process authentication callback")
	}

	// The profile built from the callback is provisional; the next page
	// load fetches the authoritative one.
	c.set(AuthLoading, nil, "", "")

	dest := OnboardingPath
	if params.SlackIsConnected() {
		dest = DashboardPath
	}
	return CallbackOutcome{Success: true, Redirect: dest, UserName: params.UserName}
}

func failedCallback(msg string) CallbackOutcome {
	return CallbackOutcome{
		Message:  msg,
		Redirect: LoginPath + "?error=" + url.QueryEscape(msg),
		Delay:    callbackFailureDelay,
	}
}

// ConnectIntegration obtains the Slack OAuth URL. The call is authenticated
// and its failure is returned to the caller.
func (c *AuthController) ConnectIntegration(ctx context.Context) (string, error) {
	resp, err := c.api.SlackAuthURL(ctx)
	if err != nil {
		return "", err
	}
	if resp.AuthURL == "" {
		return "", goerr.Wrap(ErrMissingAuthURL, "empty auth_url", goerr.V("state", resp.State))
	}
	return resp.AuthURL, nil
}

// DisconnectIntegration removes the Slack connection and re-resolves the
// user so the state drops back to incomplete.
func (c *AuthController) DisconnectIntegration(ctx context.Context) (AuthSnapshot, error) {
	if _, err := c.api.DisconnectSlack(ctx); err != nil {
		return c.Snapshot(), err
	}
	return c.Resolve(ctx), nil
}

// Refetch reloads the user, e.g. after the Slack connect callback.
func (c *AuthController) Refetch(ctx context.Context) AuthSnapshot {
	return c.Resolve(ctx)
}

// TestNotification sends a Slack test message.
func (c *AuthController) TestNotification(ctx context.Context, message string) (*model.MessageResponse, error) {
	return c.api.TestSlack(ctx, message)
}

// Logout delegates to the session store.
func (c *AuthController) Logout(ctx context.Context) (string, error) {
	path, err := c.sessions.Logout(ctx, c.sessionID)
	if err != nil {
		return "", err
	}
	c.set(AuthUnauthenticated, nil, "", "")
	return path, nil
}
