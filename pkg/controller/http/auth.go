package http

import (
	"net/http"
	"time"

	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/usecase"
	"github.com/prreminder/frontend/pkg/utils/errutil"
	"github.com/prreminder/frontend/pkg/utils/logging"
)

const onboardingContinueDelay = 2 * time.Second

func (s *Server) landingHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "landing.html", "", nil, nil)
}

type loginData struct {
	Error string
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", "Sign in", loginData{
		Error: r.URL.Query().Get("error"),
	}, nil)
}

// googleLoginHandler sends the browser to the backend, which owns the
// Google OAuth flow and returns to /auth/callback.
func (s *Server) googleLoginHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.scope(r).Auth.LoginURL(), http.StatusFound)
}

type callbackData struct {
	Message string
	Retry   string
}

func (s *Server) callbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := model.ParseCallbackParams(r.URL.Query())
	out := s.scope(r).Auth.HandleCallback(ctx, params)

	if out.Success {
		s.flash(r, model.FlashSuccess, "Welcome"+greetingSuffix(out.UserName)+"!", "You are signed in.")
		http.Redirect(w, r, out.Redirect, http.StatusSeeOther)
		return
	}

	logging.From(ctx).Info("authentication callback failed", "error", out.Message)
	s.render(w, r, http.StatusOK, "callback.html", "Authentication failed", callbackData{
		Message: out.Message,
		Retry:   out.Redirect,
	}, &refresh{Seconds: int(out.Delay / time.Second), URL: out.Redirect})
}

func greetingSuffix(name string) string {
	if name == "" {
		return ""
	}
	return ", " + name
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path, err := s.uc.Logout(ctx, sessionFrom(ctx).ID)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}
	s.flash(r, model.FlashInfo, "Signed out", "")
	seeOther(w, r, path)
}

type onboardingData struct {
	Connected bool
	SlackTeam string
	Success   bool
	Error     string
	Next      string
}

// onboardingHandler also receives the return trip of the Slack OAuth flow
// as slack_success / slack_error query parameters.
func (s *Server) onboardingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	snap, _ := authFrom(ctx)
	if slackReturn(r) {
		team := q.Get("slack_team")
		if team == "" {
			team = snap.User.SlackTeam()
		}
		s.render(w, r, http.StatusOK, "onboarding.html", "Slack connected", onboardingData{
			Connected: snap.State == usecase.AuthComplete,
			SlackTeam: team,
			Success:   true,
			Next:      usecase.EmailSetupPath,
		}, &refresh{Seconds: int(onboardingContinueDelay / time.Second), URL: usecase.EmailSetupPath})
		return
	}

	slackErr := q.Get("slack_error")
	if slackErr == "" && snap.State == usecase.AuthComplete {
		seeOther(w, r, usecase.EmailSetupPath)
		return
	}

	s.render(w, r, http.StatusOK, "onboarding.html", "Connect Slack", onboardingData{
		Error: slackErr,
	}, nil)
}

// connectSlackHandler starts the Slack OAuth flow. It is shared by the
// onboarding and settings screens.
func (s *Server) connectSlackHandler(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.scope(r).Auth.ConnectIntegration(r.Context())
	if err != nil {
		logging.From(r.Context()).Warn("failed to start slack connection", "error", err)
		s.flash(r, model.FlashError, "Failed to connect Slack", err.Error())
		seeOther(w, r, backTo(r, usecase.OnboardingPath))
		return
	}
	http.Redirect(w, r, authURL, http.StatusSeeOther)
}

type emailSetupData struct {
	ForwardingEmail string
}

func (s *Server) emailSetupHandler(w http.ResponseWriter, r *http.Request) {
	snap, _ := authFrom(r.Context())
	var data emailSetupData
	if snap.User != nil {
		data.ForwardingEmail = snap.User.ForwardingEmail
	}
	s.render(w, r, http.StatusOK, "email_setup.html", "Email setup", data, nil)
}
