package http

import (
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prreminder/frontend/pkg/usecase"
	"github.com/prreminder/frontend/pkg/utils/logging"
)

// UIOptions tune what the pages show.
type UIOptions struct {
	AppName      string
	SummaryDays  int
	PendingLimit int
	StaleLimit   int
}

// DefaultUIOptions are used for fields left zero.
func DefaultUIOptions() UIOptions {
	return UIOptions{
		AppName:      "PR Reminder",
		SummaryDays:  7,
		PendingLimit: 5,
		StaleLimit:   5,
	}
}

type Server struct {
	router       *chi.Mux
	uc           *usecase.UseCases
	pages        map[string]*template.Template
	ui           UIOptions
	gatherer     prometheus.Gatherer
	secureCookie bool
	now          func() time.Time
}

type Options func(*Server)

func WithUIOptions(ui UIOptions) Options {
	return func(s *Server) {
		def := DefaultUIOptions()
		if ui.AppName == "" {
			ui.AppName = def.AppName
		}
		if ui.SummaryDays <= 0 {
			ui.SummaryDays = def.SummaryDays
		}
		if ui.PendingLimit <= 0 {
			ui.PendingLimit = def.PendingLimit
		}
		if ui.StaleLimit <= 0 {
			ui.StaleLimit = def.StaleLimit
		}
		s.ui = ui
	}
}

// WithMetrics exposes g on /metrics.
func WithMetrics(g prometheus.Gatherer) Options {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithSecureCookie forces the Secure attribute on the session cookie, for
// deployments behind a TLS-terminating proxy.
func WithSecureCookie(secure bool) Options {
	return func(s *Server) {
		s.secureCookie = secure
	}
}

func WithClock(now func() time.Time) Options {
	return func(s *Server) {
		s.now = now
	}
}

func New(uc *usecase.UseCases, opts ...Options) (*Server, error) {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
		ui:     DefaultUIOptions(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	pages, err := parsePages(s.now)
	if err != nil {
		return nil, err
	}
	s.pages = pages

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthHandler)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Use(s.tokenMiddleware)

		r.Get("/auth/callback", s.callbackHandler)
		r.Post("/logout", s.logoutHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.require(usecase.AccessGuest))
			r.Get("/", s.landingHandler)
			r.Get("/login", s.loginHandler)
			r.Get("/login/google", s.googleLoginHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(usecase.AccessAuthenticated))
			r.Get("/onboarding", s.onboardingHandler)
			r.Post("/onboarding/slack", s.connectSlackHandler)
			r.Get("/settings", s.settingsHandler)
			r.Post("/settings/slack/disconnect", s.disconnectSlackHandler)
			r.Post("/settings/slack/test", s.testSlackHandler)
			r.Post("/settings/reminders", s.remindersHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(usecase.AccessConnected))
			r.Get("/email-setup", s.emailSetupHandler)

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/", s.dashboardHandler)
				r.Post("/filters", s.filtersHandler)
				r.Post("/filters/reset", s.resetFiltersHandler)
				r.Get("/page/{n}", s.pageHandler)
				r.Post("/search", s.searchHandler)
				r.Post("/remind", s.remindHandler)
				r.Get("/export", s.exportHandler)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Post("/bulk", s.bulkHandler)
				r.Get("/{id}", s.notificationHandler)
				r.Post("/{id}/delete", s.deleteHandler)
				r.Post("/{id}/mark-slack-sent", s.markSentHandler)
			})
		})
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.From(r.Context()).With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(logging.With(r.Context(), logger))

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}
