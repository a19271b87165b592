package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/prreminder/frontend/pkg/cli/config"
	httpctrl "github.com/prreminder/frontend/pkg/controller/http"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/service/backend"
	"github.com/prreminder/frontend/pkg/service/worker"
	"github.com/prreminder/frontend/pkg/usecase"
	"github.com/prreminder/frontend/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe(version string) *cli.Command {
	var (
		addr          string
		configPath    string
		secureCookie  bool
		enableMetrics bool
		sessionTTL    time.Duration
		refreshWindow time.Duration
		sweepInterval time.Duration
		scopeIdleTTL  time.Duration
		backendCfg    config.Backend
		repoCfg       config.Repository
		sentryCfg     config.Sentry
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("PRREMINDER_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "TOML file with UI defaults",
			Sources:     cli.EnvVars("PRREMINDER_CONFIG"),
			Destination: &configPath,
		},
		&cli.BoolFlag{
			Name:        "secure-cookie",
			Usage:       "Always set the Secure attribute on the session cookie (use behind a TLS proxy)",
			Category:    "Session",
			Sources:     cli.EnvVars("PRREMINDER_SECURE_COOKIE"),
			Destination: &secureCookie,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Sliding lifetime of a browser session",
			Category:    "Session",
			Value:       model.DefaultSessionTTL,
			Sources:     cli.EnvVars("PRREMINDER_SESSION_TTL"),
			Destination: &sessionTTL,
		},
		&cli.DurationFlag{
			Name:        "token-refresh-window",
			Usage:       "Refresh a JWT when it expires within this window (0 disables refresh)",
			Category:    "Session",
			Value:       usecase.DefaultRefreshWindow,
			Sources:     cli.EnvVars("PRREMINDER_TOKEN_REFRESH_WINDOW"),
			Destination: &refreshWindow,
		},
		&cli.DurationFlag{
			Name:        "session-sweep-interval",
			Usage:       "Interval of the expired session sweep",
			Category:    "Session",
			Value:       10 * time.Minute,
			Sources:     cli.EnvVars("PRREMINDER_SESSION_SWEEP_INTERVAL"),
			Destination: &sweepInterval,
		},
		&cli.DurationFlag{
			Name:        "scope-idle-ttl",
			Usage:       "Drop in-memory list state of sessions idle for this long",
			Category:    "Session",
			Value:       6 * time.Hour,
			Sources:     cli.EnvVars("PRREMINDER_SCOPE_IDLE_TTL"),
			Destination: &scopeIdleTTL,
		},
		&cli.BoolFlag{
			Name:        "metrics",
			Usage:       "Expose Prometheus metrics on /metrics",
			Value:       true,
			Sources:     cli.EnvVars("PRREMINDER_METRICS"),
			Destination: &enableMetrics,
		},
	}

	flags = append(flags, backendCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the web front end",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if sweepInterval <= 0 {
				return goerr.Wrap(config.ErrInvalidConfig, "session-sweep-interval must be positive", goerr.V("interval", sweepInterval))
			}

			var appCfg *config.AppConfig
			if configPath != "" {
				cfg, err := config.LoadAppConfiguration(configPath)
				if err != nil {
					return goerr.Wrap(err, "failed to load configuration")
				}
				appCfg = cfg
			}

			flush, err := sentryCfg.Configure(version)
			if err != nil {
				return err
			}
			defer flush()

			var reg *prometheus.Registry
			var registerer prometheus.Registerer
			if enableMetrics {
				reg = prometheus.NewRegistry()
				reg.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				registerer = reg
			}

			api, err := backendCfg.Configure(nil, registerer)
			if err != nil {
				return goerr.Wrap(err, "failed to configure backend client")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			uc := usecase.New(repo,
				func(tokens backend.TokenStore) backend.Service { return api.Bind(tokens) },
				usecase.WithSessionTTL(sessionTTL),
				usecase.WithRefreshWindow(refreshWindow),
				usecase.WithScopeIdleTTL(scopeIdleTTL),
				usecase.WithDefaultFilters(appCfg.DefaultFilters()),
			)

			sweeper := worker.NewSessionSweepWorker(uc, sweepInterval)
			if err := sweeper.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start session sweep worker")
			}

			httpOpts := []httpctrl.Options{
				httpctrl.WithUIOptions(appCfg.UIOptions()),
				httpctrl.WithSecureCookie(secureCookie),
			}
			if reg != nil {
				httpOpts = append(httpOpts, httpctrl.WithMetrics(reg))
			}

			httpHandler, err := httpctrl.New(uc, httpOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server",
					"addr", addr,
					"backend", backendCfg,
					"repository", repoCfg,
					"sentry", sentryCfg,
				)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				sweeper.Stop()
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				sweeper.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
