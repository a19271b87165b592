package config

import (
	"log/slog"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prreminder/frontend/pkg/service/backend"
	"github.com/urfave/cli/v3"
)

// Backend holds the connection settings of the PR Reminder API.
type Backend struct {
	baseURL   string
	timeout   time.Duration
	rateLimit float64
	burst     int
	userAgent string
}

func (x *Backend) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "api-url",
			Usage:       "PR Reminder API base URL (without the /api/v1 prefix)",
			Category:    "Backend",
			Value:       backend.DefaultBaseURL,
			Sources:     cli.EnvVars("PRREMINDER_API_URL"),
			Destination: &x.baseURL,
		},
		&cli.DurationFlag{
			Name:        "api-timeout",
			Usage:       "Timeout of a single API request",
			Category:    "Backend",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("PRREMINDER_API_TIMEOUT"),
			Destination: &x.timeout,
		},
		&cli.FloatFlag{
			Name:        "api-rate-limit",
			Usage:       "Maximum API requests per second across all sessions (0 disables throttling)",
			Category:    "Backend",
			Sources:     cli.EnvVars("PRREMINDER_API_RATE_LIMIT"),
			Destination: &x.rateLimit,
		},
		&cli.IntFlag{
			Name:        "api-burst",
			Usage:       "Burst size of the API rate limiter",
			Category:    "Backend",
			Value:       10,
			Sources:     cli.EnvVars("PRREMINDER_API_BURST"),
			Destination: &x.burst,
		},
		&cli.StringFlag{
			Name:        "api-user-agent",
			Usage:       "User-Agent header sent to the API",
			Category:    "Backend",
			Value:       "prreminder-frontend",
			Sources:     cli.EnvVars("PRREMINDER_API_USER_AGENT"),
			Destination: &x.userAgent,
		},
	}
}

func (x Backend) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api-url", x.baseURL),
		slog.Duration("timeout", x.timeout),
		slog.Float64("rate-limit", x.rateLimit),
		slog.Int("burst", x.burst),
	)
}

func (x *Backend) Validate() error {
	u, err := url.Parse(x.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return goerr.Wrap(ErrInvalidConfig, "api-url must be an absolute URL", goerr.V("api_url", x.baseURL))
	}
	if x.timeout < 0 {
		return goerr.Wrap(ErrInvalidConfig, "api-timeout must not be negative", goerr.V("timeout", x.timeout))
	}
	if x.rateLimit < 0 {
		return goerr.Wrap(ErrInvalidConfig, "api-rate-limit must not be negative", goerr.V("rate_limit", x.rateLimit))
	}
	return nil
}

// Configure builds the shared client. tokens may be nil when every caller
// binds its own credential. Metrics are registered on reg when it is not nil.
func (x *Backend) Configure(tokens backend.TokenStore, reg prometheus.Registerer) (*backend.Client, error) {
	if err := x.Validate(); err != nil {
		return nil, err
	}

	opts := []backend.Option{
		backend.WithTimeout(x.timeout),
		backend.WithUserAgent(x.userAgent),
	}
	if x.rateLimit > 0 {
		opts = append(opts, backend.WithRateLimit(x.rateLimit, x.burst))
	}
	if reg != nil {
		opts = append(opts, backend.WithMetrics(backend.NewMetrics(reg)))
	}

	return backend.New(x.baseURL, tokens, opts...), nil
}
