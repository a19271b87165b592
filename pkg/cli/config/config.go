package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	httpctrl "github.com/prreminder/frontend/pkg/controller/http"
	"github.com/prreminder/frontend/pkg/domain/model"
)

// AppConfig is the optional TOML file of UI defaults.
type AppConfig struct {
	AppName   string          `toml:"app_name"`
	Dashboard DashboardConfig `toml:"dashboard"`
}

// DashboardConfig sets the initial list state and panel sizes.
type DashboardConfig struct {
	Status       string `toml:"status"`
	PageLimit    int    `toml:"page_limit"`
	SortBy       string `toml:"sort_by"`
	SortOrder    string `toml:"sort_order"`
	SummaryDays  int    `toml:"summary_days"`
	PendingLimit int    `toml:"pending_limit"`
	StaleLimit   int    `toml:"stale_limit"`
}

// Validate checks the dashboard section. Zero values mean "use the default".
func (d *DashboardConfig) Validate() error {
	if _, err := model.ParsePRStatus(d.Status); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid dashboard status", goerr.V(FieldKey, "dashboard.status"), goerr.V("status", d.Status))
	}
	if err := d.filters().Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, err.Error(), goerr.V(FieldKey, "dashboard"))
	}
	if d.SummaryDays < 0 {
		return goerr.Wrap(ErrInvalidConfig, "summary_days must not be negative", goerr.V(FieldKey, "dashboard.summary_days"))
	}
	if d.PendingLimit < 0 || d.PendingLimit > model.MaxPageLimit {
		return goerr.Wrap(ErrInvalidConfig, "pending_limit out of range", goerr.V(FieldKey, "dashboard.pending_limit"))
	}
	if d.StaleLimit < 0 || d.StaleLimit > model.MaxPageLimit {
		return goerr.Wrap(ErrInvalidConfig, "stale_limit out of range", goerr.V(FieldKey, "dashboard.stale_limit"))
	}
	return nil
}

func (d *DashboardConfig) filters() model.NotificationFilters {
	f := model.DefaultFilters()
	f.Status, _ = model.ParsePRStatus(d.Status)
	if d.PageLimit != 0 {
		f.Limit = d.PageLimit
	}
	if d.SortBy != "" {
		f.SortBy = d.SortBy
	}
	if d.SortOrder != "" {
		f.SortOrder = d.SortOrder
	}
	return f
}

// Validate checks the whole configuration
func (a *AppConfig) Validate() error {
	if err := a.Dashboard.Validate(); err != nil {
		return err
	}
	return nil
}

// DefaultFilters returns the initial notification filters of new sessions.
func (a *AppConfig) DefaultFilters() model.NotificationFilters {
	if a == nil {
		return model.DefaultFilters()
	}
	return a.Dashboard.filters()
}

// UIOptions returns the page rendering options. Unset fields fall back to
// the server defaults.
func (a *AppConfig) UIOptions() httpctrl.UIOptions {
	if a == nil {
		return httpctrl.DefaultUIOptions()
	}
	return httpctrl.UIOptions{
		AppName:      a.AppName,
		SummaryDays:  a.Dashboard.SummaryDays,
		PendingLimit: a.Dashboard.PendingLimit,
		StaleLimit:   a.Dashboard.StaleLimit,
	}
}

// LoadAppConfiguration loads the application configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "failed to read config file", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config", goerr.V(ConfigPathKey, path), goerr.V("error", err.Error()))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}
