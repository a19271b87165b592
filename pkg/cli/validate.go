package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/cli/config"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/usecase"
	"github.com/prreminder/frontend/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var configPath string
	var checkRepository bool
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "TOML file with UI defaults",
			Sources:     cli.EnvVars("PRREMINDER_CONFIG"),
			Destination: &configPath,
		},
		&cli.BoolFlag{
			Name:        "check-repository",
			Usage:       "Also write, read and delete a check session in the configured repository",
			Destination: &checkRepository,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the configuration file and optionally the session repository",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			if configPath == "" && !checkRepository {
				return goerr.Wrap(config.ErrInvalidConfig, "nothing to validate, pass --config and/or --check-repository")
			}

			// Step 1: Load and validate the configuration file
			if configPath != "" {
				appCfg, err := config.LoadAppConfiguration(configPath)
				if err != nil {
					return goerr.Wrap(err, "configuration validation failed")
				}
				f := appCfg.DefaultFilters()
				logger.Info("Configuration validation passed",
					"path", configPath,
					"app_name", appCfg.UIOptions().AppName,
					"page_limit", f.Limit,
					"sort", f.SortBy+" "+f.SortOrder,
				)
			}

			if !checkRepository {
				return nil
			}

			// Step 2: Round trip a check session through the repository
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			sessions := usecase.NewSessionStore(repo, model.DefaultSessionTTL)
			check, err := sessions.Start(ctx)
			if err != nil {
				return goerr.Wrap(err, "repository check failed on write", goerr.V("backend", repoCfg.Backend()))
			}
			if _, err := sessions.Get(ctx, check.ID); err != nil {
				return goerr.Wrap(err, "repository check failed on read", goerr.V("backend", repoCfg.Backend()))
			}
			if err := sessions.Delete(ctx, check.ID); err != nil {
				return goerr.Wrap(err, "repository check failed on delete", goerr.V("backend", repoCfg.Backend()))
			}

			logger.Info("Repository check passed", "repository", repoCfg)
			return nil
		},
	}
}
