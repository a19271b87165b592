package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/cli/config"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

func cmdExport() *cli.Command {
	var backendCfg config.Backend
	var query model.ExportQuery
	var output string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "Export format (csv or json)",
			Value:       "csv",
			Destination: &query.Format,
		},
		&cli.IntFlag{
			Name:        "days",
			Aliases:     []string{"d"},
			Usage:       "Only export notifications received in the last N days (0 exports all)",
			Destination: &query.Days,
		},
		&cli.StringFlag{
			Name:        "repo",
			Aliases:     []string{"r"},
			Usage:       "Only export notifications of this repository",
			Destination: &query.RepoFilter,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Output file, \"-\" for stdout (defaults to the name suggested by the API)",
			Destination: &output,
		},
	}
	flags = append(flags, backendCfg.Flags()...)

	return &cli.Command{
		Name:  "export",
		Usage: "Download PR notifications as CSV or JSON",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			switch query.Format {
			case "csv", "json":
			default:
				return goerr.Wrap(config.ErrInvalidConfig, "format must be csv or json", goerr.V("format", query.Format))
			}
			if query.Days < 0 {
				return goerr.Wrap(config.ErrInvalidConfig, "days must not be negative", goerr.V("days", query.Days))
			}

			api, err := storedClient(ctx, &backendCfg)
			if err != nil {
				return err
			}

			export, err := api.Export(ctx, query)
			if err != nil {
				return err
			}

			w := writer(c)
			if output == "-" {
				_, err := w.Write(export.Body)
				return err
			}

			path := output
			if path == "" {
				path = filepath.Base(export.Filename)
			}
			if err := os.WriteFile(path, export.Body, 0600); err != nil {
				return goerr.Wrap(err, "failed to write export", goerr.V("path", path))
			}

			okColor.Fprintf(w, "Saved %d bytes to %s\n", len(export.Body), path)
			return nil
		},
	}
}
