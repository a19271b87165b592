package cli

import (
	"bufio"
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/cli/config"
	"github.com/prreminder/frontend/pkg/service/backend"
	"github.com/urfave/cli/v3"
)

var (
	ErrNoToken    = goerr.New("no API token stored, run `prreminder token set` first")
	ErrEmptyToken = goerr.New("token is empty")
)

func cmdToken() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Manage the API token used by the CLI commands",
		Commands: []*cli.Command{
			cmdTokenSet(),
			cmdTokenClear(),
		},
	}
}

func cmdTokenSet() *cli.Command {
	var backendCfg config.Backend
	var verify bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "verify",
			Usage:       "Check the token against the API before storing it",
			Value:       true,
			Destination: &verify,
		},
	}
	flags = append(flags, backendCfg.Flags()...)

	return &cli.Command{
		Name:      "set",
		Usage:     "Store an API token in the OS keyring (reads stdin when no argument is given)",
		ArgsUsage: "[TOKEN]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			token := strings.TrimSpace(c.Args().First())
			if token == "" {
				line, err := bufio.NewReader(reader(c)).ReadString('\n')
				if err != nil && line == "" {
					return goerr.Wrap(ErrEmptyToken, "failed to read token from stdin")
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return ErrEmptyToken
			}

			w := writer(c)

			if verify {
				api, err := backendCfg.Configure(backend.StaticToken(token), nil)
				if err != nil {
					return err
				}
				user, err := api.GetCurrentUser(ctx)
				if err != nil {
					return goerr.Wrap(err, "token was rejected by the API")
				}
				labelColor.Fprint(w, "Verified: ")
				_, _ = w.Write([]byte(user.Name + " <" + user.Email + ">\n"))
			}

			store, err := openCredential()
			if err != nil {
				return err
			}
			if err := store.SetToken(ctx, token); err != nil {
				return err
			}

			okColor.Fprintln(w, "Token stored")
			return nil
		},
	}
}

func cmdTokenClear() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove the stored API token",
		Action: func(ctx context.Context, c *cli.Command) error {
			store, err := openCredential()
			if err != nil {
				return err
			}
			if err := store.ClearToken(ctx); err != nil {
				return err
			}

			okColor.Fprintln(writer(c), "Token cleared")
			return nil
		},
	}
}

// storedClient returns a client reading the keyring token. It fails early
// when no token is stored.
func storedClient(ctx context.Context, cfg *config.Backend) (*backend.Client, error) {
	store, err := openCredential()
	if err != nil {
		return nil, err
	}
	token, err := store.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNoToken
	}
	return cfg.Configure(store, nil)
}
