package cli

import (
	"context"
	"fmt"

	"github.com/prreminder/frontend/pkg/cli/config"
	"github.com/prreminder/frontend/pkg/utils/format"
	"github.com/urfave/cli/v3"
)

func cmdWhoami() *cli.Command {
	var backendCfg config.Backend

	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the account of the stored API token",
		Flags: backendCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			api, err := storedClient(ctx, &backendCfg)
			if err != nil {
				return err
			}

			user, err := api.GetCurrentUser(ctx)
			if err != nil {
				return err
			}

			w := writer(c)
			field := func(label, value string) {
				labelColor.Fprintf(w, "%-18s", label)
				fmt.Fprintln(w, value)
			}

			field("Name", user.Name)
			field("Email", user.Email)

			if conn := user.SlackConnection; conn != nil {
				field("Slack", okColor.Sprint("connected"))
				if team := format.SafeString(conn.TeamName); team != "" {
					field("Slack team", team)
				}
			} else {
				field("Slack", warnColor.Sprint("not connected"))
			}

			if user.ForwardingEmail != "" {
				field("Forwarding email", user.ForwardingEmail)
			} else {
				field("Forwarding email", warnColor.Sprint("being provisioned"))
			}

			return nil
		},
	}
}
