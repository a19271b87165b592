package cli

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/prreminder/frontend/pkg/service/backend"
	"github.com/prreminder/frontend/pkg/service/credential"
	"github.com/urfave/cli/v3"
)

// openCredential is replaced in tests with an in-memory keyring.
var openCredential = func() (backend.TokenStore, error) {
	return credential.Open()
}

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow)
	labelColor = color.New(color.FgCyan)
)

func writer(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func reader(c *cli.Command) io.Reader {
	if r := c.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}
