package cli

import (
	"context"
	"io"

	"github.com/prreminder/frontend/pkg/service/backend"
)

// SetCredential makes the CLI commands use store instead of the OS keyring.
func SetCredential(store backend.TokenStore) func() {
	orig := openCredential
	openCredential = func() (backend.TokenStore, error) { return store, nil }
	return func() { openCredential = orig }
}

func RunWithIO(ctx context.Context, args []string, r io.Reader, w io.Writer) error {
	app := newApp("test", w)
	app.Reader = r
	return app.Run(ctx, args)
}
