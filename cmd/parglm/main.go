// Command parglm fits generalized linear models to large datasets with a
// parallel blockwise QR factorization.
package main

import (
	"context"
	"os"

	"github.com/agbru/parglm/internal/app"
	apperrors "github.com/agbru/parglm/internal/errors"
)

func main() {
	if app.HasVersionFlag(os.Args[1:]) {
		app.PrintVersion(os.Stdout)
		os.Exit(apperrors.ExitSuccess)
	}

	application, err := app.New(os.Args, os.Stderr)
	if err != nil {
		if app.IsHelpError(err) {
			os.Exit(apperrors.ExitSuccess)
		}
		os.Exit(apperrors.ExitErrorConfig)
	}
	os.Exit(application.Run(context.Background(), os.Stdout))
}
