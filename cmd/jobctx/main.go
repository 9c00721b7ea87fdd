package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/bgricker/jobctx/internal/logging"
	"github.com/bgricker/jobctx/internal/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps a failure to an ::error:: command and exit status 1.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := logging.Setup(stderr, "info"); err != nil {
		output.Error(stdout, err.Error())
		return 1
	}

	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Error().Msgf("%+v", err)
		output.Error(stdout, err.Error())
		return 1
	}
	return 0
}
