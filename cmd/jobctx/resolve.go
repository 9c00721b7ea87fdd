package main

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bgricker/jobctx/internal/actionenv"
	"github.com/bgricker/jobctx/internal/config"
	"github.com/bgricker/jobctx/internal/ghapi"
	"github.com/bgricker/jobctx/internal/output"
	"github.com/bgricker/jobctx/internal/report"
	"github.com/bgricker/jobctx/internal/resolve"
	"github.com/bgricker/jobctx/internal/retry"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the current job and deployment and set step outputs",
		Args:  cobra.NoArgs,
		RunE:  runResolve,
	}
}

// sinks receives outputs as soon as each stage resolves.
type sinks struct {
	format   string
	stdout   io.Writer
	log      *output.LogRenderer
	output   *output.FileCommand
	env      *output.FileCommand
	all      report.Outputs
	warnings []string
}

func newSinks(cmd *cobra.Command, cfg config.Config) *sinks {
	s := &sinks{
		format: strings.ToLower(cfg.Format),
		stdout: cmd.OutOrStdout(),
		log:    output.NewLog(cmd.OutOrStdout()),
		output: output.NewFileCommand("GITHUB_OUTPUT"),
	}
	if cfg.ExportEnv {
		s.env = output.NewFileCommand("GITHUB_ENV")
	}
	if s.output == nil {
		log.Warn().Msg("GITHUB_OUTPUT is not set, outputs are only logged")
	}
	return s
}

func (s *sinks) emit(outputs report.Outputs) error {
	if len(outputs) == 0 {
		return nil
	}
	s.all = append(s.all, outputs...)

	if s.output != nil {
		if err := s.output.Write(outputs); err != nil {
			return err
		}
	}
	if s.env != nil {
		if err := s.env.Write(outputs.Env()); err != nil {
			return err
		}
	}
	if s.format == config.FormatLog {
		return s.log.RenderOutputs(outputs)
	}
	return nil
}

// warn records msg for the JSON report, or annotates the step with it in log format.
func (s *sinks) warn(msg string) {
	s.warnings = append(s.warnings, msg)
	if s.format == config.FormatLog {
		output.Warning(s.stdout, msg)
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	rc, err := actionenv.FromEnv()
	if err != nil {
		return err
	}

	identity, err := resolveJobName(root, cfg, rc.Job, rc.WorkflowRef)
	if err != nil {
		return err
	}
	log.Info().Str("job", identity.name).Int64("run_id", rc.RunID).Int64("run_attempt", rc.RunAttempt).Msg("resolving current job")

	ctx, cancel, err := withTimeout(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	client, err := ghapi.New(ctx, ghapi.Options{
		Token:      cfg.Token,
		APIURL:     rc.APIURL,
		GraphQLURL: rc.GraphQLURL,
	})
	if err != nil {
		return err
	}

	out := newSinks(cmd, cfg)
	for _, w := range identity.warnings {
		out.warn(w)
	}
	if err := out.emit(report.Run(rc)); err != nil {
		return err
	}

	// the jobs list lags behind job start
	if err := sleep(ctx, cfg.InitialDelay); err != nil {
		return err
	}

	resolver := resolve.New(client, rc, identity.name, resolve.WithRetry(
		retry.WithMaxAttempts(cfg.MaxAttempts),
		retry.WithDelay(cfg.RetryDelay),
		retry.WithBackoffMultiplier(cfg.RetryMultiplier),
	))

	job, err := resolver.Job(ctx)
	if err != nil {
		return err
	}
	if err := out.emit(report.Job(job)); err != nil {
		return err
	}

	deployment, err := resolver.Deployment(ctx)
	if err != nil {
		if !cfg.IgnoreDeploymentPermissionErrors || !ghapi.IsPermissionError(err, ghapi.ScopeDeployments) {
			return err
		}
		log.Warn().Err(err).Msg("skipping deployment lookup")
		out.warn("skipping deployment lookup: " + err.Error())
		deployment = nil
	}
	if deployment == nil {
		log.Info().Msg("no in-progress deployment for this job")
	}
	if err := out.emit(report.Deployment(deployment)); err != nil {
		return err
	}

	if out.format == config.FormatJSON {
		rep := output.NewReport(identity.name, job, deployment, out.all, out.warnings)
		return output.NewJSON(cmd.OutOrStdout()).Render(rep)
	}
	return nil
}

func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse --timeout")
	}
	if timeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
