package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/bgricker/jobctx/internal/config"
)

func gatherFlags(cmd *cobra.Command) (config.FlagValues, error) {
	flags := cmd.Flags()
	var values config.FlagValues

	stringFlags := []struct {
		name   string
		target *config.StringFlag
	}{
		{"token", &values.Token},
		{"workflow-context", &values.WorkflowContext},
		{"matrix", &values.Matrix},
		{"job-name", &values.JobName},
		{"workflow-file", &values.WorkflowFile},
		{"format", &values.Format},
		{"log-level", &values.LogLevel},
	}
	for _, f := range stringFlags {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetString(f.name)
		if err != nil {
			return values, errors.Wrapf(err, "parse --%s", f.name)
		}
		*f.target = config.StringFlag{Value: v, Set: true}
	}

	if flags.Changed("initial-delay") {
		v, err := flags.GetDuration("initial-delay")
		if err != nil {
			return values, errors.Wrap(err, "parse --initial-delay")
		}
		values.InitialDelay = config.DurationFlag{Value: v, Set: true}
	}

	if flags.Changed("retry-delay") {
		v, err := flags.GetDuration("retry-delay")
		if err != nil {
			return values, errors.Wrap(err, "parse --retry-delay")
		}
		values.RetryDelay = config.DurationFlag{Value: v, Set: true}
	}

	if flags.Changed("max-attempts") {
		v, err := flags.GetInt("max-attempts")
		if err != nil {
			return values, errors.Wrap(err, "parse --max-attempts")
		}
		values.MaxAttempts = config.IntFlag{Value: v, Set: true}
	}

	if flags.Changed("retry-multiplier") {
		v, err := flags.GetFloat64("retry-multiplier")
		if err != nil {
			return values, errors.Wrap(err, "parse --retry-multiplier")
		}
		values.RetryMultiplier = config.FloatFlag{Value: v, Set: true}
	}

	if flags.Changed("ignore-deployment-permission-errors") {
		v, err := flags.GetBool("ignore-deployment-permission-errors")
		if err != nil {
			return values, errors.Wrap(err, "parse --ignore-deployment-permission-errors")
		}
		values.IgnoreDeploymentPermissionErrors = config.BoolFlag{Value: v, Set: true}
	}

	if flags.Changed("export-env") {
		v, err := flags.GetBool("export-env")
		if err != nil {
			return values, errors.Wrap(err, "parse --export-env")
		}
		values.ExportEnv = config.BoolFlag{Value: v, Set: true}
	}

	return values, nil
}
