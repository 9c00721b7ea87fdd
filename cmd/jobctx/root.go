package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jobctx",
		Short:         "Jobctx resolves the current GitHub Actions job and deployment",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runResolve,
	}

	persistent := cmd.PersistentFlags()
	persistent.String("config", "", "config file (default .jobctx.yml in the workspace)")
	persistent.String("token", "", "GitHub token (defaults to the token input or GITHUB_TOKEN)")
	persistent.String("workflow-context", "", `reusable workflow callers, e.g. '"deploy", {"env": "prod"}'`)
	persistent.String("matrix", "", "matrix of the current job as JSON")
	persistent.String("job-name", "", "unqualified job name, overrides the workflow file lookup")
	persistent.String("workflow-file", "", "workflow file defining the job (default from GITHUB_WORKFLOW_REF)")
	persistent.Duration("initial-delay", 2*time.Second, "wait before the first job lookup")
	persistent.Int("max-attempts", 10, "job lookup attempts")
	persistent.Duration("retry-delay", 2*time.Second, "delay between job lookup attempts")
	persistent.Float64("retry-multiplier", 1.0, "growth factor applied to the retry delay")
	persistent.Bool("ignore-deployment-permission-errors", true, "treat a missing deployments permission as no deployment")
	persistent.Bool("export-env", true, "mirror selected outputs into GITHUB_ENV")
	persistent.String("format", "log", "output format (log|json)")
	persistent.String("log-level", "info", "log level (debug|info|warn|error)")
	persistent.Duration("timeout", 0, "abort after this long (0 disables)")

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newNameCmd())
	cmd.AddCommand(newParseContextCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
