package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bgricker/jobctx/internal/config"
	"github.com/bgricker/jobctx/internal/discovery"
	"github.com/bgricker/jobctx/internal/logging"
	"github.com/bgricker/jobctx/internal/matrix"
	"github.com/bgricker/jobctx/internal/workflow"
)

// jobIdentity is the parsed naming input of the current job.
type jobIdentity struct {
	name     string
	warnings []string
}

// loadConfig merges defaults, the config file, action inputs and flags, then
// configures logging from the result.
func loadConfig(cmd *cobra.Command) (config.Config, string, error) {
	root, err := workspaceRoot()
	if err != nil {
		return config.Config{}, "", err
	}

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, "", errors.Wrap(err, "parse --config")
	}

	cfg, err := config.Load(root, path)
	if err != nil {
		return config.Config{}, "", err
	}

	if err := config.ApplyInputs(&cfg, config.NewInputSource()); err != nil {
		return config.Config{}, "", err
	}

	flags, err := gatherFlags(cmd)
	if err != nil {
		return config.Config{}, "", err
	}
	config.ApplyFlags(&cfg, flags)

	if cfg.Token == "" {
		cfg.Token = os.Getenv("GITHUB_TOKEN")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", err
	}
	if err := logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel); err != nil {
		return config.Config{}, "", &config.InputError{Field: "log-level", Value: cfg.LogLevel, Err: err}
	}

	return cfg, root, nil
}

func workspaceRoot() (string, error) {
	if ws := strings.TrimSpace(os.Getenv("GITHUB_WORKSPACE")); ws != "" {
		return ws, nil
	}
	root, err := os.Getwd()
	if err != nil {
		return "", errors.Wrap(err, "determine working directory")
	}
	return root, nil
}

// resolveJobName computes the absolute name GitHub lists for the current job.
// The unqualified name is, in order: the job-name input, the display name from
// the workflow file when the job is not called through a reusable workflow, the job id.
func resolveJobName(root string, cfg config.Config, jobID, workflowRef string) (jobIdentity, error) {
	chain, err := workflow.ParseContext(cfg.WorkflowContext)
	if err != nil {
		return jobIdentity{}, err
	}

	m, err := matrix.Parse(cfg.Matrix)
	if err != nil {
		return jobIdentity{}, &config.InputError{Field: config.InputMatrix, Value: cfg.Matrix, Err: err}
	}

	var id jobIdentity
	base := cfg.JobName
	if base == "" {
		base = jobID
		if len(chain) == 0 && jobID != "" {
			name, warning, err := displayName(root, cfg.WorkflowFile, jobID, workflowRef)
			if err != nil {
				return jobIdentity{}, err
			}
			if warning != "" {
				id.warnings = append(id.warnings, warning)
			}
			base = name
		}
	}
	if base == "" {
		return jobIdentity{}, &config.InputError{Field: config.InputJobName, Err: errors.New("job name unknown, set GITHUB_JOB or the job-name input")}
	}

	id.name = workflow.AbsoluteName(workflow.NameInput{Job: base, Matrix: m, Chain: chain})
	return id, nil
}

// displayName looks up the job's name: key in the running workflow file. A
// workflow that cannot be located leaves the job id in place.
func displayName(root, explicit, jobID, workflowRef string) (string, string, error) {
	path, err := discovery.Workflow(root, explicit, workflowRef)
	if err != nil {
		if errors.Is(err, discovery.ErrNoWorkflow) && explicit == "" {
			log.Debug().Err(err).Msg("using job id as job name")
			return jobID, "", nil
		}
		return "", "", err
	}

	def, err := workflow.NewParser(root).Parse(path)
	if err != nil {
		return "", "", err
	}

	name, warning := def.DisplayName(jobID)
	if warning != nil {
		msg := fmt.Sprintf("%s:%s: %s", warning.Workflow, warning.Job, warning.Message)
		log.Warn().Str("workflow", warning.Workflow).Str("job", warning.Job).Msg(warning.Message)
		return name, msg, nil
	}
	log.Debug().Str("workflow", path).Str("job", jobID).Str("name", name).Msg("job display name from workflow file")
	return name, "", nil
}
