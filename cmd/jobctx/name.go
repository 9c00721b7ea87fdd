package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bgricker/jobctx/internal/config"
	"github.com/bgricker/jobctx/internal/matrix"
	"github.com/bgricker/jobctx/internal/output"
	"github.com/bgricker/jobctx/internal/workflow"
)

func newNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name",
		Short: "Print the absolute job name GitHub lists for the current job",
		Long: `Print the absolute job name built from the job name, matrix and workflow context.
Useful to check a workflow-context value before wiring it into a workflow.`,
		Args: cobra.NoArgs,
		RunE: runName,
	}
}

func runName(cmd *cobra.Command, args []string) error {
	cfg, root, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	identity, err := resolveJobName(root, cfg, os.Getenv("GITHUB_JOB"), os.Getenv("GITHUB_WORKFLOW_REF"))
	if err != nil {
		return err
	}

	if strings.ToLower(cfg.Format) == config.FormatJSON {
		return output.NewJSON(cmd.OutOrStdout()).Encode(map[string]any{
			"job_name": identity.name,
			"warnings": identity.warnings,
		})
	}
	return output.NewLog(cmd.OutOrStdout()).RenderName(identity.name)
}

func newParseContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse-context [workflow-context]",
		Short: "Parse a workflow-context value and print the caller chain as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runParseContext,
	}
}

// contextLink is the JSON view of one caller in a workflow-context chain.
type contextLink struct {
	Job    string `json:"job"`
	Matrix any    `json:"matrix"`
	Name   string `json:"name"`
}

func runParseContext(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	raw := cfg.WorkflowContext
	if len(args) == 1 {
		raw = args[0]
	}

	chain, err := workflow.ParseContext(raw)
	if err != nil {
		return err
	}

	links := make([]contextLink, 0, len(chain))
	for _, link := range chain {
		links = append(links, contextLink{
			Job:    link.Job,
			Matrix: matrix.ToInterface(link.Matrix),
			Name:   workflow.AbsoluteName(workflow.NameInput{Job: link.Job, Matrix: link.Matrix}),
		})
	}
	return output.NewJSON(cmd.OutOrStdout()).Encode(links)
}
