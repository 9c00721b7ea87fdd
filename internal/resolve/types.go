package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v62/github"

	"github.com/bgricker/jobctx/internal/ghapi"
)

// API is the subset of the GitHub API the resolvers need.
type API interface {
	ListJobsForAttempt(ctx context.Context, owner, repo string, runID, attempt int64) ([]*github.WorkflowJob, error)
	ListDeployments(ctx context.Context, owner, repo, sha string) ([]*github.Deployment, error)
	DeploymentDetails(ctx context.Context, nodeIDs []string) ([]ghapi.DeploymentDetail, error)
}

// Job is the workflow job executing the current process.
type Job struct {
	ID         int64  `json:"id"`
	RunID      int64  `json:"run_id"`
	RunAttempt int64  `json:"run_attempt"`
	Name       string `json:"name"`
	HTMLURL    string `json:"html_url"`
	RunnerName string `json:"runner_name"`
	RunnerID   int64  `json:"runner_id"`
	Status     string `json:"status"`
}

// Deployment is the in-progress deployment driven by the current job.
type Deployment struct {
	ID             int64  `json:"id"`
	Environment    string `json:"environment"`
	EnvironmentURL string `json:"environment_url,omitempty"`
	URL            string `json:"url"`
	WorkflowURL    string `json:"workflow_url"`
	LogURL         string `json:"log_url"`
}

// JobNotFoundError means no running job matched the expected name before retries ran out.
type JobNotFoundError struct {
	Name     string
	RunID    int64
	Attempts int
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("current job %q not found in workflow run %d after %d attempts", e.Name, e.RunID, e.Attempts)
}

// AmbiguousJobError means several running jobs matched and the runner could not tell them apart.
type AmbiguousJobError struct {
	Name       string
	Candidates []Job
}

func (e *AmbiguousJobError) Error() string {
	parts := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		parts = append(parts, fmt.Sprintf("%q (id %d, runner %s)", c.Name, c.ID, c.RunnerName))
	}
	return fmt.Sprintf("current job %q is ambiguous, %d running jobs match: %s; pass the workflow-context input to disambiguate",
		e.Name, len(e.Candidates), strings.Join(parts, ", "))
}

func toJob(j *github.WorkflowJob) Job {
	return Job{
		ID:         j.GetID(),
		RunID:      j.GetRunID(),
		RunAttempt: j.GetRunAttempt(),
		Name:       j.GetName(),
		HTMLURL:    j.GetHTMLURL(),
		RunnerName: j.GetRunnerName(),
		RunnerID:   j.GetRunnerID(),
		Status:     j.GetStatus(),
	}
}
