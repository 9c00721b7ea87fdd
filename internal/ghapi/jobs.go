package ghapi

import (
	"context"

	"github.com/google/go-github/v62/github"
	"github.com/rs/zerolog/log"
)

const (
	ScopeActions     = "actions"
	ScopeDeployments = "deployments"
	PermissionRead   = "read"
)

// ListJobsForAttempt returns every job of one attempt of a workflow run,
// following pagination to the last page.
func (c *Client) ListJobsForAttempt(ctx context.Context, owner, repo string, runID, attempt int64) ([]*github.WorkflowJob, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var all []*github.WorkflowJob
	for {
		jobs, resp, err := c.rest.Actions.ListWorkflowJobsAttempt(ctx, owner, repo, runID, attempt, opts)
		if err != nil {
			return nil, classify(err, ScopeActions, PermissionRead)
		}
		all = append(all, jobs.Jobs...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	log.Debug().
		Int64("run_id", runID).
		Int64("run_attempt", attempt).
		Int("jobs", len(all)).
		Msg("listed workflow jobs")
	return all, nil
}
