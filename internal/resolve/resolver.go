// Package resolve identifies the workflow job and deployment of the running process.
package resolve

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/rs/zerolog/log"

	"github.com/bgricker/jobctx/internal/actionenv"
	"github.com/bgricker/jobctx/internal/retry"
)

const (
	statusInProgress = "in_progress"

	// ActionsBotLogin creates the deployments that workflow jobs run against.
	ActionsBotLogin = "github-actions[bot]"
)

// errJobNotListed marks an attempt that found no matching job yet.
var errJobNotListed = errors.New("job not listed yet")

// Option configures a Resolver.
type Option func(*Resolver)

// WithRetry sets the retry policy used while the job list catches up.
func WithRetry(opts ...retry.Option) Option {
	return func(r *Resolver) {
		r.retryOpts = append(r.retryOpts, opts...)
	}
}

// Resolver finds the current job and deployment once and caches the results
// for the lifetime of the instance.
type Resolver struct {
	api       API
	rc        actionenv.RunContext
	jobName   string
	retryOpts []retry.Option

	jobMu sync.Mutex
	job   *Job

	deploymentMu   sync.Mutex
	deploymentDone bool
	deployment     *Deployment
}

// New creates a Resolver looking for the job named jobName, the absolute name
// GitHub lists for the job.
func New(api API, rc actionenv.RunContext, jobName string, opts ...Option) *Resolver {
	r := &Resolver{
		api:     api,
		rc:      rc,
		jobName: jobName,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Job returns the job running this process. The job list is polled until the
// job shows up; an ambiguous match fails immediately.
func (r *Resolver) Job(ctx context.Context) (*Job, error) {
	r.jobMu.Lock()
	defer r.jobMu.Unlock()

	if r.job != nil {
		return r.job, nil
	}

	cfg := retry.DefaultConfig()
	for _, opt := range r.retryOpts {
		opt(&cfg)
	}

	logger := log.With().Int64("run_id", r.rc.RunID).Str("job", r.jobName).Logger()

	var found *Job
	opts := []retry.Option{
		retry.WithRetryCondition(func(err error) bool {
			return errors.Is(err, errJobNotListed)
		}),
		retry.WithOnRetry(func(attempt int, delay time.Duration, _ error) {
			logger.Info().Int("attempt", attempt).Dur("delay", delay).Msg("current job not listed yet, retrying")
		}),
	}
	opts = append(opts, r.retryOpts...)

	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
		jobs, err := r.api.ListJobsForAttempt(ctx, r.rc.Owner, r.rc.Repo, r.rc.RunID, r.rc.RunAttempt)
		if err != nil {
			return err
		}
		candidates, err := r.match(jobs)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			logger.Debug().Int("attempt", attempt).Int("jobs", len(jobs)).Msg("no running job matches")
			return errJobNotListed
		}
		job := toJob(candidates[0])
		found = &job
		return nil
	}, opts...)
	if err != nil {
		if errors.Is(err, retry.ErrMaxRetriesExceeded) {
			return nil, &JobNotFoundError{Name: r.jobName, RunID: r.rc.RunID, Attempts: cfg.MaxAttempts}
		}
		return nil, err
	}

	logger.Debug().Int64("job_id", found.ID).Msg("resolved current job")
	r.job = found
	return r.job, nil
}

// match narrows the run's jobs to the ones that can be this process: running,
// carrying the expected name and, when that is not unique, our runner.
func (r *Resolver) match(jobs []*github.WorkflowJob) ([]*github.WorkflowJob, error) {
	var named []*github.WorkflowJob
	for _, j := range jobs {
		if j.GetStatus() != statusInProgress || j.GetName() != r.jobName {
			continue
		}
		named = append(named, j)
	}
	if len(named) <= 1 {
		return named, nil
	}

	var mine []*github.WorkflowJob
	for _, j := range named {
		if r.sameRunner(j) {
			mine = append(mine, j)
		}
	}
	if len(mine) == 1 {
		return mine, nil
	}

	candidates := make([]Job, 0, len(named))
	for _, j := range named {
		candidates = append(candidates, toJob(j))
	}
	return nil, &AmbiguousJobError{Name: r.jobName, Candidates: candidates}
}

func (r *Resolver) sameRunner(j *github.WorkflowJob) bool {
	if r.rc.RunnerID != 0 && j.GetRunnerID() != 0 {
		return r.rc.RunnerID == j.GetRunnerID()
	}
	return r.rc.RunnerName != "" && r.rc.RunnerName == j.GetRunnerName()
}

// Deployment returns the in-progress deployment whose latest status points at
// the current job, or nil when the job is not deploying anything.
func (r *Resolver) Deployment(ctx context.Context) (*Deployment, error) {
	job, err := r.Job(ctx)
	if err != nil {
		return nil, err
	}

	r.deploymentMu.Lock()
	defer r.deploymentMu.Unlock()

	if r.deploymentDone {
		return r.deployment, nil
	}

	deployment, err := r.findDeployment(ctx, job)
	if err != nil {
		return nil, err
	}
	r.deployment = deployment
	r.deploymentDone = true
	return r.deployment, nil
}

func (r *Resolver) findDeployment(ctx context.Context, job *Job) (*Deployment, error) {
	deployments, err := r.api.ListDeployments(ctx, r.rc.Owner, r.rc.Repo, r.rc.SHA)
	if err != nil {
		return nil, err
	}

	var nodeIDs []string
	for _, d := range deployments {
		if d.GetCreator().GetLogin() != ActionsBotLogin || d.GetNodeID() == "" {
			continue
		}
		nodeIDs = append(nodeIDs, d.GetNodeID())
	}
	if len(nodeIDs) == 0 {
		log.Debug().Str("sha", r.rc.SHA).Msg("no workflow deployments for commit")
		return nil, nil
	}

	details, err := r.api.DeploymentDetails(ctx, nodeIDs)
	if err != nil {
		return nil, err
	}

	for _, d := range details {
		if d.Task != "deploy" || !strings.EqualFold(d.State, "in_progress") || d.CommitOID != r.rc.SHA {
			continue
		}
		if !r.logURLMatches(d.LogURL, job.ID) {
			continue
		}
		log.Debug().Int64("deployment_id", d.ID).Int64("job_id", job.ID).Msg("resolved current deployment")
		return &Deployment{
			ID:             d.ID,
			Environment:    d.Environment,
			EnvironmentURL: d.EnvironmentURL,
			URL:            r.rc.ServerURL + "/" + r.rc.Owner + "/" + r.rc.Repo + "/deployments/" + url.PathEscape(d.Environment),
			WorkflowURL:    r.rc.RunURL,
			LogURL:         d.LogURL,
		}, nil
	}
	return nil, nil
}

// logURLMatches reports whether logURL is {server}/{owner}/{repo}/actions/runs/{run}/job/{job}
// for the current run and jobID.
func (r *Resolver) logURLMatches(logURL string, jobID int64) bool {
	if logURL == "" {
		return false
	}
	u, err := url.Parse(logURL)
	if err != nil {
		return false
	}
	server, err := url.Parse(r.rc.ServerURL)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, server.Scheme) || !strings.EqualFold(u.Host, server.Host) {
		return false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) != 7 {
		return false
	}
	return strings.EqualFold(segments[0], r.rc.Owner) &&
		strings.EqualFold(segments[1], r.rc.Repo) &&
		segments[2] == "actions" &&
		segments[3] == "runs" &&
		segments[4] == strconv.FormatInt(r.rc.RunID, 10) &&
		segments[5] == "job" &&
		segments[6] == strconv.FormatInt(jobID, 10)
}
