// Package actionenv reads the ambient GitHub Actions execution context.
package actionenv

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
)

const (
	DefaultServerURL = "https://github.com"
	DefaultAPIURL    = "https://api.github.com"
)

var hostedRunnerPattern = regexp.MustCompile(`^GitHub-Actions-(\d+)$`)

// RunContext describes the workflow run, job and runner this process executes in.
// It is built once at startup and never modified.
type RunContext struct {
	Owner       string
	Repo        string
	RunID       int64
	RunAttempt  int64
	RunNumber   int64
	RunnerName  string
	RunnerID    int64
	ServerURL   string
	APIURL      string
	GraphQLURL  string
	SHA         string
	Job         string
	WorkflowRef string
	RunURL      string
}

// Lookup returns the value of an environment variable and whether it is set.
type Lookup func(key string) (string, bool)

// FromEnv builds a RunContext from the process environment.
func FromEnv() (RunContext, error) {
	return Load(os.LookupEnv)
}

// Load builds a RunContext using lookup. All missing or malformed variables are
// reported together in a single error.
func Load(lookup Lookup) (RunContext, error) {
	var result *multierror.Error
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}
	require := func(key string) string {
		v := get(key)
		if v == "" {
			result = multierror.Append(result, errors.Newf("%s is not set", key))
		}
		return v
	}
	requireInt := func(key string) int64 {
		raw := require(key)
		if raw == "" {
			return 0
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			result = multierror.Append(result, errors.Newf("%s must be an integer, got %q", key, raw))
			return 0
		}
		return n
	}

	rc := RunContext{
		RunID:       requireInt("GITHUB_RUN_ID"),
		RunAttempt:  requireInt("GITHUB_RUN_ATTEMPT"),
		RunnerName:  require("RUNNER_NAME"),
		SHA:         require("GITHUB_SHA"),
		Job:         require("GITHUB_JOB"),
		WorkflowRef: get("GITHUB_WORKFLOW_REF"),
		ServerURL:   strings.TrimSuffix(get("GITHUB_SERVER_URL"), "/"),
		APIURL:      strings.TrimSuffix(get("GITHUB_API_URL"), "/"),
		GraphQLURL:  get("GITHUB_GRAPHQL_URL"),
	}

	if repository := require("GITHUB_REPOSITORY"); repository != "" {
		owner, repo, err := ParseRepository(repository)
		if err != nil {
			result = multierror.Append(result, err)
		}
		rc.Owner, rc.Repo = owner, repo
	}

	if raw := get("GITHUB_RUN_NUMBER"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			result = multierror.Append(result, errors.Newf("GITHUB_RUN_NUMBER must be an integer, got %q", raw))
		}
		rc.RunNumber = n
	}

	if rc.RunAttempt < 1 && get("GITHUB_RUN_ATTEMPT") != "" {
		result = multierror.Append(result, errors.Newf("GITHUB_RUN_ATTEMPT must be at least 1, got %d", rc.RunAttempt))
	}

	if raw := get("RUNNER_ID"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			result = multierror.Append(result, errors.Newf("RUNNER_ID must be an integer, got %q", raw))
		}
		rc.RunnerID = n
	} else {
		rc.RunnerID = RunnerIDFromName(rc.RunnerName)
	}

	if rc.ServerURL == "" {
		rc.ServerURL = DefaultServerURL
	}
	if rc.APIURL == "" {
		rc.APIURL = DefaultAPIURL
	}
	if rc.GraphQLURL == "" {
		rc.GraphQLURL = rc.APIURL + "/graphql"
	}

	if err := result.ErrorOrNil(); err != nil {
		return RunContext{}, errors.Wrap(err, "invalid GitHub Actions environment")
	}

	rc.RunURL = WorkflowRunURL(rc.ServerURL, rc.Owner, rc.Repo, rc.RunID, rc.RunAttempt)
	return rc, nil
}

// ParseRepository splits "owner/repo".
func ParseRepository(repository string) (owner, repo string, err error) {
	idx := strings.Index(repository, "/")
	if idx <= 0 || idx == len(repository)-1 {
		return "", "", errors.Newf("invalid repository format %q", repository)
	}
	return repository[:idx], repository[idx+1:], nil
}

// RunnerIDFromName extracts N from hosted runner names of the form "GitHub-Actions-N".
// It returns 0 for any other name.
func RunnerIDFromName(name string) int64 {
	m := hostedRunnerPattern.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// WorkflowRunURL returns the browser URL of a run, including the attempt when it is known.
func WorkflowRunURL(serverURL, owner, repo string, runID, runAttempt int64) string {
	url := fmt.Sprintf("%s/%s/%s/actions/runs/%d", serverURL, owner, repo, runID)
	if runAttempt > 0 {
		url += fmt.Sprintf("/attempts/%d", runAttempt)
	}
	return url
}
