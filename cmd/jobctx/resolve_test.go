package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testWorkflow = `name: CI
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: make
  deploy:
    name: Deploy app
    runs-on: ubuntu-latest
    environment: prod
    strategy:
      matrix:
        region: [eu]
    steps:
      - run: ./deploy.sh
`

type fakeGitHub struct {
	jobsStatus        int
	deploymentsStatus int
	jobName           string
	logURL            string
}

func (f fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widget/actions/runs/100/attempts/1/jobs", func(w http.ResponseWriter, r *http.Request) {
		if f.jobsStatus != 0 {
			w.WriteHeader(f.jobsStatus)
			fmt.Fprint(w, `{"message": "Resource not accessible by integration"}`)
			return
		}
		fmt.Fprintf(w, `{"total_count": 2, "jobs": [
			{"id": 41, "run_id": 100, "run_attempt": 1, "name": "build", "status": "completed",
			 "html_url": "https://github.com/acme/widget/actions/runs/100/job/41", "runner_name": "GitHub-Actions-3", "runner_id": 3},
			{"id": 42, "run_id": 100, "run_attempt": 1, "name": %q, "status": "in_progress",
			 "html_url": "https://github.com/acme/widget/actions/runs/100/job/42", "runner_name": "GitHub-Actions-7", "runner_id": 7}
		]}`, f.jobName)
	})
	mux.HandleFunc("/repos/acme/widget/deployments", func(w http.ResponseWriter, r *http.Request) {
		if f.deploymentsStatus != 0 {
			w.WriteHeader(f.deploymentsStatus)
			fmt.Fprint(w, `{"message": "Resource not accessible by integration"}`)
			return
		}
		if got := r.URL.Query().Get("sha"); got != "abc123" {
			t.Errorf("deployments sha = %q", got)
		}
		fmt.Fprint(w, `[{"id": 11, "node_id": "DE_11", "sha": "abc123", "creator": {"login": "github-actions[bot]"}}]`)
	})
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data": {"nodes": [
			{"databaseId": 11, "id": "DE_11", "state": "IN_PROGRESS", "task": "deploy", "commitOid": "abc123",
			 "latestEnvironment": "prod",
			 "latestStatus": {"logUrl": %q, "environmentUrl": "https://prod.example.com"}}
		]}}`, f.logURL)
	})
	return mux
}

func defaultFake() fakeGitHub {
	return fakeGitHub{
		jobName: "Deploy app (eu)",
		logURL:  "https://github.com/acme/widget/actions/runs/100/job/42",
	}
}

// setupRunner fakes the environment of a runner executing the deploy job and
// returns the workspace.
func setupRunner(t *testing.T, fake fakeGitHub) string {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	ws := t.TempDir()
	writeFile(t, filepath.Join(ws, ".github", "workflows", "ci.yml"), testWorkflow)

	env := map[string]string{
		"GITHUB_WORKSPACE":       ws,
		"GITHUB_REPOSITORY":      "acme/widget",
		"GITHUB_RUN_ID":          "100",
		"GITHUB_RUN_ATTEMPT":     "1",
		"GITHUB_RUN_NUMBER":      "7",
		"GITHUB_SHA":             "abc123",
		"GITHUB_JOB":             "deploy",
		"GITHUB_WORKFLOW_REF":    "acme/widget/.github/workflows/ci.yml@refs/heads/main",
		"GITHUB_SERVER_URL":      "https://github.com",
		"GITHUB_API_URL":         server.URL,
		"GITHUB_GRAPHQL_URL":     "",
		"GITHUB_OUTPUT":          filepath.Join(ws, "github_output"),
		"GITHUB_ENV":             filepath.Join(ws, "github_env"),
		"GITHUB_TOKEN":           "",
		"RUNNER_NAME":            "GitHub-Actions-7",
		"RUNNER_ID":              "",
		"RUNNER_DEBUG":           "",
		"INPUT_TOKEN":            "test-token",
		"INPUT_MATRIX":           `{"region": "eu"}`,
		"INPUT_#MATRIX":          "",
		"INPUT_JOB-NAME":         "",
		"INPUT_WORKFLOW-CONTEXT": "",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
	return ws
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %q: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %q: %v", path, err)
	}
	return string(data)
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := execute(context.Background(), args, stdout, stderr)
	return code, stdout.String(), stderr.String()
}

var fastArgs = []string{"--initial-delay", "0s", "--retry-delay", "1ms", "--max-attempts", "2"}

func TestResolveCommand(t *testing.T) {
	ws := setupRunner(t, defaultFake())

	code, stdout, stderr := run(t, fastArgs...)
	if code != 0 {
		t.Fatalf("exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}

	want := `output => run_id: 100
output => run_attempt: 1
output => run_number: 7
output => run_url: https://github.com/acme/widget/actions/runs/100/attempts/1
output => job: Deploy app (eu)
output => job_name: Deploy app (eu)
output => job_id: 42
output => job_log_url: https://github.com/acme/widget/actions/runs/100/job/42
output => job_html_url: https://github.com/acme/widget/actions/runs/100/job/42
output => runner_name: GitHub-Actions-7
output => runner_id: 7
output => environment: prod
output => environment_url: https://prod.example.com
output => deployment_id: 11
output => deployment_url: https://github.com/acme/widget/deployments/prod
output => deployment_workflow_url: https://github.com/acme/widget/actions/runs/100/attempts/1
output => deployment_log_url: https://github.com/acme/widget/actions/runs/100/job/42
`
	if diff := diffStrings(want, stdout); diff != "" {
		t.Fatalf("unexpected output:\n%s", diff)
	}

	outputs := readFile(t, filepath.Join(ws, "github_output"))
	for _, fragment := range []string{"job_id<<ghadelimiter_", "\n42\nghadelimiter_", "deployment_id<<ghadelimiter_"} {
		if !strings.Contains(outputs, fragment) {
			t.Fatalf("GITHUB_OUTPUT missing %q:\n%s", fragment, outputs)
		}
	}

	env := readFile(t, filepath.Join(ws, "github_env"))
	for _, fragment := range []string{"JOB_ID<<", "DEPLOYMENT_URL<<", "ENVIRONMENT<<", "RUN_URL<<"} {
		if !strings.Contains(env, fragment) {
			t.Fatalf("GITHUB_ENV missing %q:\n%s", fragment, env)
		}
	}
	if strings.Contains(env, "RUNNER_NAME") {
		t.Fatalf("GITHUB_ENV should only mirror selected outputs:\n%s", env)
	}
}

func TestResolveCommandNoDeployment(t *testing.T) {
	fake := defaultFake()
	fake.logURL = "https://github.com/acme/widget/actions/runs/99/job/42"
	ws := setupRunner(t, fake)

	code, stdout, stderr := run(t, append(fastArgs, "--export-env=false")...)
	if code != 0 {
		t.Fatalf("exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "output => job_id: 42") {
		t.Fatalf("missing job output:\n%s", stdout)
	}
	if strings.Contains(stdout, "deployment") || strings.Contains(stdout, "environment") {
		t.Fatalf("no deployment outputs expected:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(ws, "github_env")); !os.IsNotExist(err) {
		t.Fatalf("GITHUB_ENV should not be written with export-env disabled")
	}
}

func TestResolveCommandJobPermissionError(t *testing.T) {
	fake := defaultFake()
	fake.jobsStatus = http.StatusForbidden
	setupRunner(t, fake)

	code, stdout, _ := run(t, fastArgs...)
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(stdout, "::error::GitHub token is missing permission actions: read") {
		t.Fatalf("missing error command:\n%s", stdout)
	}
	if strings.Contains(stdout, "job_id") {
		t.Fatalf("job outputs must not be emitted on failure:\n%s", stdout)
	}
}

func TestResolveCommandDeploymentPermission(t *testing.T) {
	fake := defaultFake()
	fake.deploymentsStatus = http.StatusForbidden

	t.Run("ignored by default", func(t *testing.T) {
		setupRunner(t, fake)
		code, stdout, stderr := run(t, fastArgs...)
		if code != 0 {
			t.Fatalf("exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
		}
		if !strings.Contains(stdout, "output => job_id: 42") || strings.Contains(stdout, "deployment_id") {
			t.Fatalf("unexpected outputs:\n%s", stdout)
		}
		if !strings.Contains(stderr, "skipping deployment lookup") {
			t.Fatalf("expected warning in log:\n%s", stderr)
		}
		if !strings.Contains(stdout, "::warning::skipping deployment lookup: GitHub token is missing permission deployments: read") {
			t.Fatalf("expected warning command:\n%s", stdout)
		}
	})

	t.Run("fatal when not ignored", func(t *testing.T) {
		setupRunner(t, fake)
		code, stdout, _ := run(t, append(fastArgs, "--ignore-deployment-permission-errors=false")...)
		if code != 1 {
			t.Fatalf("exit code %d, want 1", code)
		}
		if !strings.Contains(stdout, "::error::GitHub token is missing permission deployments: read") {
			t.Fatalf("missing error command:\n%s", stdout)
		}
	})
}

func TestResolveCommandWorkflowNameWarning(t *testing.T) {
	fake := defaultFake()
	fake.jobName = "deploy (eu)"
	ws := setupRunner(t, fake)
	writeFile(t, filepath.Join(ws, ".github", "workflows", "ci.yml"), strings.Replace(testWorkflow,
		"name: Deploy app", "name: Deploy ${{ inputs.app }}", 1))

	code, stdout, stderr := run(t, fastArgs...)
	if code != 0 {
		t.Fatalf("exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.HasPrefix(stdout, "::warning::") || !strings.Contains(stdout, "contains an expression") {
		t.Fatalf("expected warning command before outputs:\n%s", stdout)
	}
	if !strings.Contains(stdout, "output => job: deploy (eu)") {
		t.Fatalf("expected job id as name:\n%s", stdout)
	}

	code, stdout, _ = run(t, append(fastArgs, "--format", "json")...)
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if strings.Contains(stdout, "::warning::") || !strings.Contains(stdout, "contains an expression") {
		t.Fatalf("warning should only appear in the JSON report:\n%s", stdout)
	}
}

func TestResolveCommandJobNotFound(t *testing.T) {
	fake := defaultFake()
	fake.jobName = "Deploy app (us)"
	setupRunner(t, fake)

	code, stdout, _ := run(t, fastArgs...)
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(stdout, `::error::current job "Deploy app (eu)" not found in workflow run 100 after 2 attempts`) {
		t.Fatalf("unexpected error output:\n%s", stdout)
	}
}

func TestResolveCommandJSON(t *testing.T) {
	setupRunner(t, defaultFake())

	code, stdout, stderr := run(t, append(fastArgs, "--format", "json")...)
	if code != 0 {
		t.Fatalf("exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	for _, fragment := range []string{`"job_name": "Deploy app (eu)"`, `"deployment_id": "11"`, `"environment": "prod"`} {
		if !strings.Contains(stdout, fragment) {
			t.Fatalf("JSON output missing %s:\n%s", fragment, stdout)
		}
	}
	if strings.Contains(stdout, "output =>") {
		t.Fatalf("log lines should not be mixed into JSON output:\n%s", stdout)
	}
}

func TestResolveCommandMissingToken(t *testing.T) {
	setupRunner(t, defaultFake())
	t.Setenv("INPUT_TOKEN", "")

	code, stdout, _ := run(t, fastArgs...)
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(stdout, "::error::input token: input required and not supplied") {
		t.Fatalf("unexpected error output:\n%s", stdout)
	}
}

func TestResolveCommandMissingEnvironment(t *testing.T) {
	setupRunner(t, defaultFake())
	t.Setenv("GITHUB_RUN_ID", "")
	t.Setenv("RUNNER_NAME", "")

	code, stdout, _ := run(t, fastArgs...)
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	for _, name := range []string{"GITHUB_RUN_ID", "RUNNER_NAME"} {
		if !strings.Contains(stdout, name) {
			t.Fatalf("error should name %s:\n%s", name, stdout)
		}
	}
}

func diffStrings(want, got string) string {
	if want == got {
		return ""
	}
	return "--- want\n" + want + "\n--- got\n" + got
}
