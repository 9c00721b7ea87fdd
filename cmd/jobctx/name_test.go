package main

import (
	"path/filepath"
	"strings"
	"testing"
)

// isolate clears the inputs a surrounding runner could leak into the test.
func isolate(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	for k, v := range map[string]string{
		"GITHUB_WORKSPACE":       ws,
		"GITHUB_JOB":             "",
		"GITHUB_WORKFLOW_REF":    "",
		"INPUT_MATRIX":           "",
		"INPUT_#MATRIX":          "",
		"INPUT_JOB-NAME":         "",
		"INPUT_WORKFLOW-CONTEXT": "",
		"INPUT_WORKFLOW-FILE":    "",
		"RUNNER_DEBUG":           "",
	} {
		t.Setenv(k, v)
	}
	return ws
}

func TestNameCommand(t *testing.T) {
	isolate(t)

	code, stdout, stderr := run(t, "name",
		"--job-name", "test",
		"--matrix", `{"os": "linux", "node": 20}`,
		"--workflow-context", `"build-job", {"target": "x64"}, "parent-build-job", {"parentValue": "a"}`,
	)
	if code != 0 {
		t.Fatalf("exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}

	want := "parent-build-job (a) / build-job (x64) / test (linux, 20)\n"
	if diff := diffStrings(want, stdout); diff != "" {
		t.Fatalf("unexpected output:\n%s", diff)
	}
}

func TestNameCommandWorkflowDisplayName(t *testing.T) {
	ws := isolate(t)
	writeFile(t, filepath.Join(ws, ".github", "workflows", "ci.yml"), testWorkflow)
	t.Setenv("GITHUB_JOB", "deploy")
	t.Setenv("GITHUB_WORKFLOW_REF", "acme/widget/.github/workflows/ci.yml@refs/pull/1/merge")
	t.Setenv("INPUT_MATRIX", `{"region": "eu"}`)

	code, stdout, stderr := run(t, "name")
	if code != 0 {
		t.Fatalf("exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if diff := diffStrings("Deploy app (eu)\n", stdout); diff != "" {
		t.Fatalf("unexpected output:\n%s", diff)
	}
}

func TestNameCommandExpressionNameFallsBackToID(t *testing.T) {
	ws := isolate(t)
	writeFile(t, filepath.Join(ws, "wf.yml"), `jobs:
  release:
    name: Release ${{ inputs.channel }}
    runs-on: ubuntu-latest
`)
	t.Setenv("GITHUB_JOB", "release")

	code, stdout, stderr := run(t, "name", "--workflow-file", "wf.yml", "--format", "json")
	if code != 0 {
		t.Fatalf("exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, `"job_name": "release"`) {
		t.Fatalf("expected job id as name:\n%s", stdout)
	}
	if !strings.Contains(stdout, "contains an expression") {
		t.Fatalf("expected warning in JSON:\n%s", stdout)
	}
}

func TestNameCommandMissingWorkflowFile(t *testing.T) {
	isolate(t)
	t.Setenv("GITHUB_JOB", "release")

	code, stdout, stderr := run(t, "name", "--workflow-file", "missing.yml")
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(stdout, `::error::workflow "missing.yml" not found`) {
		t.Fatalf("unexpected error output:\n%s", stdout)
	}
	if !strings.Contains(stderr, "attached stack trace") || !strings.Contains(stderr, "discovery.resolveExplicit") {
		t.Fatalf("log should carry the error's stack:\n%s", stderr)
	}
}

func TestNameCommandMalformedContext(t *testing.T) {
	isolate(t)

	code, stdout, _ := run(t, "name", "--job-name", "test", "--workflow-context", `{"a": 1}`)
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(stdout, "::error::invalid workflow context") || !strings.Contains(stdout, `"<job>", <matrix-json|null>`) {
		t.Fatalf("error should show the expected format:\n%s", stdout)
	}
}

func TestNameCommandMalformedMatrix(t *testing.T) {
	isolate(t)

	code, stdout, _ := run(t, "name", "--job-name", "test", "--matrix", `{"os":`)
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(stdout, "::error::input matrix=") {
		t.Fatalf("error should name the matrix input:\n%s", stdout)
	}
}

func TestParseContextCommand(t *testing.T) {
	isolate(t)

	code, stdout, stderr := run(t, "parse-context", `"deploy", {"env": "prod"}, "release", null,`)
	if code != 0 {
		t.Fatalf("exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}

	want := `[
  {
    "job": "deploy",
    "matrix": {
      "env": "prod"
    },
    "name": "deploy (prod)"
  },
  {
    "job": "release",
    "matrix": null,
    "name": "release"
  }
]
`
	if diff := diffStrings(want, stdout); diff != "" {
		t.Fatalf("unexpected output:\n%s", diff)
	}
}

func TestVersionCommand(t *testing.T) {
	isolate(t)

	code, stdout, _ := run(t, "version")
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.HasPrefix(stdout, "jobctx ") {
		t.Fatalf("unexpected version output %q", stdout)
	}
}
