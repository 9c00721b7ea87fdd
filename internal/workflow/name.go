package workflow

import (
	"github.com/bgricker/jobctx/internal/matrix"
)

// NameInput identifies a job instance by its unqualified name, its matrix
// and the chain of reusable workflow callers above it.
type NameInput struct {
	Job    string
	Matrix matrix.Value
	Chain  []Link
}

// AbsoluteName returns the fully qualified name GitHub reports for the job,
// e.g. "deploy (prod) / build (linux, x64)".
func AbsoluteName(in NameInput) string {
	name := withMatrix(in.Job, in.Matrix)
	for _, link := range in.Chain {
		caller := AbsoluteName(NameInput{Job: link.Job, Matrix: link.Matrix})
		name = caller + " / " + name
	}
	return name
}

func withMatrix(job string, m matrix.Value) string {
	if suffix, ok := matrix.Suffix(m); ok {
		return job + " (" + suffix + ")"
	}
	return job
}
