package output

import (
	"encoding/json"
	"io"

	"github.com/bgricker/jobctx/internal/report"
	"github.com/bgricker/jobctx/internal/resolve"
)

// JSONRenderer emits structured resolution data.
type JSONRenderer struct {
	out io.Writer
}

// NewJSON creates a JSON renderer writing to out.
func NewJSON(out io.Writer) *JSONRenderer {
	return &JSONRenderer{out: out}
}

// Report captures JSON output schema.
type Report struct {
	JobName    string              `json:"job_name"`
	Job        *resolve.Job        `json:"job,omitempty"`
	Deployment *resolve.Deployment `json:"deployment,omitempty"`
	Outputs    map[string]string   `json:"outputs"`
	Warnings   []string            `json:"warnings,omitempty"`
}

// NewReport assembles the JSON view of a finished resolution.
func NewReport(jobName string, job *resolve.Job, deployment *resolve.Deployment, outputs report.Outputs, warnings []string) Report {
	return Report{
		JobName:    jobName,
		Job:        job,
		Deployment: deployment,
		Outputs:    outputs.Map(),
		Warnings:   warnings,
	}
}

// Render encodes the report as JSON.
func (j *JSONRenderer) Render(report Report) error {
	return j.Encode(report)
}

// Encode writes any value as indented JSON.
func (j *JSONRenderer) Encode(v any) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
