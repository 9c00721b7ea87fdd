// Package report turns resolved run, job and deployment data into the ordered
// set of action outputs.
package report

import (
	"strconv"

	"github.com/bgricker/jobctx/internal/actionenv"
	"github.com/bgricker/jobctx/internal/resolve"
)

// Output is a single named action output.
type Output struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Outputs is an ordered output set. Names are unique.
type Outputs []Output

// envMirror maps outputs to the environment variables exported for later steps.
var envMirror = map[string]string{
	"job_id":             "JOB_ID",
	"job_name":           "JOB_NAME",
	"job_log_url":        "JOB_LOG_URL",
	"run_url":            "RUN_URL",
	"deployment_id":      "DEPLOYMENT_ID",
	"deployment_url":     "DEPLOYMENT_URL",
	"deployment_log_url": "DEPLOYMENT_LOG_URL",
	"environment":        "ENVIRONMENT",
	"environment_url":    "ENVIRONMENT_URL",
}

func (o *Outputs) add(name, value string) {
	*o = append(*o, Output{Name: name, Value: value})
}

func (o *Outputs) addInt(name string, value int64) {
	o.add(name, strconv.FormatInt(value, 10))
}

// Run returns the outputs known before any API call.
func Run(rc actionenv.RunContext) Outputs {
	var out Outputs
	out.addInt("run_id", rc.RunID)
	out.addInt("run_attempt", rc.RunAttempt)
	if rc.RunNumber > 0 {
		out.addInt("run_number", rc.RunNumber)
	}
	out.add("run_url", rc.RunURL)
	return out
}

// Job returns the outputs describing the resolved job.
func Job(job *resolve.Job) Outputs {
	var out Outputs
	if job == nil {
		return out
	}
	out.add("job", job.Name)
	out.add("job_name", job.Name)
	out.addInt("job_id", job.ID)
	out.add("job_log_url", job.HTMLURL)
	out.add("job_html_url", job.HTMLURL)
	out.add("runner_name", job.RunnerName)
	if job.RunnerID != 0 {
		out.addInt("runner_id", job.RunnerID)
	}
	return out
}

// Deployment returns the outputs describing the resolved deployment, or none
// when the job is not deploying.
func Deployment(d *resolve.Deployment) Outputs {
	var out Outputs
	if d == nil {
		return out
	}
	out.add("environment", d.Environment)
	if d.EnvironmentURL != "" {
		out.add("environment_url", d.EnvironmentURL)
	}
	out.addInt("deployment_id", d.ID)
	out.add("deployment_url", d.URL)
	out.add("deployment_workflow_url", d.WorkflowURL)
	out.add("deployment_log_url", d.LogURL)
	return out
}

// Env returns the subset of outputs mirrored into environment variables,
// renamed to their variable names.
func (o Outputs) Env() Outputs {
	var env Outputs
	for _, out := range o {
		if name, ok := envMirror[out.Name]; ok {
			env.add(name, out.Value)
		}
	}
	return env
}

// Map returns the outputs keyed by name.
func (o Outputs) Map() map[string]string {
	m := make(map[string]string, len(o))
	for _, out := range o {
		m[out.Name] = out.Value
	}
	return m
}
