package workflow

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Definition mirrors the parts of a GitHub Actions workflow file used for naming jobs.
type Definition struct {
	Path string          `json:"path"`
	Jobs []JobDefinition `json:"jobs"`
}

// JobDefinition is a single entry under the workflow's jobs key.
type JobDefinition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Warning captures a non-fatal naming issue found in a workflow file.
type Warning struct {
	Workflow string `json:"workflow"`
	Job      string `json:"job"`
	Message  string `json:"message"`
}

// Parser loads GitHub Actions workflow files from disk.
type Parser struct {
	Root string
}

// NewParser constructs a Parser that resolves workflow paths relative to root.
func NewParser(root string) *Parser {
	return &Parser{Root: root}
}

// Parse reads the workflow at relPath.
func (p *Parser) Parse(relPath string) (Definition, error) {
	full := relPath
	if !filepath.IsAbs(full) {
		full = filepath.Join(p.Root, relPath)
	}
	f, err := os.Open(full)
	if err != nil {
		return Definition{}, errors.Wrapf(err, "open workflow %q", relPath)
	}
	defer f.Close()
	return decodeWorkflow(f, relPath)
}

// Find returns the job with the given id.
func (d Definition) Find(jobID string) (JobDefinition, bool) {
	for _, job := range d.Jobs {
		if job.ID == jobID {
			return job, true
		}
	}
	return JobDefinition{}, false
}

// DisplayName returns the name GitHub shows for jobID before any matrix suffix.
// Names containing expressions are evaluated by GitHub at runtime and cannot be
// reproduced here, so the job id is returned together with a warning.
func (d Definition) DisplayName(jobID string) (string, *Warning) {
	job, ok := d.Find(jobID)
	if !ok {
		return jobID, &Warning{Workflow: d.Path, Job: jobID, Message: "job not defined in workflow"}
	}
	if strings.Contains(job.Name, "${{") {
		return jobID, &Warning{
			Workflow: d.Path,
			Job:      jobID,
			Message:  fmt.Sprintf("job name %q contains an expression; set the job-name input", job.Name),
		}
	}
	return job.Name, nil
}

func decodeWorkflow(r io.Reader, displayPath string) (Definition, error) {
	decoder := yaml.NewDecoder(r)

	var wfDoc workflowDocument
	if err := decoder.Decode(&wfDoc); err != nil {
		if err == io.EOF {
			return Definition{Path: displayPath}, nil
		}
		return Definition{}, errors.Wrapf(err, "parse workflow %q", displayPath)
	}

	def := Definition{Path: displayPath}

	jobIDs := make([]string, 0, len(wfDoc.Jobs))
	for id := range wfDoc.Jobs {
		jobIDs = append(jobIDs, id)
	}
	sort.Strings(jobIDs)

	def.Jobs = make([]JobDefinition, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		jobDoc := wfDoc.Jobs[jobID]
		job := JobDefinition{
			ID:   jobID,
			Name: strings.TrimSpace(jobDoc.Name),
		}
		if job.Name == "" {
			job.Name = jobID
		}
		def.Jobs = append(def.Jobs, job)
	}

	return def, nil
}

type workflowDocument struct {
	Jobs map[string]jobDocument `yaml:"jobs"`
}

type jobDocument struct {
	Name string `yaml:"name"`
}
