package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrNoWorkflow indicates that the running workflow file could not be located.
var ErrNoWorkflow = errors.New("workflow file not discovered")

// Workflow returns the path of the workflow file that defines the running job,
// relative to root when possible. An explicit path wins; otherwise the path is
// taken from a GITHUB_WORKFLOW_REF value such as
// "octo/repo/.github/workflows/ci.yml@refs/heads/main".
func Workflow(root, explicit, workflowRef string) (string, error) {
	if explicit != "" {
		return resolveExplicit(root, explicit)
	}

	rel, err := PathFromRef(workflowRef)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errors.Wrapf(ErrNoWorkflow, "%q not present in %q (is the repository checked out?)", rel, root)
		}
		return "", errors.Wrapf(err, "stat %q", rel)
	}
	if info.IsDir() {
		return "", errors.Newf("workflow %q is a directory", rel)
	}
	return mustRelOrClean(root, full), nil
}

// PathFromRef extracts the repository relative workflow path from a workflow ref.
func PathFromRef(workflowRef string) (string, error) {
	ref := strings.TrimSpace(workflowRef)
	if ref == "" {
		return "", errors.Wrap(ErrNoWorkflow, "workflow ref is empty")
	}
	if at := strings.LastIndex(ref, "@"); at >= 0 {
		ref = ref[:at]
	}
	idx := strings.Index(ref, ".github/workflows/")
	if idx < 0 {
		return "", errors.Wrapf(ErrNoWorkflow, "unexpected workflow ref %q", workflowRef)
	}
	path := ref[idx:]
	if path == ".github/workflows/" {
		return "", errors.Wrapf(ErrNoWorkflow, "unexpected workflow ref %q", workflowRef)
	}
	return path, nil
}

func resolveExplicit(root, explicit string) (string, error) {
	cleaned := explicit
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(root, cleaned)
	}
	info, err := os.Stat(cleaned)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errors.Newf("workflow %q not found", explicit)
		}
		return "", errors.Wrapf(err, "stat %q", explicit)
	}
	if info.IsDir() {
		return "", errors.Newf("workflow %q is a directory", explicit)
	}
	return mustRelOrClean(root, cleaned), nil
}

func mustRelOrClean(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Clean(path)
	}
	rel = filepath.Clean(rel)
	if rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Clean(path)
	}
	return filepath.ToSlash(rel)
}
