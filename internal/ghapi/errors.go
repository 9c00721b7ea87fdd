package ghapi

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/google/go-github/v62/github"
)

// PermissionError reports a 403 from an endpoint that needs a token permission
// the workflow did not grant.
type PermissionError struct {
	Scope      string
	Permission string
	Err        error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("GitHub token is missing permission %s: %s (add 'permissions: %s: %s' to the workflow job): %v",
		e.Scope, e.Permission, e.Scope, e.Permission, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// IsPermissionError reports whether err is a PermissionError for scope.
// An empty scope matches any PermissionError.
func IsPermissionError(err error, scope string) bool {
	var perr *PermissionError
	if !errors.As(err, &perr) {
		return false
	}
	return scope == "" || perr.Scope == scope
}

// classify turns a 403 error response into a PermissionError. Other errors are
// returned unchanged.
func classify(err error, scope, permission string) error {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusForbidden {
		return &PermissionError{Scope: scope, Permission: permission, Err: err}
	}
	return err
}
