package workflow

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"

	"github.com/bgricker/jobctx/internal/matrix"
)

// ContextGrammar describes the accepted workflow-context format.
const ContextGrammar = `"<job>", <matrix-json|null>[, "<job>", <matrix-json|null>, ...]`

// Link is one caller frame of a reusable workflow chain.
type Link struct {
	Job    string       `json:"job"`
	Matrix matrix.Value `json:"-"`
}

// MalformedContextError reports a workflow-context string that does not follow ContextGrammar.
type MalformedContextError struct {
	Input string
	Err   error
}

func (e *MalformedContextError) Error() string {
	return fmt.Sprintf("invalid workflow context '%s', expected format %s: %v", e.Input, ContextGrammar, e.Err)
}

func (e *MalformedContextError) Unwrap() error { return e.Err }

// ParseContext parses a comma joined list of job names, each optionally followed
// by its matrix object or null. Links are returned in input order, immediate caller first.
func ParseContext(raw string) ([]Link, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return nil, nil
	}
	body = strings.TrimSuffix(body, ",")

	doc := "[" + body + "]"
	if !gjson.Valid(doc) {
		return nil, &MalformedContextError{Input: raw, Err: errors.New("not a valid JSON list")}
	}

	elems := gjson.Parse(doc).Array()
	links := make([]Link, 0, len(elems))
	for pos := 0; pos < len(elems); pos++ {
		head := elems[pos]
		if head.Type != gjson.String {
			return nil, &MalformedContextError{
				Input: raw,
				Err:   errors.Newf("expected job name string at position %d, got %s", pos, head.Raw),
			}
		}

		link := Link{Job: head.Str}
		if next := pos + 1; next < len(elems) && (elems[next].IsObject() || elems[next].Type == gjson.Null) {
			if elems[next].IsObject() {
				link.Matrix = matrix.FromResult(elems[next])
			}
			pos = next
		}
		links = append(links, link)
	}
	return links, nil
}
