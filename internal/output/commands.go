package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/bgricker/jobctx/internal/report"
)

const delimiterPrefix = "ghadelimiter_"

// FileCommand appends name/value pairs to a runner file command such as
// $GITHUB_OUTPUT or $GITHUB_ENV.
type FileCommand struct {
	path string
	// newDelimiter is replaced in tests
	newDelimiter func() string
}

// NewFileCommand targets the file named by the environment variable envVar.
// It returns nil when the variable is unset, e.g. outside of a runner.
func NewFileCommand(envVar string) *FileCommand {
	path := strings.TrimSpace(os.Getenv(envVar))
	if path == "" {
		return nil
	}
	return NewFileCommandAt(path)
}

// NewFileCommandAt targets the file at path.
func NewFileCommandAt(path string) *FileCommand {
	return &FileCommand{
		path: path,
		newDelimiter: func() string {
			return delimiterPrefix + uuid.NewString()
		},
	}
}

// Write appends all outputs in a single write.
func (f *FileCommand) Write(outputs report.Outputs) error {
	if len(outputs) == 0 {
		return nil
	}

	var b strings.Builder
	for _, out := range outputs {
		entry, err := f.format(out.Name, out.Value)
		if err != nil {
			return err
		}
		b.WriteString(entry)
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open file command %q", f.path)
	}
	defer file.Close()

	if _, err := io.WriteString(file, b.String()); err != nil {
		return errors.Wrapf(err, "write file command %q", f.path)
	}
	return nil
}

// format renders one heredoc entry: name<<DELIM\nvalue\nDELIM\n.
func (f *FileCommand) format(name, value string) (string, error) {
	delimiter := f.newDelimiter()
	if strings.Contains(name, delimiter) {
		return "", errors.Newf("unexpected input: name should not contain the delimiter %q", delimiter)
	}
	if strings.Contains(value, delimiter) {
		return "", errors.Newf("unexpected input: value should not contain the delimiter %q", delimiter)
	}
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter), nil
}

// Error writes an ::error:: workflow command so the runner annotates the step.
func Error(w io.Writer, msg string) {
	fmt.Fprintf(w, "::error::%s\n", escapeData(msg))
}

// Warning writes a ::warning:: workflow command.
func Warning(w io.Writer, msg string) {
	fmt.Fprintf(w, "::warning::%s\n", escapeData(msg))
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}
