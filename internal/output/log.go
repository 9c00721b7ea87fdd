package output

import (
	"fmt"
	"io"

	"github.com/bgricker/jobctx/internal/report"
)

// LogRenderer prints each emitted output to the step log.
type LogRenderer struct {
	out io.Writer
}

// NewLog creates a LogRenderer writing to out.
func NewLog(out io.Writer) *LogRenderer {
	return &LogRenderer{out: out}
}

// RenderOutputs prints "output => name: value" for every output.
func (l *LogRenderer) RenderOutputs(outputs report.Outputs) error {
	for _, o := range outputs {
		if _, err := fmt.Fprintf(l.out, "output => %s: %s\n", o.Name, o.Value); err != nil {
			return err
		}
	}
	return nil
}

// RenderName prints an absolute job name on its own line.
func (l *LogRenderer) RenderName(name string) error {
	_, err := fmt.Fprintln(l.out, name)
	return err
}
