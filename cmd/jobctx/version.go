package main

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/bgricker/jobctx/internal/config"
	"github.com/bgricker/jobctx/internal/output"
	"github.com/bgricker/jobctx/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the jobctx version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return errors.Wrap(err, "parse --format")
			}
			info := version.Current()
			if strings.ToLower(format) == config.FormatJSON {
				return output.NewJSON(cmd.OutOrStdout()).Encode(info)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
}
