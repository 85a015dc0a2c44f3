package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/coffersTech/jsonsink/internal/validate"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// errInvalid signals a non-zero exit after the result was already printed.
var errInvalid = errors.New("file is not valid JSON")

func newRootCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "checkjson <file_path>",
		Short: "Check if a JSON file is valid.",
		Long: `Parses the given file as a single JSON document and reports whether it is valid.
Archived logs (.json.zst) are decompressed before parsing.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := validate.CheckFile(args[0])
			fmt.Fprintln(out, render(res))
			if !res.Valid {
				return errInvalid
			}
			return nil
		},
	}
}

func render(res validate.Result) string {
	msg := res.Message()
	if noColor() {
		return msg
	}
	if res.Valid {
		return color.GreenString(msg)
	}
	return color.RedString(msg)
}

// noColor returns true if color output should be disabled.
func noColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		if !errors.Is(err, errInvalid) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
