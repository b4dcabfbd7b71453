// Package errxcobra renders errx errors for cobra commands and maps error
// types to process exit codes.
package errxcobra

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Conversia-AI/craftable-projection/errx"
)

type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// DisplayMode controls which elements of the error are displayed
type DisplayMode string

const (
	// DisplayModeSimple shows only the message
	DisplayModeSimple DisplayMode = "simple"
	// DisplayModeNormal adds code and type
	DisplayModeNormal DisplayMode = "normal"
	// DisplayModeDetailed adds details and the cause chain
	DisplayModeDetailed DisplayMode = "detailed"
)

// CLIOptions configures how errors are displayed
type CLIOptions struct {
	Format      OutputFormat
	DisplayMode DisplayMode
	UseColors   bool
	ExitOnError bool
	ExitFunc    func(int)
	Output      io.Writer
}

// DefaultCLIOptions writes coloured normal output to stderr and exits
func DefaultCLIOptions() CLIOptions {
	return CLIOptions{
		Format:      OutputFormatText,
		DisplayMode: DisplayModeNormal,
		UseColors:   true,
		ExitOnError: true,
		ExitFunc:    os.Exit,
		Output:      os.Stderr,
	}
}

// OptionsForVerbosity maps a -v count and a --json flag to options
func OptionsForVerbosity(verbose int, jsonOutput bool) CLIOptions {
	options := DefaultCLIOptions()
	if jsonOutput {
		options.Format = OutputFormatJSON
	}
	switch verbose {
	case 0:
		options.DisplayMode = DisplayModeSimple
	case 1:
		options.DisplayMode = DisplayModeNormal
	default:
		options.DisplayMode = DisplayModeDetailed
	}
	return options
}

// CLI handles errors for command line applications
type CLI struct {
	options CLIOptions
}

func NewCLI(options CLIOptions) *CLI {
	if options.Output == nil {
		options.Output = os.Stderr
	}
	if options.ExitFunc == nil {
		options.ExitFunc = os.Exit
	}
	return &CLI{options: options}
}

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	var xerr *errx.Error
	if !errors.As(err, &xerr) {
		return 1
	}
	switch xerr.Type {
	case errx.TypeValidation, errx.TypeBadRequest:
		return 2
	case errx.TypeAuthorization:
		return 3
	case errx.TypeNotFound:
		return 4
	case errx.TypeInternal:
		return 5
	case errx.TypeConflict:
		return 6
	case errx.TypeUnsupported:
		return 7
	case errx.TypeUnavailable, errx.TypeTimeout:
		return 8
	}
	return 1
}

// HandleCommandError wraps a RunE so errors are rendered instead of returned
func (c *CLI) HandleCommandError(runFn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := runFn(cmd, args); err != nil {
			c.HandleError(err)
		}
		return nil
	}
}

// HandleError renders err and exits when configured to
func (c *CLI) HandleError(err error) {
	if err == nil {
		return
	}

	var xerr *errx.Error
	if !errors.As(err, &xerr) {
		xerr = &errx.Error{Code: "UNKNOWN_ERROR", Type: errx.TypeInternal, Message: err.Error()}
	}

	if c.options.Format == OutputFormatJSON {
		c.outputJSON(xerr)
	} else {
		c.outputText(xerr)
	}

	if c.options.ExitOnError {
		c.options.ExitFunc(ExitCode(err))
	}
}

func (c *CLI) outputJSON(err *errx.Error) {
	body := map[string]any{"message": err.Message}
	if c.options.DisplayMode != DisplayModeSimple {
		body["code"] = err.Code
		body["type"] = err.Type
	}
	if c.options.DisplayMode == DisplayModeDetailed {
		if len(err.Details) > 0 {
			body["details"] = err.Details
		}
		if err.Cause != nil {
			body["cause"] = err.Cause.Error()
		}
	}

	b, _ := json.MarshalIndent(map[string]any{"error": body}, "", "  ")
	fmt.Fprintln(c.options.Output, string(b))
}

func (c *CLI) outputText(err *errx.Error) {
	w := c.options.Output

	errorColor := c.color(color.FgHiRed, color.Bold)
	codeColor := c.color(color.FgHiYellow)
	typeColor := c.color(color.FgHiCyan)
	keyColor := c.color(color.FgHiGreen)
	headerColor := c.color(color.FgHiMagenta, color.Bold)
	lineColor := c.color(color.FgHiBlue)

	if c.options.DisplayMode == DisplayModeSimple {
		errorColor.Fprint(w, "Error: ")
		fmt.Fprintln(w, err.Message)
		return
	}

	line := strings.Repeat("─", 60)

	lineColor.Fprintln(w, line)
	errorColor.Fprint(w, " ERROR ")
	headerColor.Fprint(w, "❯ ")
	fmt.Fprintln(w, err.Message)
	lineColor.Fprintln(w, line)

	headerColor.Fprint(w, "   CODE ❯ ")
	codeColor.Fprintln(w, string(err.Code))
	headerColor.Fprint(w, "   TYPE ❯ ")
	typeColor.Fprintln(w, string(err.Type))

	if c.options.DisplayMode == DisplayModeDetailed {
		if len(err.Details) > 0 {
			fmt.Fprintln(w)
			headerColor.Fprintln(w, " DETAILS")

			keys := make([]string, 0, len(err.Details))
			for k := range err.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				keyColor.Fprintf(w, "   %s", k)
				if list, ok := err.Details[k].([]string); ok {
					fmt.Fprintln(w, " ❯")
					for _, item := range list {
						fmt.Fprintf(w, "     - %s\n", item)
					}
					continue
				}
				fmt.Fprintf(w, " ❯ %v\n", err.Details[k])
			}
		}

		if err.Cause != nil {
			fmt.Fprintln(w)
			headerColor.Fprintln(w, "   CAUSE")
			indent := "   "
			for cause := err.Cause; cause != nil; cause = errors.Unwrap(cause) {
				fmt.Fprintf(w, "%s❯ %s\n", indent, cause.Error())
				indent += "  "
			}
		}
	}

	lineColor.Fprintln(w, line)
}

func (c *CLI) color(attrs ...color.Attribute) *color.Color {
	col := color.New(attrs...)
	if c.options.UseColors {
		col.EnableColor()
	} else {
		col.DisableColor()
	}
	return col
}

// WithCLI routes errors from cmd's RunE through a CLI handler
func WithCLI(cmd *cobra.Command, options CLIOptions) *CLI {
	cli := NewCLI(options)
	if cmd.RunE != nil {
		cmd.RunE = cli.HandleCommandError(cmd.RunE)
	}
	return cli
}
