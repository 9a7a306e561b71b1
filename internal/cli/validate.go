package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/activitysync/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationReport is the JSON payload of a validate run.
type ValidationReport struct {
	Valid       bool       `json:"valid"`
	Files       int        `json:"files"`
	Descriptors int        `json:"descriptors"`
	Errors      []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <descriptors>",
		Short: "Validate activity descriptors",
		Long: `Compile and validate CUE activity descriptors without starting the engine.

Every error is reported, not just the first one.

Exit codes:
  0 - All descriptors valid
  1 - Compile or validation errors
  2 - Command error (path not found, no CUE files, CUE syntax error)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadDescriptors(path, LoadModeCollectAll)
	if loadResult == nil {
		code, message := parseLoadError(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	formatter.VerboseLog("Loaded %d CUE file(s) from %s", loadResult.FileCount, path)

	report := ValidationReport{
		Files:       loadResult.FileCount,
		Descriptors: len(loadResult.Descriptors),
	}
	for _, err := range loadErrors {
		code, message := parseLoadError(err)
		report.Errors = append(report.Errors, CLIError{Code: code, Message: message})
	}
	for _, ve := range compiler.Validate(loadResult.Descriptors) {
		report.Errors = append(report.Errors, CLIError{
			Code:    ve.Code,
			Message: fmt.Sprintf("%s: %s", ve.Field, ve.Message),
		})
	}
	report.Valid = len(report.Errors) == 0

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: report}
		if !report.Valid {
			resp.Status = "error"
			resp.Error = &report.Errors[0]
		}
		if err := json.NewEncoder(formatter.Writer).Encode(resp); err != nil {
			return err
		}
	} else {
		outputValidationText(formatter, report)
	}

	if !report.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(report.Errors)))
	}
	return nil
}

func outputValidationText(formatter *OutputFormatter, report ValidationReport) {
	w := formatter.Writer
	if report.Valid {
		fmt.Fprintf(w, "✓ All descriptors valid (%d descriptor(s), %d file(s))\n", report.Descriptors, report.Files)
		return
	}
	fmt.Fprintf(w, "✗ Validation failed with %d error(s)\n\n", len(report.Errors))
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  [%s] %s\n", e.Code, e.Message)
	}
}

// parseLoadError extracts an error code and message from a loader error.
func parseLoadError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Pos.IsValid() {
			return loadErr.Code, fmt.Sprintf("%s:%d:%d: %s",
				loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), loadErr.Message)
		}
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
