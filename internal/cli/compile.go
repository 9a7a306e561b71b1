package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/activitysync/internal/compiler"
	"github.com/roach88/activitysync/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled descriptors.
type CompilationResult struct {
	Descriptors []ir.ActivityDescriptor `json:"descriptors"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <descriptors>",
		Short: "Compile CUE activity descriptors to JSON",
		Long: `Compile CUE activity descriptors and print them as JSON.

Descriptors that fail validation are reported like compile errors.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadDescriptors(path, LoadModeCollectAll)
	if loadResult == nil {
		code, message := parseLoadError(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)
	for _, d := range loadResult.Descriptors {
		formatter.VerboseLog("Compiled descriptor: %s", d.ID)
	}

	var errs []CLIError
	for _, err := range loadErrors {
		code, message := parseLoadError(err)
		errs = append(errs, CLIError{Code: code, Message: message})
	}
	for _, ve := range compiler.Validate(loadResult.Descriptors) {
		errs = append(errs, CLIError{Code: ve.Code, Message: fmt.Sprintf("%s: %s", ve.Field, ve.Message)})
	}
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	result := &CompilationResult{Descriptors: loadResult.Descriptors}

	if opts.Output != "" {
		if err := writeDescriptorsToFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d descriptor(s)\n\n", len(result.Descriptors))
	for _, d := range result.Descriptors {
		fmt.Fprintf(w, "  %s: %s on %q -> %s\n", d.ID, d.Name, d.ElementKey, describeType(d.Type))
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWrote descriptors to %s\n", opts.Output)
	}
	return nil
}

func describeType(t ir.ActivityType) string {
	if !t.IsTransitions() {
		return t.Plain()
	}
	return fmt.Sprintf("%d transition(s)", len(t.TransitionList()))
}

func outputCompileErrors(formatter *OutputFormatter, errs []CLIError) error {
	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{Status: "error", Error: &errs[0], Data: errs}); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintln(formatter.Writer)
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Code, e.Message)
		}
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// writeDescriptorsToFile writes indented JSON.
func writeDescriptorsToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling descriptors: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
