package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/activitysync/internal/compiler"
	"github.com/roach88/activitysync/internal/ir"
)

// LoadMode controls how errors are handled during descriptor loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the descriptors compiled from a file or directory.
type LoadResult struct {
	Descriptors []ir.ActivityDescriptor
	FileCount   int
}

// LoadError represents an error that occurred during descriptor loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDescriptors compiles the activity descriptors at path, a .cue file or
// a directory holding one CUE package.
//
// A nil result means nothing could be compiled at all. With a non-nil result
// the returned errors are per-descriptor compile errors.
func LoadDescriptors(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("descriptor path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing descriptor path: %v", err)}}
	}

	if info.IsDir() {
		files, err := compiler.FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
	}

	value, fileCount, err := compiler.LoadValue(path)
	if err != nil {
		loadErr := &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			loadErr.Message = compileErr.Message
			loadErr.Pos = compileErr.Pos
		}
		return nil, []error{loadErr}
	}

	result := &LoadResult{FileCount: fileCount}
	descs, compileErrs := compiler.CompileDescriptors(value)
	result.Descriptors = descs

	var errs []error
	for _, ce := range compileErrs {
		errs = append(errs, convertCompileError(ce))
		if mode == LoadModeFailFast {
			break
		}
	}
	return result, errs
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error code constants shared by all commands. Descriptor codes E101-E110
// come from compiler.Validate.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load/build failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeConfig      = "E006" // Invalid process configuration
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeInvalidActivation = "E111" // "active" is neither a bool nor a field match
)

// MapFieldToErrorCode maps a compiler error field ("activity.<id>.<field>")
// to an error code.
func MapFieldToErrorCode(field string) string {
	last := field
	if i := strings.LastIndex(field, "."); i >= 0 {
		last = field[i+1:]
	}
	if i := strings.Index(last, "["); i >= 0 {
		last = last[:i]
	}

	switch last {
	case "event":
		return compiler.ErrNameRequired
	case "element":
		return compiler.ErrElementKeyRequired
	case "type", "from":
		return compiler.ErrTypeRequired
	case "to":
		return compiler.ErrTransitionTarget
	case "timeout":
		return compiler.ErrNegativeTimeout
	case "rename_to", "group":
		return compiler.ErrInvalidPath
	case "active", "field", "equals", "not":
		return ErrCodeInvalidActivation
	default:
		return ErrCodeGeneric
	}
}
