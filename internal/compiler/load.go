package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// CompileBytes compiles CUE source into a value. filename is used in positions.
func CompileBytes(filename string, src []byte) (cue.Value, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}

// LoadValue builds a CUE value from a single .cue file or from the package
// in a directory. It returns the number of CUE files read.
func LoadValue(path string) (cue.Value, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, 0, fmt.Errorf("descriptor path: %w", err)
	}

	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return cue.Value{}, 0, fmt.Errorf("read %s: %w", path, err)
		}
		v, err := CompileBytes(path, src)
		if err != nil {
			return cue.Value{}, 1, err
		}
		return v, 1, nil
	}

	files, err := FindCUEFiles(path)
	if err != nil {
		return cue.Value{}, 0, fmt.Errorf("scan %s: %w", path, err)
	}
	if len(files) == 0 {
		return cue.Value{}, 0, fmt.Errorf("no CUE files found in %s", path)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return cue.Value{}, len(files), fmt.Errorf("no CUE instances loaded from %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, len(files), formatCUEError(inst.Err)
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return cue.Value{}, len(files), formatCUEError(err)
	}
	return v, len(files), nil
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
