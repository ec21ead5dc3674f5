package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/fcrcheck/internal/ir"
)

// Error code constants shared by every command that loads manifests.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No manifest files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build or YAML parse failed
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadError represents an error that occurred while loading manifests.
type LoadError struct {
	Code    string
	Message string
	Pos     ir.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadResult contains the merged program and the files it came from.
type LoadResult struct {
	Program *ir.Program
	Files   []string
}

// Load reads a manifest file or a directory of manifests. A directory's
// .cue files are loaded as one CUE instance; each .yaml or .yml file is
// compiled on its own. All parts are merged into one Program.
func Load(path string) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing manifest path: %v", err)}}
	}

	if !info.IsDir() {
		prog, errs := loadFile(path)
		if len(errs) > 0 {
			return nil, errs
		}
		return &LoadResult{Program: prog, Files: []string{path}}, nil
	}

	cueFiles, yamlFiles, err := FindManifests(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 && len(yamlFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no manifest files found in %s", path)}}
	}

	var (
		merged ir.Program
		errs   []error
	)
	if len(cueFiles) > 0 {
		prog, cueErrs := loadCUEDir(path)
		errs = append(errs, cueErrs...)
		if prog != nil {
			merge(&merged, prog)
		}
	}
	for _, f := range yamlFiles {
		prog, yamlErrs := loadFile(f)
		errs = append(errs, yamlErrs...)
		if prog != nil {
			merge(&merged, prog)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &LoadResult{Program: &merged, Files: append(append([]string(nil), cueFiles...), yamlFiles...)}, nil
}

// LoadPaths loads every path with Load and merges the programs in order.
func LoadPaths(paths []string) (*LoadResult, []error) {
	var (
		merged ir.Program
		files  []string
		errs   []error
	)
	for _, p := range paths {
		res, loadErrs := Load(p)
		if len(loadErrs) > 0 {
			errs = append(errs, loadErrs...)
			continue
		}
		merge(&merged, res.Program)
		files = append(files, res.Files...)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &LoadResult{Program: &merged, Files: files}, nil
}

// FindManifests walks the directory and returns .cue and YAML paths in
// lexical order.
func FindManifests(dir string) (cueFiles, yamlFiles []string, err error) {
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".cue":
			cueFiles = append(cueFiles, path)
		case ".yaml", ".yml":
			yamlFiles = append(yamlFiles, path)
		}
		return nil
	})
	return cueFiles, yamlFiles, err
}

func loadFile(path string) (*ir.Program, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}}
	}
	switch filepath.Ext(path) {
	case ".cue":
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
		}
		return convertErrors(CompileCUE(v))
	case ".yaml", ".yml":
		return convertErrors(CompileYAML(data, path))
	}
	return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("unsupported manifest extension: %s", path)}}
}

func loadCUEDir(dir string) (*ir.Program, []error) {
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}
	return convertErrors(CompileCUE(value))
}

func convertErrors(p *ir.Program, errs []error) (*ir.Program, []error) {
	if len(errs) == 0 {
		return p, nil
	}
	out := make([]error, len(errs))
	for i, err := range errs {
		out[i] = convertCompileError(err)
	}
	return nil, out
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeBuildFailed,
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

func merge(dst, src *ir.Program) {
	dst.Modules = append(dst.Modules, src.Modules...)
	dst.Traits = append(dst.Traits, src.Traits...)
	dst.Types = append(dst.Types, src.Types...)
	dst.Functions = append(dst.Functions, src.Functions...)
	dst.Impls = append(dst.Impls, src.Impls...)
}
