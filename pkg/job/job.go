// Package job defines upload job files: a declarative list of files to
// push to the shared cloud, loaded from YAML or JSON.
package job

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMediaType is used when a file's media type cannot be inferred
// from its extension.
const DefaultMediaType = "application/octet-stream"

// Job describes a batch of uploads.
type Job struct {
	// Environment selects the backend ("production" or "alpha").
	// Empty means production.
	Environment string `yaml:"environment" json:"environment"`

	// Root is the directory include patterns are resolved against.
	// Empty means the current directory.
	Root string `yaml:"root" json:"root"`

	// Include lists glob patterns (doublestar syntax, ** supported)
	// resolved against Root.
	Include []string `yaml:"include" json:"include"`

	// Files lists explicit files to upload.
	Files []FileSpec `yaml:"files" json:"files"`
}

// FileSpec is one file entry in a job.
type FileSpec struct {
	// Path is the local path to read.
	Path string `yaml:"path" json:"path"`

	// Name overrides the registered file name. Defaults to the path
	// basename.
	Name string `yaml:"name" json:"name"`

	// MediaType overrides the MIME type. Defaults to the type inferred
	// from the extension.
	MediaType string `yaml:"media_type" json:"media_type"`
}

// Validate checks that the job lists at least one file source and that
// explicit entries have paths.
func (j *Job) Validate() error {
	if len(j.Files) == 0 && len(j.Include) == 0 {
		return errors.New("job must list files or include patterns")
	}
	for i, f := range j.Files {
		if f.Path == "" {
			return fmt.Errorf("files[%d]: path is required", i)
		}
	}
	switch j.Environment {
	case "", "production", "alpha":
	default:
		return fmt.Errorf("unsupported environment: %q", j.Environment)
	}
	return nil
}

// Resolve expands include patterns and applies per-file defaults,
// returning the concrete list of files to upload. Explicit entries
// come first, in job order; glob matches follow in lexical order.
// Duplicate paths are collapsed, first spec wins.
func (j *Job) Resolve() ([]FileSpec, error) {
	seen := make(map[string]struct{})
	var out []FileSpec

	add := func(spec FileSpec) {
		if _, ok := seen[spec.Path]; ok {
			return
		}
		seen[spec.Path] = struct{}{}
		out = append(out, withDefaults(spec))
	}

	for _, f := range j.Files {
		add(f)
	}

	root := j.Root
	if root == "" {
		root = "."
	}
	rootFS := os.DirFS(root)
	for _, pattern := range j.Include {
		matches, err := doublestar.Glob(rootFS, pattern)
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			full := filepath.Join(root, filepath.FromSlash(match))
			info, err := os.Stat(full)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return nil, err
			}
			if info.IsDir() {
				continue
			}
			add(FileSpec{Path: full})
		}
	}

	if len(out) == 0 {
		return nil, errors.New("job resolved to no files")
	}
	return out, nil
}

func withDefaults(spec FileSpec) FileSpec {
	if spec.Name == "" {
		spec.Name = filepath.Base(spec.Path)
	}
	if spec.MediaType == "" {
		spec.MediaType = mime.TypeByExtension(filepath.Ext(spec.Path))
		if spec.MediaType == "" {
			spec.MediaType = DefaultMediaType
		}
	}
	return spec
}
