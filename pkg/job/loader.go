package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a job from the given file path.
//
// The file format is determined by extension: .yaml/.yml for YAML,
// .json for JSON. If the extension is unrecognized, YAML is attempted
// first, then JSON.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a job from raw bytes.
//
// The path parameter is used for error messages and format detection.
// If path is empty, format detection falls back to trying YAML first.
func LoadFromBytes(data []byte, path string) (*Job, error) {
	if len(data) == 0 {
		return nil, errors.New("job file is empty")
	}

	j, err := parseJob(data, path)
	if err != nil {
		return nil, err
	}
	if err := j.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}
	return j, nil
}

// parseJob parses the job data based on file extension.
func parseJob(data []byte, path string) (*Job, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		// Unknown extension: try YAML first (more permissive), then JSON
		j, yamlErr := parseYAML(data)
		if yamlErr == nil {
			return j, nil
		}
		j, jsonErr := parseJSON(data)
		if jsonErr == nil {
			return j, nil
		}
		return nil, fmt.Errorf("failed to parse job (tried YAML and JSON): %w", yamlErr)
	}
}

func parseJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("invalid JSON in job file: %w", err)
	}
	return &j, nil
}

func parseYAML(data []byte) (*Job, error) {
	var j Job
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("invalid YAML in job file: %w", err)
	}
	return &j, nil
}
