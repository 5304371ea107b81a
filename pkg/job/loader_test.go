package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlJob = `
environment: alpha
root: ./exports
include:
  - "**/*.png"
files:
  - path: report.pdf
    name: term-report.pdf
`

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlJob), 0o644))

	j, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alpha", j.Environment)
	assert.Equal(t, "./exports", j.Root)
	assert.Equal(t, []string{"**/*.png"}, j.Include)
	require.Len(t, j.Files, 1)
	assert.Equal(t, "term-report.pdf", j.Files[0].Name)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	data := `{"files":[{"path":"a.txt","media_type":"text/plain"}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	j, err := Load(path)
	require.NoError(t, err)
	require.Len(t, j.Files, 1)
	assert.Equal(t, "text/plain", j.Files[0].MediaType)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		path    string
		wantErr string
	}{
		{
			name: "yaml without extension",
			data: "files:\n  - path: a.txt\n",
		},
		{
			name: "json without extension",
			data: `{"files":[{"path":"a.txt"}]}`,
		},
		{
			name:    "empty",
			data:    "",
			wantErr: "empty",
		},
		{
			name:    "invalid job",
			data:    "environment: production\n",
			wantErr: "invalid job",
		},
		{
			name:    "garbage",
			data:    "{{{not parseable",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := LoadFromBytes([]byte(tt.data), tt.path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, j.Files, 1)
		})
	}
}
