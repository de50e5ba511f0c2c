package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hcprov.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Overlay(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
pollInterval: 1s
maxWorkflows: 4
store:
  kind: s3
  bucket: descriptors
  endpoint: https://fsn1.your-objectstorage.com
`)

	s, err := LoadFile(path, Default())
	require.NoError(t, err)

	assert.Equal(t, time.Second, s.PollInterval)
	assert.Equal(t, 4, s.MaxWorkflows)
	assert.Equal(t, 10*time.Minute, s.WorkflowTimeout, "absent keys keep the base value")
	assert.Equal(t, StoreS3, s.Store.Kind)
	assert.Equal(t, "descriptors", s.Store.Bucket)
	assert.Equal(t, "hcprov", s.Store.Prefix)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "invalid yaml", content: "pollInterval: [", wantErr: "failed to unmarshal yaml"},
		{name: "unknown key", content: "pollIntervall: 1s", wantErr: "failed to decode config"},
		{name: "bad duration", content: "pollInterval: soon", wantErr: "failed to decode config"},
		{name: "fails validation", content: "maxWorkflows: 0", wantErr: "configuration validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadFile(writeConfig(t, tt.content), Default())
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), Default())
	assert.ErrorContains(t, err, "failed to read config file")
}
