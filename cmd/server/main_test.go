package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphql-ir/internal/config"
)

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"--version"}, &out))
	assert.Equal(t, "graphql-ir dev (none)\n", out.String())
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	err := run([]string{"--server.port", "0"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestRun_UnknownFlag(t *testing.T) {
	err := run([]string{"--no-such-flag"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRun_MissingConfigFile(t *testing.T) {
	err := run([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, &bytes.Buffer{})
	require.Error(t, err)
}

func TestReportValidation(t *testing.T) {
	result := &config.ValidationResult{
		Warnings: []config.ValidationWarning{{Field: "server.cors", Message: "no origins"}},
	}
	require.NoError(t, reportValidation(result))

	result.Errors = append(result.Errors, config.ValidationError{Field: "server.port", Message: "invalid"})
	require.Error(t, reportValidation(result))
}
