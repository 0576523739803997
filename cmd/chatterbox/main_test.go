package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RejectsUnknownFlag(t *testing.T) {
	assert.Error(t, run([]string{"-bogus"}))
}

func TestRun_InvalidConfiguration(t *testing.T) {
	t.Setenv("CHATTERBOX_HTTP_PORT", "70000")

	err := run([]string{"-env-file", filepath.Join(t.TempDir(), "none.env")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRun_InvalidLogLevel(t *testing.T) {
	t.Setenv("CHATTERBOX_LOG_LEVEL", "chatty")

	err := run([]string{"-env-file", ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create logger")
}

func TestRun_MissingConfigFile(t *testing.T) {
	err := run([]string{"-config", filepath.Join(t.TempDir(), "missing.json"), "-env-file", ""})
	assert.Error(t, err)
}
