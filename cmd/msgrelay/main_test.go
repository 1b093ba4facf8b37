package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestServeRejectsMissingConfig(t *testing.T) {
	rootCmd.SetArgs([]string{"serve", "--config", t.TempDir() + "/nope.yaml"})
	assert.Error(t, rootCmd.Execute())
}
