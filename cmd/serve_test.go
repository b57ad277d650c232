package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServeCmd(t *testing.T) {
	cmd := newServeCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "serve", cmd.Use)

	for _, flag := range []string{"http-addr", "metrics-addr", "folder", "debug"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "missing flag %s", flag)
	}
}

func TestNewVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "version", cmd.Use)
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
	assert.Equal(t, "1.2.3", rootCmd.Version)
}
