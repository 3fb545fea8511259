package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "score", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "supply-risk", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	for _, name := range []string{"watch", "save"} {
		f := serveCmd.Flags().Lookup(name)
		require.NotNil(t, f, "serve should have --%s", name)
		assert.Equal(t, "false", f.DefValue)
	}
}

func TestScoreCommand_Flags(t *testing.T) {
	for _, name := range []string{"commodity", "year", "top", "format", "explain", "save", "output"} {
		assert.NotNil(t, scoreCmd.Flags().Lookup(name), "score should have --%s flag", name)
	}
	assert.Equal(t, "table", scoreCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "0", scoreCmd.Flags().Lookup("top").DefValue)
}

func TestRunsCommand_Flags(t *testing.T) {
	flag := runsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}
