package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"ingest", "predict", "correct", "documents", "predictions", "models", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "predict-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"name", "description", "predict-field", "sheet", "start-row"} {
		flag := ingestCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "ingest should have --%s flag", flagName)
	}
}

func TestPredictCommand_Flags(t *testing.T) {
	flag := predictCmd.Flags().Lookup("model")
	require.NotNil(t, flag, "predict command should have --model flag")
}

func TestCorrectCommand_Flags(t *testing.T) {
	flag := correctCmd.Flags().Lookup("file")
	require.NotNil(t, flag, "correct command should have --file flag")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestDocumentsCommand_HasSubcommands(t *testing.T) {
	cmds := documentsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"list", "show", "rows", "delete", "failures"}
	for _, name := range expected {
		assert.True(t, names[name], "documents should have subcommand %q", name)
	}
}

func TestPredictionsCommand_HasSubcommands(t *testing.T) {
	cmds := predictionsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"list", "show", "summary", "results", "corrections", "export"}
	for _, name := range expected {
		assert.True(t, names[name], "predictions should have subcommand %q", name)
	}
}

func TestModelsCommand_HasSubcommands(t *testing.T) {
	cmds := modelsCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"seed", "list"} {
		assert.True(t, names[name], "models should have subcommand %q", name)
	}
}

func TestResultsCommand_FilterDefault(t *testing.T) {
	flag := predictionsResultsCmd.Flags().Lookup("filter")
	require.NotNil(t, flag)
	assert.Equal(t, "All", flag.DefValue)
}
