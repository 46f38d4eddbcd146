package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ussdflow version")
}

func TestCatalogLint(t *testing.T) {
	out, err := execute(t, "catalog", "lint")
	require.NoError(t, err)
	assert.Contains(t, out, "0 error(s)")
	assert.Contains(t, out, "wallet_unknown_recipient")
}

func TestGraph(t *testing.T) {
	out, err := execute(t, "graph")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `language(("language"))`)
}

func TestSessionLs_EmptyMemoryStore(t *testing.T) {
	out, err := execute(t, "session", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "No active sessions found.")
}

func TestSessionRm_RequiresTarget(t *testing.T) {
	_, err := execute(t, "session", "rm")
	assert.Error(t, err)
}

func TestInvalidConfigRejected(t *testing.T) {
	_, err := execute(t, "--store", "etcd", "version")
	assert.Error(t, err)
}
