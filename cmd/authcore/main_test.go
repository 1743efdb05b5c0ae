package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/password"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPasswordPrintsVerifiableHash(t *testing.T) {
	out, err := execute(t, "correct horse\n", "hash-password", "--memory", "8192", "--time", "1", "--parallelism", "1")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"), hash)

	hasher, err := password.NewDefaultHasher()
	require.NoError(t, err)
	ok, err := hasher.Verify("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPasswordRequiresInput(t *testing.T) {
	_, err := execute(t, "", "hash-password")
	require.Error(t, err)
}

func TestSweepInDevMode(t *testing.T) {
	t.Setenv("AUTH_DEV_INMEMORY", "false")
	t.Setenv("AUTH_SIGNING_KEY", "")
	out, err := execute(t, "", "--dev", "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "refresh_tokens")
	assert.Contains(t, out, "sessions")
	assert.Contains(t, out, "total")
}
