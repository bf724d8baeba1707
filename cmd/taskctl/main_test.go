package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync-backend/pkg/apperr"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "sql")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "cli.db"))
	t.Setenv("GOOGLE_PROJECT_ID", "")
	t.Setenv("FIREBASE_CREDENTIALS", "")
	t.Setenv("REMINDER_TIME", "")
	t.Setenv("TIMEZONE", "UTC")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateAndRegister(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated")

	out, err = run(t, "register", "Alice", "--password", "secret1")
	require.NoError(t, err)
	var profile struct {
		ID     string `json:"id"`
		Handle string `json:"handle"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &profile))
	assert.Equal(t, "alice", profile.Handle)
	assert.NotEmpty(t, profile.ID)

	_, err = run(t, "register", "alice", "--password", "secret1")
	assert.ErrorIs(t, err, apperr.ErrHandleTaken)

	_, err = run(t, "register", "bob")
	assert.Error(t, err)
}

func TestRolloverStatsExport(t *testing.T) {
	dir := setupEnv(t)

	_, err := run(t, "register", "alice", "-p", "secret1")
	require.NoError(t, err)

	out, err := run(t, "rollover", "alice", "--today", "2024-01-02")
	require.NoError(t, err)
	assert.Contains(t, out, `"created"`)

	_, err = run(t, "rollover", "alice", "--today", "tomorrow")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	out, err = run(t, "stats", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, `"completion_rate": 0`)

	target := filepath.Join(dir, "alice.json")
	_, err = run(t, "export", "alice", "-o", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	_, err = run(t, "stats", "nobody")
	assert.ErrorIs(t, err, apperr.ErrUnknownUser)
}
