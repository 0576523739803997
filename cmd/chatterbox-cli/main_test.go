package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatterbox/internal/database"
	dbconfig "chatterbox/pkg/database"
	"chatterbox/pkg/types"
)

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), nil, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")

	err = run(context.Background(), []string{"fly"}, strings.NewReader(""), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "fly"`)
}

func TestRun_DumpMissingDatabase(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"dump", "-db", filepath.Join(t.TempDir(), "none.db")}, strings.NewReader(""), &out)
	assert.Error(t, err)
}

func TestRun_Dump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = path

	manager, err := database.NewManager(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, dbconfig.NewMigrationManager(manager.GetDB()).ApplyMigrations())

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, manager.Append(ctx, &types.ChatMessage{Username: "alice", Content: "first", Timestamp: ts}))
	require.NoError(t, manager.Append(ctx, &types.ChatMessage{Username: "bob", Content: "second", Timestamp: ts.Add(time.Second)}))
	require.NoError(t, manager.Close())

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"dump", "-db", path}, strings.NewReader(""), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "MESSAGES IN DB:", lines[0])
	assert.Equal(t, "[2024-05-01T12:00:00Z] alice: first", lines[1])
	assert.Equal(t, "[2024-05-01T12:00:01Z] bob: second", lines[2])
}
