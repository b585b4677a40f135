package runlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

func run(outcome string, at time.Time) types.RunReport {
	return types.RunReport{ID: NewID(), StartedAt: at, FinishedAt: at.Add(time.Minute), Outcome: outcome, ModelName: "m"}
}

func TestFileStore_RecordAndRecent(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	ctx := context.Background()
	day1 := time.Date(2024, 3, 1, 16, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	require.NoError(t, s.Record(ctx, run("gated", day1)))
	require.NoError(t, s.Record(ctx, run("submitted", day2)))
	require.NoError(t, s.Record(ctx, run("dry_run", day2.Add(time.Hour))))

	_, err := os.Stat(filepath.Join(dir, "2024-03-02.jsonl"))
	require.NoError(t, err)

	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "dry_run", runs[0].Outcome)
	assert.Equal(t, "submitted", runs[1].Outcome)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "gated", all[2].Outcome)
}

func TestFileStore_SkipsTornLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-03-01.jsonl"), []byte("{\"id\":\"a\",\"outcome\":\"gated\"}\n{\"id\":"), 0o644))

	runs, err := NewFileStore(dir).Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "a", runs[0].ID)
}

func TestFileStore_MissingDir(t *testing.T) {
	runs, err := NewFileStore(filepath.Join(t.TempDir(), "nope")).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestNew(t *testing.T) {
	s, err := New(context.Background(), store.RunLogConfig{Backend: "FILE", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = New(context.Background(), store.RunLogConfig{Backend: "POSTGRES", DSNEnv: "RUNLOG_DSN"})
	assert.ErrorContains(t, err, "RUNLOG_DSN")

	_, err = New(context.Background(), store.RunLogConfig{Backend: "SQLITE"})
	assert.Error(t, err)

	_, err = uuid.Parse(NewID())
	assert.NoError(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("RUNLOG_TEST_DSN")
	if dsn == "" {
		t.Skip("RUNLOG_TEST_DSN not set")
	}
	ctx := context.Background()
	s, err := NewPostgres(ctx, store.RunLogConfig{DSN: dsn, MinConns: 1, MaxConns: 2})
	require.NoError(t, err)
	defer s.Close()

	r := run("gated", time.Now().UTC())
	require.NoError(t, s.Record(ctx, r))
	r.Outcome = "submitted"
	require.NoError(t, s.Record(ctx, r))

	runs, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, r.ID, runs[0].ID)
	assert.Equal(t, "submitted", runs[0].Outcome)
}
