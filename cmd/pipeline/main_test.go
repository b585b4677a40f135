package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reddit-alpha-agent/internal/runlog"
)

func writeConfig(t *testing.T, redditURL, runDir string) string {
	t.Helper()
	doc := fmt.Sprintf(`
reddit:
  source: HTML
  html_base_url: %s
  timeout_seconds: 5
finter:
  calendar: WEEKDAY
sentiment:
  mapping: STATIC
pipeline:
  output_dir: %s
runlog:
  backend: FILE
  dir: %s
`, redditURL, t.TempDir(), runDir)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestRunOnceExitCodes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		code    int
		outcome string
	}{
		{"empty listing", http.StatusOK, 0, "no_mentions"},
		{"reddit down", http.StatusInternalServerError, 1, "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `<html><body><div id="siteTable"></div></body></html>`)
			}))
			defer srv.Close()

			runDir := t.TempDir()
			code := run(context.Background(), writeConfig(t, srv.URL, runDir), true)
			assert.Equal(t, tt.code, code)

			runs, err := runlog.NewFileStore(runDir).Recent(context.Background(), 1)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, tt.outcome, runs[0].Outcome)
		})
	}
}

func TestRunMissingConfig(t *testing.T) {
	assert.Equal(t, 1, run(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), true))
}
