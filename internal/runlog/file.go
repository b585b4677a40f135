package runlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"reddit-alpha-agent/internal/types"
)

// FileStore appends one JSON line per run to <dir>/<YYYY-MM-DD>.jsonl.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(r types.RunReport) string {
	return filepath.Join(s.dir, r.StartedAt.UTC().Format(types.DateLayout)+".jsonl")
}

func (s *FileStore) Record(_ context.Context, r types.RunReport) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path(r), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

func (s *FileStore) Recent(ctx context.Context, limit int) ([]types.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []types.RunReport{}, nil
	}
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			files = append(files, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	out := []types.RunReport{}
	for _, name := range files {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		runs, err := readFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
		for _, r := range runs {
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func readFile(p string) ([]types.RunReport, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var runs []types.RunReport
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var r types.RunReport
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			// a torn final line from a crash is skipped
			continue
		}
		runs = append(runs, r)
	}
	return runs, sc.Err()
}

func (s *FileStore) Close() error { return nil }
