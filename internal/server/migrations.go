package server

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS grok_pattern_sets (
    name TEXT PRIMARY KEY,
    patterns TEXT NOT NULL,
    aliases TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

// InitSchema creates the pattern set table, then applies any extra SQL
// files under GROKD_MIGRATIONS_PATH when that is set.
func (s *AppServer) InitSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	if mp := os.Getenv("GROKD_MIGRATIONS_PATH"); mp != "" {
		if err := s.RunMigrations(mp); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// RunMigrations executes all SQL files in the given directory in
// lexicographic order. Each file may contain multiple statements
// separated by ';'.
func (s *AppServer) RunMigrations(dir string) error {
	entries := make([]string, 0)
	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			entries = append(entries, path)
		}
		return nil
	}
	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return err
	}
	sort.Strings(entries)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, p := range entries {
		b, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", p, err)
		}
		for _, c := range strings.Split(string(b), ";") {
			stmt := strings.TrimSpace(c)
			if stmt == "" {
				continue
			}
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec migration %s: %w", p, err)
			}
		}
	}
	return nil
}
