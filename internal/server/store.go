package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/logmill/grokc/internal/rules"
)

// Pattern sets persist in one table; the patterns column holds the
// ordered list as JSON, the aliases column the alias table as JSON.

// UpsertPatternSet writes or updates one pattern set.
func (s *AppServer) UpsertPatternSet(ctx context.Context, ps rules.PatternSet) error {
	patterns, err := json.Marshal(ps.Patterns)
	if err != nil {
		return err
	}
	aliases, err := json.Marshal(ps.Aliases)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO grok_pattern_sets(name, patterns, aliases, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (name) DO UPDATE SET patterns=EXCLUDED.patterns, aliases=EXCLUDED.aliases, updated_at=EXCLUDED.updated_at`,
		ps.Name, string(patterns), string(aliases), time.Now().UTC(),
	)
	return err
}

// GetPatternSet reads one pattern set back by name.
func (s *AppServer) GetPatternSet(ctx context.Context, name string) (rules.PatternSet, error) {
	var (
		ps       = rules.PatternSet{Name: name}
		patterns string
		aliases  string
	)
	err := s.db.QueryRowContext(ctx, `SELECT patterns, aliases FROM grok_pattern_sets WHERE name=$1`, name).
		Scan(&patterns, &aliases)
	if err != nil {
		return rules.PatternSet{}, err
	}
	if err := json.Unmarshal([]byte(patterns), &ps.Patterns); err != nil {
		return rules.PatternSet{}, fmt.Errorf("decode patterns for %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(aliases), &ps.Aliases); err != nil {
		return rules.PatternSet{}, fmt.Errorf("decode aliases for %s: %w", name, err)
	}
	return ps, nil
}

// ListPatternSets reads every stored set, ordered by name.
func (s *AppServer) ListPatternSets(ctx context.Context) ([]rules.PatternSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, patterns, aliases FROM grok_pattern_sets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []rules.PatternSet{}
	for rows.Next() {
		var ps rules.PatternSet
		var patterns, aliases string
		if err := rows.Scan(&ps.Name, &patterns, &aliases); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(patterns), &ps.Patterns); err != nil {
			return nil, fmt.Errorf("decode patterns for %s: %w", ps.Name, err)
		}
		if err := json.Unmarshal([]byte(aliases), &ps.Aliases); err != nil {
			return nil, fmt.Errorf("decode aliases for %s: %w", ps.Name, err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// LoadStoredSets compiles every persisted pattern set into the
// registry, typically at startup.
func (s *AppServer) LoadStoredSets(ctx context.Context) (int, error) {
	sets, err := s.ListPatternSets(ctx)
	if err != nil {
		return 0, err
	}
	for _, ps := range sets {
		s.swapSet(compileSet(ps))
	}
	return len(sets), nil
}

// LoadPatternSetsFromDir loads YAML pattern sets from a directory
// tree, persists them, and compiles them into the registry.
// Returns (loaded_count, skipped_count, error).
func (s *AppServer) LoadPatternSetsFromDir(ctx context.Context, dir string) (int, int, error) {
	sets, err := rules.LoadDirRecursive(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("walk dir: %w", err)
	}
	loaded, skipped := 0, 0
	for _, ps := range sets {
		cs := compileSet(ps)
		if s.db != nil {
			if err := s.UpsertPatternSet(ctx, ps); err != nil {
				log.Printf("upsert %s failed: %v", ps.Name, err)
				skipped++
				continue
			}
		}
		s.swapSet(cs)
		for _, issue := range cs.issues {
			log.Printf("set %s: pattern %d fell back to sentinel: %v", ps.Name, issue.Index, issue.Err)
		}
		loaded++
	}
	return loaded, skipped, nil
}
