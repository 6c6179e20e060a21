package rules

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PatternSet is one named, ordered group of grok patterns plus the
// alias table they are compiled against. Files may hold several sets
// as separate YAML documents.
type PatternSet struct {
	Name     string            `yaml:"name"`
	Patterns []string          `yaml:"patterns"`
	Aliases  map[string]string `yaml:"aliases"`
}

func isYAML(p string) bool {
	l := strings.ToLower(p)
	return strings.HasSuffix(l, ".yml") || strings.HasSuffix(l, ".yaml")
}

// LoadFile reads every YAML document in one file.
func LoadFile(path string) ([]PatternSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []PatternSet
	dec := yaml.NewDecoder(f)
	for {
		var ps PatternSet
		if err := dec.Decode(&ps); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if ps.Name == "" {
			return nil, fmt.Errorf("decode %s: pattern set without a name", path)
		}
		out = append(out, ps)
	}
	return out, nil
}

// LoadDirRecursive walks root and loads every .yml/.yaml file.
func LoadDirRecursive(root string) ([]PatternSet, error) {
	var out []PatternSet
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(p) {
			return nil
		}
		sets, err := LoadFile(p)
		if err != nil {
			return err
		}
		out = append(out, sets...)
		return nil
	})
	return out, err
}
