package scenario

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads one scenario. YAML files use the fixture layout; JSON files
// use the backend wire format and are schema validated.
func LoadFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, err
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeWire(id, data)
	case ".yaml", ".yml":
		var sc Scenario
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return Scenario{}, fmt.Errorf("parse %s: %w", path, err)
		}
		if sc.ID == "" {
			sc.ID = id
		}
		sc.normalize()
		return sc, nil
	default:
		return Scenario{}, fmt.Errorf("unsupported scenario file %s", path)
	}
}

// LoadDir loads every scenario file under rootDir into a MemoryStore.
// Files that fail to parse are skipped with a warning.
func LoadDir(rootDir string) (*MemoryStore, error) {
	store := NewMemoryStore()
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
		default:
			return nil
		}

		sc, err := LoadFile(path)
		if err != nil {
			slog.Warn("skipping invalid scenario file", "path", path, "error", err)
			return nil
		}
		store.Put(sc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading scenarios: %w", err)
	}

	slog.Info("scenarios loaded", "dir", rootDir, "scenarios", store.Len())
	return store, nil
}
