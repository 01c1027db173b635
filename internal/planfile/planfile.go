// Package planfile (de)serializes chunkplan.FileConfig to and from the
// on-disk TOML plan file spec.md §1 names as an out-of-scope wrapper
// around a fixed serialization format.
package planfile

import (
	"fmt"
	"os"

	"github.com/fountainlink/transfer/internal/chunkplan"
	"github.com/pelletier/go-toml/v2"
)

// Write serializes cfg as TOML to path, creating or truncating it.
func Write(path string, cfg *chunkplan.FileConfig) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("planfile: marshal %s: %w", cfg.FileName, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("planfile: write %s: %w", path, err)
	}
	return nil
}

// Read parses the TOML plan file at path into a chunkplan.FileConfig.
func Read(path string) (*chunkplan.FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("planfile: read %s: %w", path, err)
	}
	var cfg chunkplan.FileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("planfile: unmarshal %s: %w", path, err)
	}
	return &cfg, nil
}

// Manifest is a named set of plan files, keyed the same way a
// chunkindex.ChunkIndex keys its registered files, used by cmd/server to
// describe every file it is willing to serve in one directory of plan
// files.
type Manifest map[string]*chunkplan.FileConfig

// WriteManifest writes one TOML plan file per entry into dir, named
// "<file_key>.plan.toml".
func WriteManifest(dir string, m Manifest) error {
	for fileKey, cfg := range m {
		path := dir + string(os.PathSeparator) + fileKey + ".plan.toml"
		if err := Write(path, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ReadManifest reads every "*.plan.toml" file in dir into a Manifest keyed
// by the file's base name with the ".plan.toml" suffix stripped.
func ReadManifest(dir string) (Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("planfile: read dir %s: %w", dir, err)
	}
	const suffix = ".plan.toml"
	m := make(Manifest)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
			continue
		}
		fileKey := name[:len(name)-len(suffix)]
		cfg, err := Read(dir + string(os.PathSeparator) + name)
		if err != nil {
			return nil, err
		}
		m[fileKey] = cfg
	}
	return m, nil
}
