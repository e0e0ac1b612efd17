// Package jsonfile stores snapshots, intervals and stats as JSON documents
// on disk, one directory per network:
//
//	<root>/<network>/snapshots.json       pool key -> snapshot series
//	<root>/<network>/intervals/<pool>.json per-pool interval plots
//	<root>/<network>/stats.json           resolution -> network totals
package jsonfile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Store is the shared file layout behind the jsonfile stores.
type Store struct {
	root string
}

// New creates a store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{root: dir}
}

var safeName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// fileName maps a key to a file name. Keys that are not plain identifiers,
// such as structured JSON pool keys, are hashed.
func fileName(key string) string {
	if safeName.MatchString(key) {
		return key + ".json"
	}
	sum := sha256.Sum256([]byte(key))
	return "h-" + hex.EncodeToString(sum[:16]) + ".json"
}

func (s *Store) networkDir(network string) string {
	return filepath.Join(s.root, strings.TrimSuffix(fileName(network), ".json"))
}

func (s *Store) snapshotsPath(network string) string {
	return filepath.Join(s.networkDir(network), "snapshots.json")
}

func (s *Store) intervalsPath(network, poolKey string) string {
	return filepath.Join(s.networkDir(network), "intervals", fileName(poolKey))
}

func (s *Store) statsPath(network string) string {
	return filepath.Join(s.networkDir(network), "stats.json")
}

// readJSON decodes path into v. Returns fs.ErrNotExist when missing.
func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeJSON encodes v to path through a temp file and rename, so readers
// never observe a partial document.
func writeJSON(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
