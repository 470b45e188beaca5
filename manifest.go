package soundbank

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const manifestFile = "manifest.json.zst"

// Manifest is the last manifest a synchronize fetched, as persisted in the
// state directory.
type Manifest struct {
	FetchedAt time.Time `json:"fetched_at"`
	Records   []Record  `json:"records"`
}

// LastManifest returns the persisted manifest. It returns ErrNotFound when no
// state directory is configured or nothing was persisted yet.
func (b *Bank) LastManifest() (Manifest, error) {
	if b.stateDir == "" {
		return Manifest{}, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(b.stateDir, manifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, ErrNotFound
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	data, err = b.compressor.Decompress(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("decompress manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// saveManifest persists records. Failures are logged only.
func (b *Bank) saveManifest(log *zap.Logger, records []Record) {
	if b.stateDir == "" {
		return
	}
	if err := b.writeManifest(Manifest{FetchedAt: time.Now().UTC(), Records: records}); err != nil {
		log.Warn("persist manifest", zap.Error(err))
	}
}

func (b *Bank) writeManifest(m Manifest) error {
	if err := os.MkdirAll(b.stateDir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}

	path := filepath.Join(b.stateDir, manifestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b.compressor.Compress(data), 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
