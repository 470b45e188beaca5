package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Dir is the bank directory. It owns every write under its path.
type Dir struct {
	path  string
	media map[string]bool
}

// NewDir creates a Dir for path that recognises the given media extensions.
func NewDir(path string, extensions []string) *Dir {
	media := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		media[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Dir{path: path, media: media}
}

func (d *Dir) Path() string { return d.path }

// IsMedia reports whether ext (with or without dot) is a recognised media type.
func (d *Dir) IsMedia(ext string) bool {
	return d.media[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// Exists reports whether the directory exists.
func (d *Dir) Exists() bool {
	info, err := os.Stat(d.path)
	return err == nil && info.IsDir()
}

func (d *Dir) Ensure() error {
	if err := os.MkdirAll(d.path, 0755); err != nil {
		return fmt.Errorf("create bank dir: %w", err)
	}
	return nil
}

// FilePath returns the path of filename inside the directory.
func (d *Dir) FilePath(filename string) string {
	return filepath.Join(d.path, filename)
}

// Scan lists the media files at the top level of the directory, sorted by
// file name. Subdirectories, hidden files and in-flight downloads are skipped.
func (d *Dir) Scan() ([]Entry, error) {
	dirents, err := os.ReadDir(d.path)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		name, ext, ok := SplitFilename(de.Name())
		if !ok || !d.media[ext] {
			continue
		}
		entries = append(entries, Entry{
			Name:      name,
			Extension: ext,
			Path:      filepath.Join(d.path, de.Name()),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Filename() < entries[j].Filename()
	})
	return entries, nil
}

// WriteAtomic streams write's output into a temp file inside the directory and
// renames it over filename once complete. verify, when non-nil, receives the
// hex SHA-256 of the written bytes before the rename and may reject them. On
// any error the temp file is removed and filename is left as it was.
func (d *Dir) WriteAtomic(filename string, write func(io.Writer) error, verify func(hash string) error) (hash string, size int64, err error) {
	if err := d.Ensure(); err != nil {
		return "", 0, err
	}

	tmpPath := filepath.Join(d.path, tempPrefix+uuid.NewString()+tempSuffix)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(f, h)}
	if err = write(cw); err != nil {
		f.Close()
		return "", 0, err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return "", 0, fmt.Errorf("sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}

	hash = hex.EncodeToString(h.Sum(nil))
	if verify != nil {
		if err = verify(hash); err != nil {
			return "", 0, err
		}
	}

	if err = os.Rename(tmpPath, d.FilePath(filename)); err != nil {
		return "", 0, fmt.Errorf("rename %s: %w", filename, err)
	}
	return hash, cw.n, nil
}

// CopyFrom copies the file at src into filename atomically.
func (d *Dir) CopyFrom(src, filename string, verify func(hash string) error) (string, int64, error) {
	return d.WriteAtomic(filename, func(w io.Writer) error {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	}, verify)
}

// Remove deletes filename. A missing file is not an error.
func (d *Dir) Remove(filename string) error {
	err := os.Remove(d.FilePath(filename))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// CountFiles returns the number of regular files outside the .git directory.
func (d *Dir) CountFiles() (int, error) {
	count := 0
	err := filepath.WalkDir(d.path, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() && de.Name() == gitDir {
			return filepath.SkipDir
		}
		if de.Type().IsRegular() {
			count++
		}
		return nil
	})
	return count, err
}

// Prune deletes every file outside .git whose extension is not a media type,
// and returns the removed paths relative to the directory. Failures on single
// files are collected and returned together.
func (d *Dir) Prune() ([]string, error) {
	var removed []string
	var errs []error
	err := filepath.WalkDir(d.path, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			if de.Name() == gitDir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsMedia(filepath.Ext(de.Name())) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			return nil
		}
		rel, _ := filepath.Rel(d.path, path)
		removed = append(removed, rel)
		return nil
	})
	if err != nil {
		return removed, err
	}
	return removed, errors.Join(errs...)
}

// CleanTemp removes in-flight download files left behind by a crash.
func (d *Dir) CleanTemp() error {
	matches, err := filepath.Glob(filepath.Join(d.path, tempPrefix+"*"+tempSuffix))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
