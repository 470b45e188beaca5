package soundbank

import (
	"fmt"
	"strings"

	"github.com/aweris/soundbank/internal/remote"
)

// Record is one entry of a remote manifest.
type Record = remote.Record

// Source lists and downloads remote clips.
type Source = remote.Source

// MediaExtensions are the clip types the bank recognises.
var MediaExtensions = []string{"wav", "mp3", "ogg", "aiff"}

// Asset is one decoded clip in the bank. Assets are immutable; a changed clip
// is a new Asset.
type Asset struct {
	Name      string
	Extension string
	Path      string
	Hash      string // hex SHA-256 of the file bytes
	Buffer    *Buffer
}

func (a *Asset) Filename() string {
	return a.Name + "." + a.Extension
}

// DisplayName is the name shown to players, with underscores as spaces.
func (a *Asset) DisplayName() string {
	return strings.ReplaceAll(a.Name, "_", " ")
}

func isMedia(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, m := range MediaExtensions {
		if ext == m {
			return true
		}
	}
	return false
}

// sanitize normalizes rec and rejects records that cannot be stored as a
// single file in the bank directory.
func sanitize(rec Record) (Record, error) {
	rec.Extension = strings.ToLower(strings.TrimPrefix(rec.Extension, "."))
	rec.Hash = remote.NormalizeHash(rec.Hash)

	switch {
	case rec.Name == "":
		return rec, fmt.Errorf("record %q: empty name", rec.ID)
	case strings.HasPrefix(rec.Name, "."):
		return rec, fmt.Errorf("record %q: hidden name %q", rec.ID, rec.Name)
	case strings.ContainsAny(rec.Name, `/\`):
		return rec, fmt.Errorf("record %q: name %q contains a path separator", rec.ID, rec.Name)
	case !isMedia(rec.Extension):
		return rec, fmt.Errorf("record %q: unsupported extension %q", rec.ID, rec.Extension)
	case rec.Hash == "":
		return rec, fmt.Errorf("record %q: empty hash", rec.ID)
	}
	return rec, nil
}
