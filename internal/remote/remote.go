// Package remote implements the sources a sound bank is synchronized from.
//
// A source lists content-addressed records and streams the bytes of any one
// of them. Two sources are provided:
//   - HTTPSource: the audio API (GET /audio/list, GET /audio/{id}/download)
//   - OCISource: the bank published as an OCI image, one layer per clip
package remote

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// Source lists and downloads remote clips.
type Source interface {
	// List fetches the manifest in source order.
	List(ctx context.Context) ([]Record, error)

	// Download writes the bytes of rec to w.
	Download(ctx context.Context, rec Record, w io.Writer) error
}

// Record is one entry of a remote manifest.
type Record struct {
	ID         string    `json:"_id"`
	Name       string    `json:"filename"`
	Extension  string    `json:"extension"`
	Size       int64     `json:"size"`
	Hash       string    `json:"hash"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	Owner      string    `json:"owner"`
}

// timeLayouts are tried in order when decoding record timestamps. Layouts
// without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// UnmarshalJSON decodes a record. The timestamps are informational, so one
// that cannot be parsed is left zero instead of failing the manifest.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var raw struct {
		plain
		CreatedAt  json.RawMessage `json:"created_at"`
		ModifiedAt json.RawMessage `json:"modified_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record(raw.plain)
	r.CreatedAt = parseTime(raw.CreatedAt)
	r.ModifiedAt = parseTime(raw.ModifiedAt)
	return nil
}

func parseTime(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Filename returns the on-disk file name of the record.
func (r Record) Filename() string {
	return r.Name + "." + strings.ToLower(r.Extension)
}

// NormalizeHash lower-cases a hex digest and strips an optional "sha256:" prefix.
func NormalizeHash(hash string) string {
	hash = strings.ToLower(strings.TrimSpace(hash))
	return strings.TrimPrefix(hash, "sha256:")
}
