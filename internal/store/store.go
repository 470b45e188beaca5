// Package store implements the on-disk side of the sound bank.
//
// The bank directory is flat: one file per clip, named {name}.{extension}.
// A version-control metadata directory (.git) may live next to the clips when
// the bank was populated from a git mirror; it is never scanned as media.
//
//	bankDir/
//	  horn.wav
//	  fanfare.mp3
//	  .git/            (optional, mirror fallback only)
//	  .soundbank-*.part (in-flight downloads, removed on failure)
package store

import (
	"path/filepath"
	"strings"
)

// Entry is one media file found in the bank directory.
type Entry struct {
	Name      string // logical name, file name without extension
	Extension string // lower-case, no leading dot
	Path      string
}

// Filename returns the on-disk file name of the entry.
func (e Entry) Filename() string {
	return e.Name + "." + e.Extension
}

// SplitFilename splits "horn.wav" into ("horn", "wav").
// The extension is lower-cased; ok is false when there is none.
func SplitFilename(filename string) (name, ext string, ok bool) {
	ext = filepath.Ext(filename)
	if ext == "" || ext == filename {
		return "", "", false
	}
	return strings.TrimSuffix(filename, ext), strings.ToLower(ext[1:]), true
}

const (
	gitDir     = ".git"
	tempPrefix = ".soundbank-"
	tempSuffix = ".part"
)
