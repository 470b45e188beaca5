package soundbank

import (
	"fmt"
	"strings"
)

// Report sources.
const (
	SourceManifest = "manifest"
	SourceMirror   = "mirror"
	SourceLocal    = "local"
)

// Report summarises one synchronize or refresh pass.
type Report struct {
	Source     string
	Added      int
	Changed    int
	Removed    int
	Downloaded int
	Copied     int
	Failed     int
	Loaded     int
	Total      int // assets indexed after the pass
}

func (r Report) String() string {
	if r.Source != SourceManifest {
		return fmt.Sprintf("%d songs loaded !", r.Total)
	}
	parts := []string{
		fmt.Sprintf("%d added", r.Added),
		fmt.Sprintf("%d changed", r.Changed),
		fmt.Sprintf("%d removed", r.Removed),
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	return "Synced: " + strings.Join(parts, ", ")
}
