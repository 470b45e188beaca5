package soundbank

import (
	"context"
	"fmt"
	"os"

	"github.com/aweris/soundbank/internal/remote"
	"github.com/aweris/soundbank/internal/store"
)

// Publish pushes every clip in dir to imageRef as an image that a bank opened
// WithImage can synchronize from. Only WithAuth and WithConcurrency apply.
func Publish(ctx context.Context, imageRef, dir, owner string, opts ...OpenOption) ([]Record, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	src, err := remote.NewOCISource(imageRef, options.Auth)
	if err != nil {
		return nil, err
	}
	src.SetConcurrency(options.Concurrency)

	entries, err := store.NewDir(dir, MediaExtensions).Scan()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("publish %s: no clips: %w", dir, ErrNotFound)
	}

	files := make([]remote.File, 0, len(entries))
	for _, e := range entries {
		info, err := os.Stat(e.Path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(e.Path)
		if err != nil {
			return nil, err
		}
		files = append(files, remote.File{
			Name:       e.Name,
			Extension:  e.Extension,
			Data:       data,
			ModifiedAt: info.ModTime().UTC(),
			Owner:      owner,
		})
	}

	records, err := src.Publish(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("publish to %s: %w", src, err)
	}
	return records, nil
}
