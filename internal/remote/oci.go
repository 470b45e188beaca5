package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/klauspost/compress/zstd"
	"github.com/sourcegraph/conc/pool"
)

const (
	DefaultConcurrency = 4

	manifestLabel = "dev.soundbank.manifest"
)

// OCISource reads a bank published as an OCI image. The image config carries
// the manifest as a JSON label; every clip is one zstd layer whose digest is
// the record ID and whose DiffID is the record hash.
type OCISource struct {
	ref         name.Reference
	auth        Authenticator
	concurrency int

	mu  sync.Mutex
	img v1.Image // image resolved by the last List
}

// NewOCISource creates a source from a standard image ref (e.g., "ghcr.io/org/bugle:latest").
func NewOCISource(imageRef string, auth Authenticator) (*OCISource, error) {
	ref, err := name.ParseReference(imageRef, name.WithDefaultTag("latest"))
	if err != nil {
		return nil, fmt.Errorf("invalid image ref %q: %w", imageRef, err)
	}
	return &OCISource{ref: ref, auth: auth, concurrency: DefaultConcurrency}, nil
}

// SetConcurrency sets the number of parallel layer operations for Publish.
func (s *OCISource) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

func (s *OCISource) String() string   { return s.ref.String() }
func (s *OCISource) Registry() string { return s.ref.Context().RegistryStr() }
func (s *OCISource) Tag() string      { return s.ref.Identifier() }

// blobLayer implements v1.Layer with zstd compression for remote transfer
type blobLayer struct {
	compressed   []byte
	uncompressed []byte
}

var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

func newBlobLayer(data []byte) *blobLayer {
	return &blobLayer{
		compressed:   zstdEncoder.EncodeAll(data, nil),
		uncompressed: data,
	}
}

func (l *blobLayer) Digest() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.compressed))
	return h, err
}

func (l *blobLayer) DiffID() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.uncompressed))
	return h, err
}

func (l *blobLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.compressed)), nil
}
func (l *blobLayer) Uncompressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.uncompressed)), nil
}
func (l *blobLayer) Size() (int64, error)                { return int64(len(l.compressed)), nil }
func (l *blobLayer) MediaType() (types.MediaType, error) { return types.OCILayerZStd, nil }

func (s *OCISource) List(ctx context.Context) ([]Record, error) {
	img, err := retry(ctx, DefaultAttempts, func() (v1.Image, error) {
		return remote.Image(s.ref, s.remoteOptions(ctx)...)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}

	raw := cfg.Config.Labels[manifestLabel]
	if raw == "" {
		return nil, fmt.Errorf("missing %s label", manifestLabel)
	}
	var records []Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("parse manifest label: %w", err)
	}

	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
	return records, nil
}

func (s *OCISource) Download(ctx context.Context, rec Record, w io.Writer) error {
	s.mu.Lock()
	img := s.img
	s.mu.Unlock()
	if img == nil {
		if _, err := s.List(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		img = s.img
		s.mu.Unlock()
	}

	digest, err := v1.NewHash(rec.ID)
	if err != nil {
		return fmt.Errorf("record %s: invalid layer digest: %w", rec.Filename(), err)
	}
	layer, err := img.LayerByDigest(digest)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.Filename(), err)
	}

	rc, err := layer.Uncompressed()
	if err != nil {
		return fmt.Errorf("read layer: %w", err)
	}
	_, err = io.Copy(w, rc)
	if cerr := rc.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("read layer: %w", err)
	}
	return nil
}

// File is one clip to publish.
type File struct {
	Name       string
	Extension  string
	Data       []byte
	ModifiedAt time.Time
	Owner      string
}

// Publish pushes files as a new image to the source's ref and returns the
// manifest it wrote.
func (s *OCISource) Publish(ctx context.Context, files []File) ([]Record, error) {
	layers := make([]*blobLayer, len(files))
	p := pool.New().WithMaxGoroutines(s.concurrency)
	for i, f := range files {
		p.Go(func() {
			layers[i] = newBlobLayer(f.Data)
		})
	}
	p.Wait()

	now := time.Now().UTC()
	records := make([]Record, 0, len(files))
	v1Layers := make([]v1.Layer, 0, len(files))
	for i, f := range files {
		digest, err := layers[i].Digest()
		if err != nil {
			return nil, fmt.Errorf("digest %s: %w", f.Name, err)
		}
		sum := sha256.Sum256(f.Data)
		modified := f.ModifiedAt
		if modified.IsZero() {
			modified = now
		}
		records = append(records, Record{
			ID:         digest.String(),
			Name:       f.Name,
			Extension:  f.Extension,
			Size:       int64(len(f.Data)),
			Hash:       hex.EncodeToString(sum[:]),
			CreatedAt:  now,
			ModifiedAt: modified,
			Owner:      f.Owner,
		})
		v1Layers = append(v1Layers, layers[i])
	}

	img, err := s.buildImage(v1Layers, records)
	if err != nil {
		return nil, fmt.Errorf("build image: %w", err)
	}
	if err := s.pushImage(ctx, img); err != nil {
		return nil, fmt.Errorf("push image: %w", err)
	}

	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
	return records, nil
}

func (s *OCISource) buildImage(layers []v1.Layer, records []Record) (v1.Image, error) {
	img := empty.Image

	if len(layers) > 0 {
		var err error
		img, err = mutate.AppendLayers(img, layers...)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}

	manifestJSON, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}

	cfg = cfg.DeepCopy()
	cfg.Config.Labels = map[string]string{
		manifestLabel: string(manifestJSON),
	}

	return mutate.ConfigFile(img, cfg)
}

func (s *OCISource) pushImage(ctx context.Context, img v1.Image) error {
	options := s.remoteOptions(ctx)
	options = append(options, remote.WithJobs(s.concurrency))
	_, err := retry(ctx, DefaultAttempts, func() (struct{}, error) {
		return struct{}{}, remote.Write(s.ref, img, options...)
	})
	return err
}

func (s *OCISource) remoteOptions(ctx context.Context) []remote.Option {
	opts := []remote.Option{remote.WithContext(ctx)}
	if s.auth != nil {
		username, password, err := s.auth.Authenticate(s.Registry())
		if err == nil && username != "" {
			return append(opts, remote.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			}))
		}
	}
	return append(opts, remote.WithAuthFromKeychain(authn.DefaultKeychain))
}
