package soundbank

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aweris/soundbank/internal/mirror"
	"github.com/aweris/soundbank/internal/remote"
)

// Authenticator provides credentials for OCI registries.
type Authenticator = remote.Authenticator

// Committer is the identity recorded in a git mirror checkout.
type Committer = mirror.Committer

// DefaultConcurrency is the number of parallel downloads and decodes.
const DefaultConcurrency = 4

// OpenOptions configures a Bank.
type OpenOptions struct {
	Source      Source
	ManifestURL string
	Image       string
	Auth        Authenticator
	HTTPClient  *http.Client
	GitURL      string
	Committer   Committer
	Display     Display
	Playback    Playback
	Decoder     Decoder
	Logger      *zap.Logger
	Concurrency int
	StateDir    string
}

// OpenOption is a functional option for configuring Open.
type OpenOption func(*OpenOptions)

func defaultOptions() *OpenOptions {
	return &OpenOptions{
		Committer:   mirror.DefaultCommitter,
		Display:     nopDisplay{},
		Decoder:     MimeDecoder{},
		Logger:      zap.NewNop(),
		Concurrency: DefaultConcurrency,
	}
}

// WithSource sets the manifest source directly. It takes precedence over
// WithManifestURL and WithImage.
func WithSource(src Source) OpenOption {
	return func(o *OpenOptions) { o.Source = src }
}

// WithManifestURL uses the audio API at baseURL as the manifest source.
func WithManifestURL(baseURL string) OpenOption {
	return func(o *OpenOptions) { o.ManifestURL = baseURL }
}

// WithImage uses an OCI image (e.g., "ghcr.io/org/bugle:latest") as the
// manifest source.
func WithImage(ref string) OpenOption {
	return func(o *OpenOptions) { o.Image = ref }
}

// WithAuth sets registry credentials for WithImage.
func WithAuth(auth Authenticator) OpenOption {
	return func(o *OpenOptions) { o.Auth = auth }
}

// WithHTTPClient sets the client used by WithManifestURL.
func WithHTTPClient(c *http.Client) OpenOption {
	return func(o *OpenOptions) { o.HTTPClient = c }
}

// WithGitMirror enables the git fallback path against url.
func WithGitMirror(url string) OpenOption {
	return func(o *OpenOptions) { o.GitURL = url }
}

// WithCommitter sets the identity written to the mirror checkout's config.
func WithCommitter(c Committer) OpenOption {
	return func(o *OpenOptions) {
		if c.Name != "" && c.Email != "" {
			o.Committer = c
		}
	}
}

// WithDisplay sets the status text collaborator.
func WithDisplay(d Display) OpenOption {
	return func(o *OpenOptions) {
		if d != nil {
			o.Display = d
		}
	}
}

// WithPlayback lets eviction stop playback handles that still reference an
// evicted buffer.
func WithPlayback(p Playback) OpenOption {
	return func(o *OpenOptions) { o.Playback = p }
}

func WithDecoder(d Decoder) OpenOption {
	return func(o *OpenOptions) {
		if d != nil {
			o.Decoder = d
		}
	}
}

func WithLogger(log *zap.Logger) OpenOption {
	return func(o *OpenOptions) {
		if log != nil {
			o.Logger = log
		}
	}
}

// WithConcurrency sets the number of parallel downloads and decodes.
func WithConcurrency(n int) OpenOption {
	return func(o *OpenOptions) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

// WithStateDir sets where the last fetched manifest is persisted. Without it
// nothing is persisted.
func WithStateDir(dir string) OpenOption {
	return func(o *OpenOptions) { o.StateDir = dir }
}
