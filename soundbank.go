package soundbank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/aweris/soundbank/internal/compression"
	"github.com/aweris/soundbank/internal/metrics"
	"github.com/aweris/soundbank/internal/mirror"
	"github.com/aweris/soundbank/internal/remote"
	"github.com/aweris/soundbank/internal/store"
)

// Bank is the decoded index of one cache directory and the synchronizer that
// keeps it in step with its source.
type Bank struct {
	dir         *store.Dir
	source      Source
	mirror      *mirror.Mirror
	display     Display
	playback    Playback
	decoder     Decoder
	log         *zap.Logger
	concurrency int
	stateDir    string
	compressor  *compression.Compressor

	mu  sync.RWMutex
	idx *index

	// lifecycle orders start against Close.
	lifecycle sync.Mutex
	busy      atomic.Bool
	closed    atomic.Bool
	inflight  atomic.Pointer[Task]
	pending   chan *Task
}

// Open creates a bank for the cache directory dir. The directory does not
// have to exist yet; it is created by the first synchronize.
func Open(dir string, opts ...OpenOption) (*Bank, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	src, err := openSource(options)
	if err != nil {
		return nil, err
	}

	compressor, err := compression.NewCompressor(2, true)
	if err != nil {
		return nil, fmt.Errorf("create compressor: %w", err)
	}

	b := &Bank{
		dir:         store.NewDir(dir, MediaExtensions),
		source:      src,
		display:     options.Display,
		playback:    options.Playback,
		decoder:     options.Decoder,
		log:         options.Logger,
		concurrency: options.Concurrency,
		stateDir:    options.StateDir,
		compressor:  compressor,
		idx:         newIndex(),
		pending:     make(chan *Task, 1),
	}

	if options.GitURL != "" {
		b.mirror = mirror.New(options.GitURL, dir,
			mirror.WithCommitter(options.Committer),
			mirror.WithProgress(b.display.Show),
			mirror.WithLogger(b.log.Named("mirror")),
		)
	}

	if b.dir.Exists() {
		if err := b.dir.CleanTemp(); err != nil {
			b.log.Warn("clean temp files", zap.Error(err))
		}
	}
	return b, nil
}

func openSource(o *OpenOptions) (Source, error) {
	switch {
	case o.Source != nil:
		return o.Source, nil
	case o.ManifestURL != "":
		src, err := remote.NewHTTPSource(o.ManifestURL, o.HTTPClient)
		if err != nil {
			return nil, err
		}
		return src, nil
	case o.Image != "":
		src, err := remote.NewOCISource(o.Image, o.Auth)
		if err != nil {
			return nil, err
		}
		src.SetConcurrency(o.Concurrency)
		return src, nil
	}
	return nil, nil
}

// Dir returns the cache directory.
func (b *Bank) Dir() string { return b.dir.Path() }

// Get returns the asset indexed under name.
func (b *Bank) Get(name string) (*Asset, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a := b.idx.get(name)
	return a, a != nil
}

// GetByHash returns the assets whose content hash is hash, sorted by name.
func (b *Bank) GetByHash(hash string) []*Asset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.withHash(remote.NormalizeHash(hash))
}

// Names returns the indexed names in ascending order.
func (b *Bank) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.names()
}

// Len returns the number of indexed assets.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.len()
}

// Busy reports whether a synchronize or refresh is outstanding.
func (b *Bank) Busy() bool { return b.busy.Load() }

// Evict stops playback of name, frees its buffer, drops it from the index
// and, when deleteFile is set, deletes its file.
func (b *Bank) Evict(name string, deleteFile bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	a := b.idx.get(name)
	if a == nil {
		return fmt.Errorf("evict %s: %w", name, ErrNotFound)
	}
	b.evictLocked(a)
	metrics.SetAssets(b.idx.len())
	if deleteFile {
		b.deleteFiles([]string{a.Filename()})
	}
	return nil
}

// evictLocked must be called with mu held for writing. It leaves the file on
// disk.
func (b *Bank) evictLocked(a *Asset) {
	if b.playback != nil {
		for _, h := range b.playback.Active() {
			if h.Buffer() == a.Buffer {
				h.Stop()
			}
		}
	}
	a.Buffer.Free()
	b.idx.remove(a)
	metrics.RecordEviction()
	b.log.Debug("evicted", zap.String("name", a.Name), zap.String("hash", a.Hash))
}

func (b *Bank) deleteFiles(filenames []string) {
	for _, name := range filenames {
		if err := b.dir.Remove(name); err != nil {
			b.log.Warn("delete file", zap.String("filename", name), zap.Error(err))
		}
	}
}

// load reads, hashes and decodes one file.
func (b *Bank) load(e store.Entry) (*Asset, error) {
	data, err := os.ReadFile(e.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Filename(), err)
	}
	sum := sha256.Sum256(data)

	buf, err := b.decoder.Decode(e.Filename(), data)
	if err != nil {
		metrics.RecordDecodeFailure()
		return nil, err
	}
	return &Asset{
		Name:      e.Name,
		Extension: e.Extension,
		Path:      e.Path,
		Hash:      hex.EncodeToString(sum[:]),
		Buffer:    buf,
	}, nil
}

// start runs work in the background unless another task is outstanding.
// work returns the commit that Poll applies under the write lock.
func (b *Bank) start(ctx context.Context, kind string, work func(context.Context) func() outcome) *Task {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	if b.closed.Load() {
		return nil
	}
	if !b.busy.CompareAndSwap(false, true) {
		b.log.Debug("task coalesced", zap.String("kind", kind))
		return nil
	}

	t := newTask(kind)
	b.inflight.Store(t)
	ctx = context.WithoutCancel(ctx)
	go func() {
		t.commit = work(ctx)
		// pending holds at most the one outstanding task, so this never
		// blocks. It must happen before ready so a woken waiter finds it.
		b.pending <- t
		close(t.ready)
	}()
	return t
}

// Poll applies the result of a finished background task, if any. It is meant
// to be called from the caller's periodic tick. The only I/O it does is
// deleting evicted files after the index lock is released.
// It reports whether a task was applied.
func (b *Bank) Poll() bool {
	var t *Task
	select {
	case t = <-b.pending:
	default:
		return false
	}

	b.mu.Lock()
	out := t.commit()
	total := b.idx.len()
	b.mu.Unlock()

	b.deleteFiles(out.remove)
	out.report.Total = total
	metrics.SetAssets(total)
	t.report, t.err = out.report, out.err

	b.inflight.Store(nil)
	b.busy.Store(false)
	close(t.done)

	if out.message != "" {
		b.display.Show(out.message)
	}
	return true
}

// Sync runs Synchronize and waits for its result. It returns ErrBusy when
// another task is outstanding.
func (b *Bank) Sync(ctx context.Context) (Report, error) {
	return b.wait(ctx, b.Synchronize(ctx))
}

// Refresh runs RefreshIndex and waits for its result. It returns ErrBusy when
// another task is outstanding and ErrNotFound when the directory is missing.
func (b *Bank) Refresh(ctx context.Context) (Report, error) {
	if !b.dir.Exists() {
		return Report{}, fmt.Errorf("refresh %s: %w", b.dir.Path(), ErrNotFound)
	}
	return b.wait(ctx, b.RefreshIndex(ctx))
}

func (b *Bank) wait(ctx context.Context, t *Task) (Report, error) {
	if t == nil {
		if b.closed.Load() {
			return Report{}, ErrClosed
		}
		return Report{}, ErrBusy
	}
	select {
	case <-t.ready:
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
	b.Poll()
	<-t.done
	return t.Result()
}

// Close waits for any outstanding task, applies it and evicts every asset.
// Files are kept.
func (b *Bank) Close() error {
	b.lifecycle.Lock()
	if !b.closed.CompareAndSwap(false, true) {
		b.lifecycle.Unlock()
		return nil
	}
	t := b.inflight.Load()
	b.lifecycle.Unlock()

	if t != nil {
		<-t.ready
		b.Poll()
		<-t.done
	}

	b.mu.Lock()
	for _, a := range b.idx.assets() {
		b.evictLocked(a)
	}
	b.mu.Unlock()
	metrics.SetAssets(0)

	return b.compressor.Close()
}
