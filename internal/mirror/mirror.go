// Package mirror keeps a git working copy of the sound bank in sync with its
// remote. It backs the bank's fallback path when the audio API is unavailable:
// change detection is whatever git says, at whole-repository granularity.
package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const remoteName = "origin"

var ErrNotRepository = errors.New("mirror: not a git repository")

// Committer is the identity recorded in the working copy's config.
type Committer struct {
	Name  string
	Email string
}

var DefaultCommitter = Committer{Name: "soundbank", Email: "soundbank@localhost"}

// Mirror is a git checkout of url at dir.
type Mirror struct {
	url       string
	dir       string
	committer Committer
	progress  func(string)
	log       *zap.Logger
}

type Option func(*Mirror)

// WithCommitter sets the identity written to the repository config.
func WithCommitter(c Committer) Option {
	return func(m *Mirror) {
		if c.Name != "" && c.Email != "" {
			m.committer = c
		}
	}
}

// WithProgress receives git's human readable progress lines.
func WithProgress(fn func(string)) Option {
	return func(m *Mirror) { m.progress = fn }
}

func WithLogger(log *zap.Logger) Option {
	return func(m *Mirror) { m.log = log }
}

func New(url, dir string, opts ...Option) *Mirror {
	m := &Mirror{
		url:       url,
		dir:       dir,
		committer: DefaultCommitter,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mirror) URL() string { return m.url }
func (m *Mirror) Dir() string { return m.dir }

// IsRepository reports whether dir holds a git working copy.
func (m *Mirror) IsRepository() bool {
	if _, err := os.Stat(m.dir); err != nil {
		return false
	}
	_, err := git.PlainOpen(m.dir)
	return err == nil
}

// Clone clones the remote into a sibling temp directory and swaps it in place
// of dir once complete. A failed clone leaves dir untouched.
func (m *Mirror) Clone(ctx context.Context) error {
	m.log.Info("cloning mirror", zap.String("url", m.url), zap.String("dir", m.dir))

	parent := filepath.Dir(m.dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	tmp := filepath.Join(parent, "."+filepath.Base(m.dir)+".clone-"+uuid.NewString())

	repo, err := git.PlainCloneContext(ctx, tmp, false, &git.CloneOptions{
		URL:        m.url,
		RemoteName: remoteName,
		Progress:   m.progressWriter("Downloading"),
	})
	if err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("clone %s: %w", m.url, err)
	}

	if err := m.setCommitter(repo); err != nil {
		os.RemoveAll(tmp)
		return err
	}

	if err := os.RemoveAll(m.dir); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("replace bank dir: %w", err)
	}
	if err := os.Rename(tmp, m.dir); err != nil {
		os.RemoveAll(tmp)
		return fmt.Errorf("replace bank dir: %w", err)
	}
	return nil
}

// Checkout force-checks-out HEAD into the working tree. Used when a clone
// produced an empty tree.
func (m *Mirror) Checkout(ctx context.Context) error {
	repo, err := m.open()
	if err != nil {
		return err
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolve head: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: head.Name(), Force: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", head.Name().Short(), err)
	}
	return nil
}

// NeedsPull fetches the remote and reports whether the local branch tip
// differs from the tracked remote branch tip.
func (m *Mirror) NeedsPull(ctx context.Context) (bool, error) {
	repo, err := m.open()
	if err != nil {
		return false, err
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		Progress:   m.progressWriter("Checking updates"),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return false, fmt.Errorf("fetch: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return false, fmt.Errorf("resolve head: %w", err)
	}
	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(remoteName, head.Name().Short()), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("resolve remote branch: %w", err)
	}

	needs := remoteRef.Hash() != head.Hash()
	m.log.Debug("mirror tips",
		zap.String("local", head.Hash().String()),
		zap.String("remote", remoteRef.Hash().String()),
		zap.Bool("needs_pull", needs))
	return needs, nil
}

// Pull fetches the remote and fast-forwards the current branch to it. The
// work tree is hard reset onto the new tip, so local edits to tracked files
// (such as pruned non-media files) do not block the update. A diverged
// checkout is reported as git.ErrNonFastForwardUpdate and left as it is.
func (m *Mirror) Pull(ctx context.Context) error {
	repo, err := m.open()
	if err != nil {
		return err
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		Progress:   m.progressWriter("Updating"),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolve head: %w", err)
	}
	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(remoteName, head.Name().Short()), true)
	if err != nil {
		return fmt.Errorf("resolve remote branch: %w", err)
	}
	if remoteRef.Hash() == head.Hash() {
		return nil
	}

	local, err := repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("read local tip: %w", err)
	}
	upstream, err := repo.CommitObject(remoteRef.Hash())
	if err != nil {
		return fmt.Errorf("read remote tip: %w", err)
	}
	ff, err := local.IsAncestor(upstream)
	if err != nil {
		return fmt.Errorf("compare tips: %w", err)
	}
	if !ff {
		return fmt.Errorf("pull %s: %w", head.Name().Short(), git.ErrNonFastForwardUpdate)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: remoteRef.Hash()}); err != nil {
		return fmt.Errorf("pull %s: %w", head.Name().Short(), err)
	}
	m.log.Info("mirror updated",
		zap.String("from", head.Hash().String()),
		zap.String("to", remoteRef.Hash().String()))
	return nil
}

func (m *Mirror) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(m.dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotRepository
		}
		return nil, fmt.Errorf("open %s: %w", m.dir, err)
	}
	return repo, nil
}

func (m *Mirror) setCommitter(repo *git.Repository) error {
	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("read repo config: %w", err)
	}
	cfg.User.Name = m.committer.Name
	cfg.User.Email = m.committer.Email
	if err := repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("write repo config: %w", err)
	}
	return nil
}

// progressWriter forwards git sideband progress lines, prefixed with stage,
// to the progress callback.
func (m *Mirror) progressWriter(stage string) io.Writer {
	if m.progress == nil {
		return nil
	}
	return &lineWriter{fn: func(line string) { m.progress(stage + ": " + line) }}
}

// lineWriter splits written bytes on \r and \n and calls fn per non-empty line.
type lineWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	fn  func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			break
		}
		line := strings.TrimSpace(string(data[:i]))
		w.buf.Next(i + 1)
		if line != "" {
			w.fn(line)
		}
	}
	return len(p), nil
}
