package mirror

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// origin is a throwaway upstream repository.
type origin struct {
	t    *testing.T
	dir  string
	repo *git.Repository
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return &origin{t: t, dir: dir, repo: repo}
}

func (o *origin) commit(files map[string]string) {
	o.t.Helper()
	wt, err := o.repo.Worktree()
	require.NoError(o.t, err)
	for rel, content := range files {
		path := filepath.Join(o.dir, rel)
		require.NoError(o.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(o.t, os.WriteFile(path, []byte(content), 0o644))
		_, err := wt.Add(rel)
		require.NoError(o.t, err)
	}
	_, err = wt.Commit("update sounds", &git.CommitOptions{
		Author: &object.Signature{Name: "upstream", Email: "up@example.com", When: time.Now()},
	})
	require.NoError(o.t, err)
}

func TestMirror(t *testing.T) {
	ctx := context.Background()
	up := newOrigin(t)
	up.commit(map[string]string{"horn.wav": "toot"})

	var mu sync.Mutex
	var lines []string
	dir := filepath.Join(t.TempDir(), "bank")
	m := New(up.dir, dir,
		WithLogger(zaptest.NewLogger(t)),
		WithCommitter(Committer{Name: "bugler", Email: "bugler@example.com"}),
		WithProgress(func(s string) {
			mu.Lock()
			lines = append(lines, s)
			mu.Unlock()
		}),
	)

	require.False(t, m.IsRepository())
	_, err := m.NeedsPull(ctx)
	require.ErrorIs(t, err, ErrNotRepository)

	require.NoError(t, m.Clone(ctx))
	require.True(t, m.IsRepository())

	data, err := os.ReadFile(filepath.Join(dir, "horn.wav"))
	require.NoError(t, err)
	require.Equal(t, "toot", string(data))

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	cfg, err := repo.Config()
	require.NoError(t, err)
	require.Equal(t, "bugler", cfg.User.Name)
	require.Equal(t, "bugler@example.com", cfg.User.Email)

	needs, err := m.NeedsPull(ctx)
	require.NoError(t, err)
	require.False(t, needs)

	up.commit(map[string]string{"fanfare.ogg": "ta-da"})

	needs, err = m.NeedsPull(ctx)
	require.NoError(t, err)
	require.True(t, needs)

	require.NoError(t, m.Pull(ctx))
	data, err = os.ReadFile(filepath.Join(dir, "fanfare.ogg"))
	require.NoError(t, err)
	require.Equal(t, "ta-da", string(data))

	needs, err = m.NeedsPull(ctx)
	require.NoError(t, err)
	require.False(t, needs)
}

func TestMirrorCloneFailureKeepsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bank")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "horn.wav"), []byte("local"), 0o644))

	m := New(filepath.Join(t.TempDir(), "no-such-repo"), dir)
	require.Error(t, m.Clone(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "horn.wav"))
	require.NoError(t, err)
	require.Equal(t, "local", string(data))

	siblings, err := filepath.Glob(filepath.Join(filepath.Dir(dir), ".bank.clone-*"))
	require.NoError(t, err)
	require.Empty(t, siblings)
}

func TestLineWriter(t *testing.T) {
	var got []string
	w := &lineWriter{fn: func(s string) { got = append(got, s) }}

	w.Write([]byte("Counting objects:  50% (1/2)\rCounting objects: 100% (2/2)"))
	w.Write([]byte(", done.\n\n"))

	require.Equal(t, []string{
		"Counting objects:  50% (1/2)",
		"Counting objects: 100% (2/2), done.",
	}, got)
}

func TestMirrorPullWithDeletedTrackedFile(t *testing.T) {
	ctx := context.Background()
	up := newOrigin(t)
	up.commit(map[string]string{"horn.wav": "toot", "README.md": "sounds"})

	dir := filepath.Join(t.TempDir(), "bank")
	m := New(up.dir, dir)
	require.NoError(t, m.Clone(ctx))
	require.NoError(t, os.Remove(filepath.Join(dir, "README.md")))

	up.commit(map[string]string{"taps.wav": "taa"})
	needs, err := m.NeedsPull(ctx)
	require.NoError(t, err)
	require.True(t, needs)
	require.NoError(t, m.Pull(ctx))

	require.FileExists(t, filepath.Join(dir, "taps.wav"))
	require.FileExists(t, filepath.Join(dir, "README.md"))
}

func TestMirrorPullDiverged(t *testing.T) {
	ctx := context.Background()
	up := newOrigin(t)
	up.commit(map[string]string{"horn.wav": "toot"})

	dir := filepath.Join(t.TempDir(), "bank")
	m := New(up.dir, dir)
	require.NoError(t, m.Clone(ctx))

	local := &origin{t: t, dir: dir}
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	local.repo = repo
	local.commit(map[string]string{"local.wav": "mine"})
	up.commit(map[string]string{"taps.wav": "taa"})

	err = m.Pull(ctx)
	require.ErrorIs(t, err, git.ErrNonFastForwardUpdate)
	require.NoFileExists(t, filepath.Join(dir, "taps.wav"))
	require.FileExists(t, filepath.Join(dir, "local.wav"))
}
