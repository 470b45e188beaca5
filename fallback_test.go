package soundbank

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// commitFiles writes files into the work tree of the repository at dir and
// commits them.
func commitFiles(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for name, data := range files {
		writeFile(t, dir, name, data)
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit("update sounds", &git.CommitOptions{
		Author: &object.Signature{Name: "upstream", Email: "up@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func newOrigin(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commitFiles(t, dir, files)
	return dir
}

func TestFallbackMirror(t *testing.T) {
	ctx := context.Background()
	origin := newOrigin(t, map[string][]byte{
		"horn.wav":  wav("horn"),
		"README.md": []byte("# bugle sounds"),
	})

	api := newFakeAPI(t)
	api.setListStatus(http.StatusNotFound)

	display := &recorder{}
	dir := filepath.Join(t.TempDir(), "bank")
	bank := openBank(t, dir,
		WithManifestURL(api.URL()),
		WithGitMirror(origin),
		WithCommitter(Committer{Name: "bugler", Email: "bugler@example.com"}),
		WithDisplay(display),
	)

	// Clone.
	report, err := bank.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, SourceMirror, report.Source)
	require.Equal(t, 1, report.Loaded)
	require.Equal(t, []string{"horn"}, bank.Names())
	require.True(t, display.saw("Syncing audio repository..."))
	require.Equal(t, "1 songs loaded !", display.last())
	require.NoFileExists(t, filepath.Join(dir, "README.md"))
	require.DirExists(t, filepath.Join(dir, ".git"))

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	cfg, err := repo.Config()
	require.NoError(t, err)
	require.Equal(t, "bugler", cfg.User.Name)
	require.Equal(t, "bugler@example.com", cfg.User.Email)

	// Pull.
	horn, _ := bank.Get("horn")
	commitFiles(t, origin, map[string][]byte{"fanfare.mp3": mp3("fanfare")})
	report, err = bank.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Loaded)
	require.Equal(t, []string{"fanfare", "horn"}, bank.Names())
	require.True(t, horn.Buffer.Freed())
	requireConsistent(t, bank)

	// Up to date.
	horn, _ = bank.Get("horn")
	report, err = bank.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, Report{Source: SourceMirror, Total: 2}, report)
	require.Equal(t, "Audio repository is up to date.", display.last())
	again, _ := bank.Get("horn")
	require.Same(t, horn, again)
}

func TestFallbackFailedPullDoesNotReload(t *testing.T) {
	ctx := context.Background()
	origin := newOrigin(t, map[string][]byte{"horn.wav": wav("horn")})

	display := &recorder{}
	dir := filepath.Join(t.TempDir(), "bank")
	bank := openBank(t, dir, WithGitMirror(origin), WithDisplay(display))

	_, err := bank.Sync(ctx)
	require.NoError(t, err)
	horn, _ := bank.Get("horn")

	// Diverge the checkout from its upstream so the pull cannot fast-forward.
	commitFiles(t, dir, map[string][]byte{"local.wav": wav("local")})
	commitFiles(t, origin, map[string][]byte{"taps.wav": wav("taps")})

	_, err = bank.Sync(ctx)
	require.ErrorContains(t, err, "pull mirror")
	require.Equal(t, "Failed to pull audio repository updates.", display.last())

	require.Equal(t, []string{"horn"}, bank.Names())
	again, _ := bank.Get("horn")
	require.Same(t, horn, again)
	require.False(t, horn.Buffer.Freed())
}

func TestFallbackCloneFailure(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "bank")
	writeFile(t, dir, "horn.wav", wav("horn"))

	display := &recorder{}
	bank := openBank(t, dir,
		WithGitMirror(filepath.Join(t.TempDir(), "no-such-repo")),
		WithDisplay(display),
	)
	_, err := bank.Refresh(ctx)
	require.NoError(t, err)

	_, err = bank.Sync(ctx)
	require.ErrorContains(t, err, "clone mirror")
	require.Equal(t, "Failed to clone audio repository.", display.last())

	require.Equal(t, []string{"horn"}, bank.Names())
	data, err := os.ReadFile(filepath.Join(dir, "horn.wav"))
	require.NoError(t, err)
	require.Equal(t, wav("horn"), data)
}
