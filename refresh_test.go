package soundbank

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRefreshIndex(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "bank")
	writeFile(t, dir, "horn.wav", wav("horn"))
	writeFile(t, dir, "taps.mp3", mp3("taps as mp3"))
	writeFile(t, dir, "taps.wav", wav("taps as wav"))
	writeFile(t, dir, "broken.wav", []byte("toot"))
	writeFile(t, dir, "notes.txt", []byte("not media"))
	writeFile(t, dir, ".hidden.wav", wav("hidden"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	writeFile(t, filepath.Join(dir, "nested"), "deep.wav", wav("deep"))

	display := &recorder{}
	bank := openBank(t, dir, WithDisplay(display))

	report, err := bank.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, SourceLocal, report.Source)
	require.Equal(t, 2, report.Loaded)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 2, report.Total)
	require.Equal(t, "2 songs loaded !", display.last())
	require.True(t, display.saw("Loading songs... 3/3"))

	require.Equal(t, []string{"horn", "taps"}, bank.Names())
	taps, _ := bank.Get("taps")
	require.Equal(t, "wav", taps.Extension)
	require.Equal(t, hashOf(wav("taps as wav")), taps.Hash)
	requireConsistent(t, bank)

	// Unchanged files are not decoded again.
	horn, _ := bank.Get("horn")
	report, err = bank.Refresh(ctx)
	require.NoError(t, err)
	require.Zero(t, report.Loaded)
	again, _ := bank.Get("horn")
	require.Same(t, horn, again)

	require.NoError(t, os.Remove(filepath.Join(dir, "horn.wav")))
	writeFile(t, dir, "fanfare.mp3", mp3("fanfare"))
	report, err = bank.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Removed)
	require.Equal(t, 1, report.Added)
	require.True(t, horn.Buffer.Freed())
	require.Equal(t, []string{"fanfare", "taps"}, bank.Names())
	requireConsistent(t, bank)
}

func TestRefreshIndexMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	bank := openBank(t, dir)

	require.Nil(t, bank.RefreshIndex(context.Background()))
	require.False(t, bank.Busy())
	_, err := bank.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.NoDirExists(t, dir)
}

func TestRefreshIndexCleansTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bank")
	writeFile(t, dir, ".soundbank-1234.part", []byte("half a clip"))
	writeFile(t, dir, "horn.wav", wav("horn"))

	bank := openBank(t, dir)
	require.Empty(t, tempFiles(t, dir))

	_, err := bank.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"horn"}, bank.Names())
}
