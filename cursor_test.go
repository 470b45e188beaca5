package soundbank

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursor(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bank")
	writeFile(t, dir, "charge.wav", wav("charge"))
	writeFile(t, dir, "horn.wav", wav("horn"))
	writeFile(t, dir, "taps.wav", wav("taps"))

	bank := openBank(t, dir)
	cursor := NewCursor(bank)

	_, ok := cursor.Current()
	require.False(t, ok)

	_, err := bank.Refresh(context.Background())
	require.NoError(t, err)

	name, ok := cursor.Current()
	require.True(t, ok)
	require.Equal(t, "charge", name)

	steps := []struct {
		move func() (string, bool)
		want string
	}{
		{cursor.Next, "horn"},
		{cursor.Next, "taps"},
		{cursor.Next, "charge"},
		{cursor.Prev, "taps"},
		{cursor.Prev, "horn"},
	}
	for _, step := range steps {
		name, ok := step.move()
		require.True(t, ok)
		require.Equal(t, step.want, name)
	}

	require.ErrorIs(t, cursor.Select("reveille"), ErrNotFound)
	require.NoError(t, cursor.Select("horn"))

	// The selection falls back to whatever now sits at its old position.
	require.NoError(t, bank.Evict("horn", false))
	name, _ = cursor.Current()
	require.Equal(t, "taps", name)

	require.NoError(t, bank.Evict("taps", false))
	name, _ = cursor.Current()
	require.Equal(t, "charge", name)

	require.NoError(t, bank.Evict("charge", false))
	_, ok = cursor.Next()
	require.False(t, ok)
}
