package bench

import (
	"math/rand/v2"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memPool(t *testing.T, files []string, dirs []string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/pool", 0o755))
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, "/pool/"+f, []byte(f), 0o644))
	}
	for _, d := range dirs {
		require.NoError(t, fs.MkdirAll("/pool/"+d, 0o755))
	}
	return fs
}

func TestSelectorRoundRobinCycles(t *testing.T) {
	fs := memPool(t, []string{"c.txt", "a.txt", "b.txt"}, nil)
	s := NewSelector(fs, false, rand.New(rand.NewPCG(1, 2)))

	var got []string
	for i := 0; i < 5; i++ {
		name, err := s.Next(CopyFile, "/pool", KindFile)
		require.NoError(t, err)
		got = append(got, name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "a.txt", "b.txt"}, got)
	assert.Equal(t, 5, s.Cursor(CopyFile))
}

func TestSelectorCursorsAreIndependentPerOperation(t *testing.T) {
	fs := memPool(t, []string{"a.txt", "b.txt", "c.txt"}, nil)
	s := NewSelector(fs, false, rand.New(rand.NewPCG(1, 2)))

	first, _ := s.Next(CopyFile, "/pool", KindFile)
	second, _ := s.Next(CopyFile, "/pool", KindFile)
	del, err := s.Next(DeleteFile, "/pool", KindFile)
	require.NoError(t, err)

	assert.Equal(t, "a.txt", first)
	assert.Equal(t, "b.txt", second)
	assert.Equal(t, "a.txt", del)
}

func TestSelectorSeparatesFilesAndDirs(t *testing.T) {
	fs := memPool(t, []string{"f1"}, []string{"d1", "d2"})
	s := NewSelector(fs, false, rand.New(rand.NewPCG(1, 2)))

	d, err := s.Next(CopyDir, "/pool", KindDir)
	require.NoError(t, err)
	assert.Equal(t, "d1", d)

	f, err := s.Next(CopyFile, "/pool", KindFile)
	require.NoError(t, err)
	assert.Equal(t, "f1", f)
}

func TestSelectorRelistsEveryCall(t *testing.T) {
	fs := memPool(t, []string{"b.txt"}, nil)
	s := NewSelector(fs, false, rand.New(rand.NewPCG(1, 2)))

	name, err := s.Next(ReadFile, "/pool", KindFile)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", name)

	require.NoError(t, afero.WriteFile(fs, "/pool/a.txt", nil, 0o644))
	name, err = s.Next(ReadFile, "/pool", KindFile)
	require.NoError(t, err)
	// cursor is 1, listing is now [a.txt b.txt]
	assert.Equal(t, "b.txt", name)

	require.NoError(t, fs.Remove("/pool/b.txt"))
	name, err = s.Next(ReadFile, "/pool", KindFile)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", name)
}

func TestSelectorRandomStaysInListing(t *testing.T) {
	files := []string{"a.txt", "b.txt", "c.txt", "d.txt"}
	fs := memPool(t, files, []string{"skip"})
	s := NewSelector(fs, true, rand.New(rand.NewPCG(7, 7)))

	for i := 0; i < 200; i++ {
		name, err := s.Next(CopyFile, "/pool", KindFile)
		require.NoError(t, err)
		assert.Contains(t, files, name)
	}
	assert.Equal(t, 0, s.Cursor(CopyFile))
}

func TestSelectorEmptyPool(t *testing.T) {
	fs := memPool(t, nil, []string{"only-a-dir"})
	for _, random := range []bool{false, true} {
		s := NewSelector(fs, random, rand.New(rand.NewPCG(1, 2)))
		_, err := s.Next(DeleteFile, "/pool", KindFile)
		assert.ErrorIs(t, err, ErrEmptyResourcePool)
	}
}

func TestSelectorMissingFolder(t *testing.T) {
	s := NewSelector(afero.NewMemMapFs(), false, rand.New(rand.NewPCG(1, 2)))
	_, err := s.Next(CopyFile, "/nope", KindFile)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyResourcePool)
}

func TestSelectorsDoNotShareCursors(t *testing.T) {
	fs := memPool(t, []string{"a.txt", "b.txt", "c.txt"}, nil)
	s1 := NewSelector(fs, false, rand.New(rand.NewPCG(1, 2)))
	s2 := NewSelector(fs, false, rand.New(rand.NewPCG(1, 2)))

	for i := 0; i < 2; i++ {
		_, err := s1.Next(CopyFile, "/pool", KindFile)
		require.NoError(t, err)
	}
	name, err := s2.Next(CopyFile, "/pool", KindFile)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", name)
	assert.Equal(t, 2, s1.Cursor(CopyFile))
	assert.Equal(t, 1, s2.Cursor(CopyFile))
}
