package seed

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulate(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := Config{
		UnmonitoredDir: "/in",
		UniqueIDs:      []string{"serverh_instance1", "serverh_instance2"},
		Files:          4,
		Dirs:           2,
		FilesPerDir:    3,
		MinSize:        10,
		MaxSize:        20,
		Seed:           7,
	}

	res, err := Populate(fs, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2*(4+2*3), res.Files)
	assert.Equal(t, 4, res.Dirs)
	assert.GreaterOrEqual(t, res.Bytes, int64(10*res.Files))
	assert.LessOrEqual(t, res.Bytes, int64(20*res.Files))

	files, err := afero.ReadDir(fs, "/in/files/serverh_instance2")
	require.NoError(t, err)
	require.Len(t, files, 4)
	assert.Equal(t, "file_000.txt", files[0].Name())
	assert.Equal(t, "file_001.bin", files[1].Name())

	nested, err := afero.ReadDir(fs, "/in/dirs/serverh_instance1/dir_001/nested")
	require.NoError(t, err)
	assert.Len(t, nested, 1)
}

func TestPopulateIsReproducible(t *testing.T) {
	cfg := Config{UnmonitoredDir: "/in", UniqueIDs: []string{"u"}, Files: 2, MinSize: 1, MaxSize: 100, Seed: 3}
	a, b := afero.NewMemMapFs(), afero.NewMemMapFs()
	_, err := Populate(a, cfg)
	require.NoError(t, err)
	_, err = Populate(b, cfg)
	require.NoError(t, err)

	x, err := afero.ReadFile(a, "/in/files/u/file_001.bin")
	require.NoError(t, err)
	y, err := afero.ReadFile(b, "/in/files/u/file_001.bin")
	require.NoError(t, err)
	assert.Equal(t, x, y)
}

func TestPopulateRejectsInvertedRange(t *testing.T) {
	_, err := Populate(afero.NewMemMapFs(), Config{MinSize: 10, MaxSize: 1})
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out/files/u/a.txt", []byte("a"), 0o644))
	require.NoError(t, fs.MkdirAll("/out/dirs/u/d1/x", 0o755))

	n, err := Reset(fs, "/out", "u")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := afero.DirExists(fs, "/out/files/u")
	require.NoError(t, err)
	assert.True(t, ok)
	entries, err := afero.ReadDir(fs, filepath.Join("/out", "dirs", "u"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	n, err = Reset(fs, "/nowhere", "u")
	require.NoError(t, err)
	assert.Zero(t, n)
}
