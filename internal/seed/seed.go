package seed

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/spf13/afero"
)

var extensions = []string{".txt", ".bin", ".dat"}

// Config describes the source pool of one or more workers.
type Config struct {
	UnmonitoredDir string
	UniqueIDs      []string

	Files       int
	Dirs        int
	FilesPerDir int
	MinSize     int64
	MaxSize     int64

	// Seed makes contents and sizes reproducible; 0 picks a random one.
	Seed uint64
}

type Result struct {
	Files int
	Dirs  int
	Bytes int64
}

// Populate writes Files files and Dirs directories (each holding FilesPerDir
// files, one level nested) into every worker's source pool. Existing entries
// with the same name are overwritten.
func Populate(fs afero.Fs, cfg Config) (Result, error) {
	var res Result
	if cfg.MinSize < 0 || cfg.MaxSize < cfg.MinSize {
		return res, fmt.Errorf("seed.Populate: invalid size range [%d, %d]", cfg.MinSize, cfg.MaxSize)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, uint64(len(cfg.UniqueIDs))))

	for _, uid := range cfg.UniqueIDs {
		filesDir := filepath.Join(cfg.UnmonitoredDir, "files", uid)
		dirsDir := filepath.Join(cfg.UnmonitoredDir, "dirs", uid)
		for _, d := range []string{filesDir, dirsDir} {
			if err := fs.MkdirAll(d, 0o755); err != nil {
				return res, fmt.Errorf("seed.Populate: %w", err)
			}
		}

		for i := 0; i < cfg.Files; i++ {
			name := fmt.Sprintf("file_%03d%s", i, extensions[i%len(extensions)])
			n, err := writeRandom(fs, rng, filepath.Join(filesDir, name), cfg.MinSize, cfg.MaxSize)
			if err != nil {
				return res, err
			}
			res.Files++
			res.Bytes += n
		}

		for i := 0; i < cfg.Dirs; i++ {
			dir := filepath.Join(dirsDir, fmt.Sprintf("dir_%03d", i))
			nested := filepath.Join(dir, "nested")
			if err := fs.MkdirAll(nested, 0o755); err != nil {
				return res, fmt.Errorf("seed.Populate: %w", err)
			}
			for j := 0; j < cfg.FilesPerDir; j++ {
				parent := dir
				if j%2 == 1 {
					parent = nested
				}
				n, err := writeRandom(fs, rng, filepath.Join(parent, fmt.Sprintf("part_%03d.bin", j)), cfg.MinSize, cfg.MaxSize)
				if err != nil {
					return res, err
				}
				res.Files++
				res.Bytes += n
			}
			res.Dirs++
		}
	}
	return res, nil
}

// Reset empties a worker's managed folders, leaving the folders themselves.
func Reset(fs afero.Fs, monitoredDir, uid string) (int, error) {
	removed := 0
	for _, kind := range []string{"files", "dirs"} {
		dir := filepath.Join(monitoredDir, kind, uid)
		entries, err := afero.ReadDir(fs, dir)
		if err != nil {
			if exists, _ := afero.DirExists(fs, dir); !exists {
				continue
			}
			return removed, fmt.Errorf("seed.Reset: %w", err)
		}
		for _, e := range entries {
			if err := fs.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return removed, fmt.Errorf("seed.Reset: %w", err)
			}
			removed++
		}
	}
	return removed, nil
}

func writeRandom(fs afero.Fs, rng *rand.Rand, path string, minSize, maxSize int64) (int64, error) {
	size := minSize
	if maxSize > minSize {
		size += rng.Int64N(maxSize - minSize + 1)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(rng.UintN(256))
	}
	if err := afero.WriteFile(fs, path, buf, 0o644); err != nil {
		return 0, fmt.Errorf("seed.Populate: %w", err)
	}
	return size, nil
}
