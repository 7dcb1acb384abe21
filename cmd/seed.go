package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"fsbench/internal/seed"
)

var (
	seedFiles       int
	seedDirs        int
	seedFilesPerDir int
	seedMinSize     string
	seedMaxSize     string
	seedReset       bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the source pools (and empty managed pools) for every worker",
	Example: `  fsbench seed -n 8 --unmonitored /data/in --monitored /mnt/nfs/out --files 50 --max-size 4MiB
  fsbench seed -s scenario.yaml --reset`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := loadScenario(cmd)
		if err != nil {
			return err
		}

		pool := sc.Pool
		f := cmd.Flags()
		if f.Changed("files") {
			pool.Files = seedFiles
		}
		if f.Changed("dirs") {
			pool.Dirs = seedDirs
		}
		if f.Changed("files-per-dir") {
			pool.FilesPerDir = seedFilesPerDir
		}
		if f.Changed("min-size") {
			v, err := humanize.ParseBytes(seedMinSize)
			if err != nil {
				return fmt.Errorf("seed: --min-size: %w", err)
			}
			pool.MinSize = int64(v)
		}
		if f.Changed("max-size") {
			v, err := humanize.ParseBytes(seedMaxSize)
			if err != nil {
				return fmt.Errorf("seed: --max-size: %w", err)
			}
			pool.MaxSize = int64(v)
		}

		fs := afero.NewOsFs()

		// Workers sharing a source root are seeded in one pass.
		byRoot := make(map[string][]string)
		var roots []string
		for _, w := range sc.Workers {
			if _, ok := byRoot[w.UnmonitoredDir]; !ok {
				roots = append(roots, w.UnmonitoredDir)
			}
			byRoot[w.UnmonitoredDir] = append(byRoot[w.UnmonitoredDir], w.UniqueID())

			for _, kind := range []string{"files", "dirs"} {
				if err := fs.MkdirAll(filepath.Join(w.MonitoredDir, kind, w.UniqueID()), 0o755); err != nil {
					return fmt.Errorf("seed: %w", err)
				}
			}
			if seedReset {
				if _, err := seed.Reset(fs, w.MonitoredDir, w.UniqueID()); err != nil {
					return err
				}
			}
		}

		var total seed.Result
		for _, root := range roots {
			res, err := seed.Populate(fs, seed.Config{
				UnmonitoredDir: root,
				UniqueIDs:      byRoot[root],
				Files:          pool.Files,
				Dirs:           pool.Dirs,
				FilesPerDir:    pool.FilesPerDir,
				MinSize:        pool.MinSize,
				MaxSize:        pool.MaxSize,
				Seed:           sc.Defaults.Seed,
			})
			if err != nil {
				return err
			}
			total.Files += res.Files
			total.Dirs += res.Dirs
			total.Bytes += res.Bytes
		}

		fmt.Printf("🌱 Seeded %d workers: %s files, %s dirs, %s\n",
			len(sc.Workers), humanize.Comma(int64(total.Files)), humanize.Comma(int64(total.Dirs)), humanize.IBytes(uint64(total.Bytes)))
		return nil
	},
}

func init() {
	f := seedCmd.Flags()
	addScenarioFlags(f)
	f.IntVar(&seedFiles, "files", 0, "Files per worker source pool")
	f.IntVar(&seedDirs, "dirs", 0, "Directories per worker source pool")
	f.IntVar(&seedFilesPerDir, "files-per-dir", 0, "Files inside each seeded directory")
	f.StringVar(&seedMinSize, "min-size", "", "Smallest file size (e.g. 1KiB)")
	f.StringVar(&seedMaxSize, "max-size", "", "Largest file size (e.g. 4MiB)")
	f.BoolVar(&seedReset, "reset", false, "Empty the managed pools as well")
}
