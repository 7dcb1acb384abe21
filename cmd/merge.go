package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"fsbench/internal/bench"
	"fsbench/internal/logger"
	"fsbench/internal/storage"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <run-dir>",
	Short: "Merge the worker artifacts found in a run directory",
	Long: `Merge concatenates every results_server*_instance*_*.json artifact in
run-dir, ordered by server id then instance id, into merged_results.json.
Use it after standalone workers finished.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runDir := args[0]
		fs := afero.NewOsFs()

		parts, err := findArtifacts(fs, runDir)
		if err != nil {
			return err
		}
		if len(parts) == 0 {
			return fmt.Errorf("merge: no worker artifacts in %s", runDir)
		}

		ds := storage.Merge(fs, filepath.Base(runDir), parts, nil)
		out := filepath.Join(runDir, storage.MergedFileName)
		if err := storage.WriteDataset(fs, out, ds); err != nil {
			return err
		}

		fmt.Printf("🔗 Merged %d workers, %s records -> %s\n", len(ds.Workers), humanize.Comma(int64(len(ds.Records))), out)
		for _, m := range ds.MissingSlots {
			fmt.Printf("   ⚠️  slot %d (%s): %s\n", m.Slot, m.UniqueID, m.Error)
		}
		if ds.Status != storage.StatusMerged {
			return fmt.Errorf("merge: %d artifacts could not be read", len(ds.MissingSlots))
		}
		return nil
	},
}

// findArtifacts lists worker artifacts and assigns slots in (server, instance)
// order. When a worker left several artifacts, the newest one wins.
func findArtifacts(fs afero.Fs, runDir string) ([]storage.WorkerArtifact, error) {
	matches, err := afero.Glob(fs, filepath.Join(runDir, "results_server*.json"))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	sort.Strings(matches)

	byUID := make(map[string]storage.WorkerArtifact)
	for _, path := range matches {
		server, instance, err := storage.ParseArtifactName(path)
		if err != nil {
			logger.Get().Warn().Err(err).Str("path", path).Msg("skipping file")
			continue
		}
		id := bench.WorkerIdentity{ServerID: server, InstanceID: instance, UniqueID: bench.UniqueID(server, instance)}
		byUID[id.UniqueID] = storage.WorkerArtifact{Identity: id, Path: path}
	}

	parts := make([]storage.WorkerArtifact, 0, len(byUID))
	for _, p := range byUID {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool {
		a, b := parts[i].Identity, parts[j].Identity
		if a.ServerID != b.ServerID {
			return a.ServerID < b.ServerID
		}
		return a.InstanceID < b.InstanceID
	})
	for i := range parts {
		parts[i].Slot = i
	}
	return parts, nil
}
