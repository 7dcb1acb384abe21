package bench

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) WorkerConfig {
	t.Helper()
	root := t.TempDir()
	return WorkerConfig{
		ServerID:       "127.0.0.1",
		InstanceID:     1,
		RunID:          "run_test",
		UnmonitoredDir: filepath.Join(root, "unmonitored"),
		MonitoredDir:   filepath.Join(root, "monitored"),
		Mode:           ModeSequential,
		Iterations:     1,
		Seed:           42,
	}
}

func seedPool(t *testing.T, cfg WorkerConfig, files map[string]string, dirs []string) {
	t.Helper()
	uid := cfg.UniqueID()
	fileDir := filepath.Join(cfg.UnmonitoredDir, "files", uid)
	dirDir := filepath.Join(cfg.UnmonitoredDir, "dirs", uid)
	require.NoError(t, os.MkdirAll(fileDir, 0o755))
	require.NoError(t, os.MkdirAll(dirDir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(fileDir, name), []byte(content), 0o644))
	}
	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(dirDir, d, "nested"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dirDir, d, "nested", "f.bin"), []byte(d), 0o644))
	}
}

func newTestWorker(t *testing.T, cfg WorkerConfig) *Worker {
	t.Helper()
	w, err := NewWorker(cfg, Options{Fs: afero.NewOsFs()})
	require.NoError(t, err)
	require.NoError(t, w.Setup())
	return w
}

func assertContiguous(t *testing.T, recs []OperationRecord) {
	t.Helper()
	for i, r := range recs {
		assert.Equal(t, i, r.OperationID)
		assert.GreaterOrEqual(t, r.DurationSeconds, 0.0)
		assert.GreaterOrEqual(t, r.EndTimeNs, r.StartTimeNs)
		assert.Equal(t, !r.Success, r.Error != "", "record %d", i)
	}
}

func TestCopyFileRoundRobin(t *testing.T) {
	cfg := testConfig(t)
	seedPool(t, cfg, map[string]string{"a.txt": "aa", "b.txt": "bbb", "c.txt": "c"}, nil)
	w := newTestWorker(t, cfg)

	for i := 0; i < 3; i++ {
		w.CopyFile()
	}

	recs := w.Records()
	require.Len(t, recs, 3)
	for i, want := range []string{"a.txt", "b.txt", "c.txt"} {
		assert.Equal(t, i, recs[i].OperationID)
		assert.Equal(t, CopyFile, recs[i].OperationType)
		assert.True(t, recs[i].Success, recs[i].Error)
		assert.Equal(t, want, filepath.Base(recs[i].TargetPath))
		assert.FileExists(t, recs[i].DestinationPath)
	}
	require.NotNil(t, recs[1].SizeBytes)
	assert.Equal(t, int64(3), *recs[1].SizeBytes)
	assert.Equal(t, StrategyNative, recs[0].Strategy)

	copied, err := os.ReadDir(filepath.Join(cfg.MonitoredDir, "files", cfg.UniqueID()))
	require.NoError(t, err)
	assert.Len(t, copied, 3)
}

func TestCopyFilePreservesModTime(t *testing.T) {
	cfg := testConfig(t)
	seedPool(t, cfg, map[string]string{"a.txt": "hello"}, nil)
	src := filepath.Join(cfg.UnmonitoredDir, "files", cfg.UniqueID(), "a.txt")
	old := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, old, old))

	w := newTestWorker(t, cfg)
	rec := w.CopyFile()
	require.True(t, rec.Success, rec.Error)

	fi, err := os.Stat(rec.DestinationPath)
	require.NoError(t, err)
	assert.True(t, fi.ModTime().Equal(old))
}

func TestSequentialRunExercisesEveryOperation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Iterations = 3
	seedPool(t, cfg, map[string]string{"a.txt": "aaaa", "b.txt": "bbbb"}, []string{"d1", "d2"})
	w := newTestWorker(t, cfg)

	recs := w.Run(context.Background())
	require.Len(t, recs, 3*len(SequentialOrder))
	assertContiguous(t, recs)

	for i, r := range recs {
		assert.Equal(t, SequentialOrder[i%len(SequentialOrder)], r.OperationType)
		assert.True(t, r.Success, "%s: %s", r.OperationType, r.Error)
		switch r.OperationType {
		case CopyDir, MoveDir, DeleteDir:
			assert.Nil(t, r.SizeBytes)
		default:
			assert.NotNil(t, r.SizeBytes)
		}
	}

	// source pool is never touched by deletes
	left, err := os.ReadDir(filepath.Join(cfg.UnmonitoredDir, "files", cfg.UniqueID()))
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestEmptyPoolsFailWithoutStoppingTheRun(t *testing.T) {
	cfg := testConfig(t)
	cfg.Iterations = 2
	w := newTestWorker(t, cfg)

	recs := w.Run(context.Background())
	require.Len(t, recs, 2*len(SequentialOrder))
	assertContiguous(t, recs)
	for _, r := range recs {
		assert.False(t, r.Success)
		assert.Contains(t, r.Error, ErrEmptyResourcePool.Error())
	}
}

func TestEditFileAppendsPayload(t *testing.T) {
	cfg := testConfig(t)
	seedPool(t, cfg, map[string]string{"a.txt": "12345"}, nil)
	w := newTestWorker(t, cfg)

	cp := w.CopyFile()
	require.True(t, cp.Success, cp.Error)
	edit := w.EditFile()
	require.True(t, edit.Success, edit.Error)
	assert.Equal(t, cp.DestinationPath, edit.TargetPath)
	require.NotNil(t, edit.SizeBytes)
	assert.Equal(t, int64(5), *edit.SizeBytes)

	data, err := os.ReadFile(edit.TargetPath)
	require.NoError(t, err)
	assert.Len(t, data, 5+editPayloadLen)
	assert.Regexp(t, `^12345[a-zA-Z0-9]{100}$`, string(data))
}

func TestMoveDirStaysInManagedPool(t *testing.T) {
	cfg := testConfig(t)
	seedPool(t, cfg, nil, []string{"d1"})
	w := newTestWorker(t, cfg)

	require.True(t, w.CopyDir().Success)
	mv := w.MoveDir()
	require.True(t, mv.Success, mv.Error)

	managed := filepath.Join(cfg.MonitoredDir, "dirs", cfg.UniqueID())
	assert.Equal(t, managed, filepath.Dir(mv.DestinationPath))
	assert.NoDirExists(t, mv.TargetPath)
	assert.FileExists(t, filepath.Join(mv.DestinationPath, "nested", "f.bin"))
	assert.DirExists(t, filepath.Join(cfg.UnmonitoredDir, "dirs", cfg.UniqueID(), "d1"))
}

func TestRandomModeRunsConfiguredIterations(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = ModeRandom
	cfg.RandomResources = true
	cfg.Iterations = 25
	seedPool(t, cfg, map[string]string{"a.txt": "a", "b.txt": "b"}, []string{"d1"})
	w := newTestWorker(t, cfg)

	recs := w.Run(context.Background())
	require.Len(t, recs, 25)
	assertContiguous(t, recs)
}

func TestRunStopsBetweenOperationsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Iterations = 100
	w := newTestWorker(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, w.Run(ctx))
}

func TestUnknownStrategyTag(t *testing.T) {
	cfg := testConfig(t)
	cfg.Strategies = map[OperationType]string{ReadFile: "powershell"}
	_, err := NewWorker(cfg, Options{})
	require.Error(t, err)
}

func TestSetupFailsWhenPathIsAFile(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.MonitoredDir, "files"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.MonitoredDir, "files", cfg.UniqueID()), nil, 0o644))

	w, err := NewWorker(cfg, Options{Fs: afero.NewOsFs()})
	require.NoError(t, err)
	assert.Error(t, w.Setup())
}

func TestShellStrategyMatchesRecordShape(t *testing.T) {
	for _, bin := range []string{"sh", "cp", "mv", "cat", "rm"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}

	cfg := testConfig(t)
	cfg.Strategy = StrategyShell
	cfg.Iterations = 2
	seedPool(t, cfg, map[string]string{"a.txt": "aaaa", "b.txt": "bb"}, []string{"d1"})
	w := newTestWorker(t, cfg)

	recs := w.Run(context.Background())
	require.Len(t, recs, 2*len(SequentialOrder))
	assertContiguous(t, recs)
	for _, r := range recs {
		assert.Equal(t, StrategyShell, r.Strategy)
		assert.True(t, r.Success, "%s: %s", r.OperationType, r.Error)
	}
}

func TestShellStrategyReportsFailure(t *testing.T) {
	if _, err := exec.LookPath("rm"); err != nil {
		t.Skip("rm not available")
	}
	s := &ShellStrategy{}
	err := s.RemoveFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rm")

	_, err = s.ReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestPerOperationStrategyOverride(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	cfg := testConfig(t)
	cfg.Strategies = map[OperationType]string{ReadFile: StrategyShell}
	seedPool(t, cfg, map[string]string{"a.txt": "abc"}, nil)
	w := newTestWorker(t, cfg)

	assert.Equal(t, StrategyNative, w.CopyFile().Strategy)
	rd := w.ReadFile()
	assert.True(t, rd.Success, rd.Error)
	assert.Equal(t, StrategyShell, rd.Strategy)
}

func TestNativeStrategyErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := &NativeStrategy{Fs: fs}
	require.NoError(t, fs.MkdirAll("/d/sub", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/d/sub/f", []byte("x"), 0o644))

	assert.Error(t, s.AppendFile("/missing", []byte("x")))
	assert.Error(t, s.RemoveDir("/missing"))
	assert.Error(t, s.CopyFile("/d", "/e"))
	assert.Error(t, s.CopyDir("/d/sub/f", "/e"))

	require.NoError(t, s.CopyDir("/d", "/copy"))
	assert.Error(t, s.CopyDir("/d", "/copy"))
	n, err := s.ReadFile("/copy/sub/f")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
