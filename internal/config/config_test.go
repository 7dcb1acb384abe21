package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsbench/internal/bench"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeScenario(t, `
run_id: run_42
output_dir: /tmp/fsbench
think_time:
  avg: 500ms
  min_perc: 0.2
  max_perc: 0.5
defaults:
  unmonitored_dir: /mnt/in
  monitored_dir: /mnt/out
  iterations: 2
  strategies:
    read_file: shell
workers:
  - server_id: 10.0.0.5
    instance_id: 1
  - server_id: 10.0.0.5
    instance_id: 2
    mode: random
    strategy: shell
    random_resources: true
`)
	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "run_42", s.RunID)
	assert.Equal(t, 500*time.Millisecond, s.ThinkTime.Avg)
	assert.InDelta(t, 0.5, s.ThinkTime.MaxPerc, 1e-9)
	require.Len(t, s.Workers, 2)

	w0, w1 := s.Workers[0], s.Workers[1]
	assert.Equal(t, "run_42", w0.RunID)
	assert.Equal(t, "/mnt/in", w0.UnmonitoredDir)
	assert.Equal(t, bench.ModeSequential, w0.Mode)
	assert.Equal(t, 2, w0.Iterations)
	assert.Equal(t, bench.StrategyNative, w0.Strategy)
	assert.Equal(t, bench.StrategyShell, w0.Strategies[bench.ReadFile])
	assert.False(t, w0.RandomResources)

	assert.Equal(t, bench.ModeRandom, w1.Mode)
	assert.Equal(t, bench.StrategyShell, w1.Strategy)
	assert.True(t, w1.RandomResources)

	rc := s.RunnerConfig()
	assert.Equal(t, "run_42", rc.RunID())
	assert.Equal(t, "/tmp/fsbench", rc.OutputDir)
	assert.Len(t, rc.Workers, 2)
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(writeScenario(t, "instances: 3\n"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(s.RunID, "run_"))
	assert.Equal(t, "testdata", s.OutputDir)
	require.Len(t, s.Workers, 3)
	for i, w := range s.Workers {
		assert.Equal(t, DefaultServerID, w.ServerID)
		assert.Equal(t, i+1, w.InstanceID)
		assert.Equal(t, 3, w.Iterations)
		assert.Equal(t, "input", w.UnmonitoredDir)
		assert.Equal(t, "output", w.MonitoredDir)
	}
	assert.Equal(t, time.Second, s.Monitor.Interval)
	assert.Equal(t, int64(1024), s.Pool.MinSize)
	assert.Equal(t, int64(64*1024), s.Pool.MaxSize)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("FSBENCH_TEST_ROOT", "/srv/share")
	s, err := Load(writeScenario(t, `
instances: 1
defaults:
  monitored_dir: ${FSBENCH_TEST_ROOT}/monitored
`))
	require.NoError(t, err)
	assert.Equal(t, "/srv/share/monitored", s.Workers[0].MonitoredDir)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]string{
		"no workers":         "instances: 0\n",
		"bad mode":           "instances: 1\ndefaults: {mode: chaotic}\n",
		"bad strategy":       "instances: 1\ndefaults: {strategy: fuse}\n",
		"bad override op":    "instances: 1\ndefaults: {strategies: {rename_file: shell}}\n",
		"duplicate worker":   "workers: [{instance_id: 1}, {instance_id: 1}]\n",
		"negative iteration": "instances: 1\ndefaults: {iterations: -1}\n",
		"bad size":           "instances: 1\npool: {min_size: lots}\n",
		"inverted sizes":     "instances: 1\npool: {min_size: 1MiB, max_size: 1KiB}\n",
		"bad yaml":           "workers: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeScenario(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "config.Load")
}

func TestDefault(t *testing.T) {
	s, err := Default()
	require.NoError(t, err)
	require.Len(t, s.Workers, 1)
	assert.Equal(t, bench.UniqueID(DefaultServerID, 1), s.Workers[0].UniqueID())
}

func TestOverridesWinOverScenario(t *testing.T) {
	path := writeScenario(t, `
run_id: from_file
workers:
  - instance_id: 1
    iterations: 9
    monitored_dir: /file/out
`)
	s, err := LoadWith(path, Overrides{RunID: "from_flag", Iterations: 2, MonitoredDir: "/flag/out", Random: true})
	require.NoError(t, err)
	assert.Equal(t, "from_flag", s.RunID)
	require.Len(t, s.Workers, 1)
	assert.Equal(t, "from_flag", s.Workers[0].RunID)
	assert.Equal(t, 2, s.Workers[0].Iterations)
	assert.Equal(t, "/flag/out", s.Workers[0].MonitoredDir)
	assert.True(t, s.Workers[0].RandomResources)
}

func TestOverrideInstancesReplacesWorkers(t *testing.T) {
	path := writeScenario(t, "workers: [{instance_id: 7}]\n")
	s, err := LoadWith(path, Overrides{Instances: 2, ServerID: "10.1.1.1"})
	require.NoError(t, err)
	require.Len(t, s.Workers, 2)
	assert.Equal(t, "server10.1.1.1_instance2", s.Workers[1].UniqueID())
}

func TestLoadWithoutFile(t *testing.T) {
	s, err := LoadWith("", Overrides{Instances: 4, Mode: bench.ModeRandom})
	require.NoError(t, err)
	require.Len(t, s.Workers, 4)
	assert.Equal(t, bench.ModeRandom, s.Workers[3].Mode)
}
