package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fsbench.log")
	require.NoError(t, Init("debug", path, false))

	Get().Debug().Str("unique_id", "serverh_instance1").Msg("hello")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"unique_id":"serverh_instance1"`)
	assert.Contains(t, string(raw), `"message":"hello"`)
}

func TestInitFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init("loud", "", false))
	assert.Equal(t, "info", Get().GetLevel().String())
}

func TestInitBadFile(t *testing.T) {
	assert.Error(t, Init("info", filepath.Join(t.TempDir(), "missing", "x.log"), false))
}
