package logs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l := New(path, false, "debug")
	cl := Component(l, "engine")
	cl.Info().Int("page", 3).Msg("page done")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"engine"`)
	assert.Contains(t, string(data), `"page":3`)
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "app.log"), false, "loud")
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}
