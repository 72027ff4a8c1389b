package bundling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViperConfigDefaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), NewViperConfig().Config())
}

func TestViperConfigFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundling.yaml")
	content := `
bundling:
  initial_bandwidth: 0.1
  max_iterations: 20
  normalize: false
performance:
  num_workers: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	vc := NewViperConfig()
	require.NoError(t, vc.LoadFromFile(path))
	vc.Set("bundling.tension", 0.25)

	cfg := vc.Config()
	assert.Equal(t, 0.1, cfg.InitialBandwidth)
	assert.Equal(t, 20, cfg.MaxIterations)
	assert.False(t, cfg.Normalize)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 0.25, cfg.Tension)
	assert.Equal(t, DefaultConfig().Decay, cfg.Decay)
	assert.NoError(t, cfg.Validate())
}

func TestViperConfigEnv(t *testing.T) {
	t.Setenv("TESTBUNDLE_BUNDLING_SAMPLES", "7")
	vc := NewViperConfig()
	vc.BindEnv("TESTBUNDLE")
	assert.Equal(t, 7, vc.Config().Samples)
}

func TestViperConfigMissingFile(t *testing.T) {
	assert.Error(t, NewViperConfig().LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
