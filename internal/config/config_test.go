package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/amrviz/internal/config"
	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	v, err := config.NewViper("")
	require.NoError(t, err)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, config.StoreMemory, cfg.SessionStore)
	assert.Equal(t, 10*time.Minute, cfg.LockTTL)
	assert.True(t, cfg.CleanOnStart)
	assert.NotContains(t, cfg.SessionDir, "~")
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "amrviz.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\nsession_store: file\nlock_ttl: 30s\n"), 0o644))
	t.Setenv("AMRVIZ_PORT", "7100")

	v, err := config.NewViper(path)
	require.NoError(t, err)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	assert.Equal(t, 7100, cfg.Port, "environment overrides the file")
	assert.Equal(t, config.StoreFile, cfg.SessionStore)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("AMRVIZ_SESSION_STORE", "etcd")
	v, err := config.NewViper("")
	require.NoError(t, err)
	_, err = config.Load(v)
	assert.ErrorContains(t, err, "session_store")

	_, err = config.NewViper(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadParams(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
problem: Spiral
initTriHeight: 0.45
max_iterations: 3
RefinementMethod: UDO
neighbors: 2
`), 0o644))
	p, err := config.LoadParams(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, domain.ProblemSpiral, p.Problem)
	assert.Equal(t, 0.45, p.InitTriHeight)
	assert.Equal(t, 3, p.MaxIterations)
	assert.Equal(t, domain.MethodUDO, p.Method)
	assert.Equal(t, 2, p.Neighbors)

	jsonPath := filepath.Join(dir, "params.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"problem":"Sphere","bracket":[0.45,0.65]}`), 0o644))
	p, err = config.LoadParams(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.45, 0.65}, p.Bracket)

	_, err = config.LoadParams(filepath.Join(dir, "none.yaml"))
	assert.Error(t, err)
}
