package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 4, cfg.Jobs.MaxWorkers)
	assert.Equal(t, 10*time.Minute, cfg.Jobs.JobTimeout)
	assert.Equal(t, time.Hour, cfg.Jobs.ResultTTL)
	assert.Equal(t, int64(100*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	content := "server:\n  address: \":9090\"\njobs:\n  max_workers: 2\n  timeout: 90s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("APCLUSTER_JOBS_MAX_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 90*time.Second, cfg.Jobs.JobTimeout)
	assert.Equal(t, 8, cfg.Jobs.MaxWorkers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
