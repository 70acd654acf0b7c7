package config

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultDriver, cfg.Driver)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultMinChunk, cfg.MinChunk)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, DefaultRowLimit, cfg.RowLimit)
	assert.Zero(t, cfg.ViewTTL)
}

func TestLoad_File(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := []byte("driver: sqlite\ndsn: /data/parcels.db\nport: \"9090\"\nmin_chunk: 250\nworkers: 4\nlog_level: debug\nview_ttl: 90s\n")
	require.NoError(t, afero.WriteFile(fs, "/etc/geoquery.yaml", content, 0o644))

	cfg, err := Load(fs, "/etc/geoquery.yaml")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "/data/parcels.db", cfg.DSN)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(250), cfg.MinChunk)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.ViewTTL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "geoquery.yaml", []byte("port: \"9090\"\n"), 0o644))
	t.Setenv("GEOQUERY_PORT", "7070")

	cfg, err := Load(fs, "geoquery.yaml")
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
}

func TestLoad_DotEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, ".env", []byte("GEOQUERY_DRIVER=postgres\n"), 0o644))
	// t.Setenv restores the variable the .env file exports.
	t.Setenv("GEOQUERY_DRIVER", "")
	require.NoError(t, os.Unsetenv("GEOQUERY_DRIVER"))

	cfg, err := Load(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Driver)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "MinChunk", content: "min_chunk: 0\n"},
		{name: "Workers", content: "workers: -1\n"},
		{name: "RowLimit", content: "row_limit: 0\n"},
		{name: "LogLevel", content: "log_level: loud\n"},
		{name: "ViewTTL", content: "view_ttl: -1m\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "c.yaml", []byte(tt.content), 0o644))

			_, err := Load(fs, "c.yaml")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "nope.yaml")
	assert.Error(t, err)
}
