package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/media-archiver/internal/config"
)

const validConfig = `
debug: true

server:
  address: ":9000"

archiver:
  enabled: true
  route_table_path: "routes.yml"
  staging_dir: "/tmp/staging"

provider:
  base_url: "https://provider.example.com/api"
  bot_token: "token"

manifest:
  driver: "sqlite3"
  dsn: "/tmp/manifest.db"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.True(t, cfg.Archiver.Enabled)
	assert.Equal(t, "routes.yml", cfg.Archiver.RouteTablePath)

	// Defaults fill the gaps.
	assert.EqualValues(t, config.DefaultPolicyMaxBytes, cfg.Archiver.PolicyMaxBytes)
	assert.Equal(t, config.DefaultURLCacheTTL, cfg.Redis.URLCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ARCHIVER_ENABLED", "false")
	t.Setenv("PROVIDER_BOT_TOKEN", "env-token")
	t.Setenv("MANIFEST_DSN", "/env/manifest.db")
	t.Setenv("API_TOKEN", "env-api-token")
	t.Setenv("ARCHIVER_PORT", "9100")

	cfg, err := config.Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.False(t, cfg.Archiver.Enabled)
	assert.Equal(t, "env-token", cfg.Provider.BotToken)
	assert.Equal(t, "/env/manifest.db", cfg.Manifest.DSN)
	assert.Equal(t, "env-api-token", cfg.Auth.APIToken)
	assert.Equal(t, ":9100", cfg.Server.Address)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing route table",
			content: `
manifest:
  dsn: "/tmp/m.db"
`,
		},
		{
			name: "bad manifest driver",
			content: `
archiver:
  route_table_path: "routes.yml"
manifest:
  driver: "mysql"
  dsn: "dsn"
`,
		},
		{
			name: "fallback without webhook",
			content: `
archiver:
  route_table_path: "routes.yml"
  allow_fallback: true
manifest:
  dsn: "/tmp/m.db"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}
