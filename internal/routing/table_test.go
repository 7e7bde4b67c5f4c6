package routing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/media-archiver/internal/models"
	"github.com/jonesrussell/media-archiver/internal/routing"
)

const testTable = `
routes:
  images:
    public:
      channel_id: "C-IMG-PUB"
    restricted:
      channel_id: "C-IMG-RES"
      thread_id: "T-42"
  videos:
    public:
      channel_id: "C-VID-PUB"
  blobs:
    public:
      channel_id: "C-BLOB"
per_tenant_overrides:
  acme:
    images:
      public:
        channel_id: "C-ACME-IMG"
`

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func loadTestRouter(t *testing.T) *routing.Router {
	t.Helper()
	table, err := routing.LoadTable(writeTable(t, testTable))
	require.NoError(t, err)
	return routing.NewRouter(table)
}

func TestKindFromPath(t *testing.T) {
	testCases := []struct {
		path     string
		expected models.MediaKind
	}{
		{"photo.PNG", models.KindImages},
		{"clip.mp4", models.KindVideos},
		{"song.flac", models.KindAudio},
		{"report.pdf", models.KindDocs},
		{"dump.bin", models.KindBlobs},
		{"noextension", models.KindBlobs},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, routing.KindFromPath(tc.path))
		})
	}
}

func TestPickChannel_Precedence(t *testing.T) {
	router := loadTestRouter(t)
	acme := "acme"
	other := "globex"

	testCases := []struct {
		name       string
		path       string
		tenant     *string
		visibility string
		expected   models.RouteDecision
	}{
		{
			name:       "default route without tenant",
			path:       "photo.png",
			visibility: "public",
			expected:   models.RouteDecision{ChannelID: "C-IMG-PUB"},
		},
		{
			name:       "tenant override wins",
			path:       "photo.png",
			tenant:     &acme,
			visibility: "public",
			expected:   models.RouteDecision{ChannelID: "C-ACME-IMG"},
		},
		{
			name:       "tenant without override falls back to default",
			path:       "photo.png",
			tenant:     &other,
			visibility: "public",
			expected:   models.RouteDecision{ChannelID: "C-IMG-PUB"},
		},
		{
			name:       "tenant override missing visibility falls back",
			path:       "photo.png",
			tenant:     &acme,
			visibility: "restricted",
			expected:   models.RouteDecision{ChannelID: "C-IMG-RES", ThreadID: "T-42"},
		},
		{
			name:       "unknown extension routes to blobs",
			path:       "dump.bin",
			visibility: "public",
			expected:   models.RouteDecision{ChannelID: "C-BLOB"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := router.PickChannel(tc.path, tc.tenant, tc.visibility)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestPickChannel_MissingEntryIsConfigError(t *testing.T) {
	router := loadTestRouter(t)

	_, err := router.PickChannel("clip.mp4", nil, "restricted")
	require.Error(t, err)

	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoadTable_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "empty table", content: "routes: {}"},
		{name: "missing channel id", content: "routes:\n  images:\n    public:\n      thread_id: \"T-1\""},
		{name: "malformed yaml", content: "routes: ["},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := routing.LoadTable(writeTable(t, tc.content))
			var cfgErr *models.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadTable_MissingFile(t *testing.T) {
	_, err := routing.LoadTable(filepath.Join(t.TempDir(), "absent.yml"))
	var cfgErr *models.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
