package archiver_test

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/media-archiver/internal/archiver"
	"github.com/jonesrussell/media-archiver/internal/cleanup"
	"github.com/jonesrussell/media-archiver/internal/compress"
	"github.com/jonesrussell/media-archiver/internal/logger"
	"github.com/jonesrussell/media-archiver/internal/manifest"
	"github.com/jonesrussell/media-archiver/internal/metrics"
	"github.com/jonesrussell/media-archiver/internal/models"
	"github.com/jonesrussell/media-archiver/internal/policy"
	"github.com/jonesrussell/media-archiver/internal/rehydrate"
	"github.com/jonesrussell/media-archiver/internal/routing"
	"github.com/jonesrussell/media-archiver/internal/sizelimit"
	"github.com/jonesrussell/media-archiver/internal/uploader"
)

const testRoutes = `
routes:
  images:
    internal:
      channel_id: "C-IMG"
  docs:
    internal:
      channel_id: "C-DOC"
  blobs:
    internal:
      channel_id: "C-BLOB"
`

// fakeProvider is an httptest-backed stand-in for the storage provider. It
// counts uploads and serves message objects for rehydration.
type fakeProvider struct {
	server  *httptest.Server
	uploads atomic.Int64
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	fp := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /channels/{channel}/messages", func(w http.ResponseWriter, r *http.Request) {
		fp.uploads.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"id":         "msg-100",
			"channel_id": r.PathValue("channel"),
			"attachments": []map[string]any{
				{"id": "att-100", "url": "https://cdn.example/att-100/file"},
			},
		})
	})
	mux.HandleFunc("GET /channels/{channel}/messages/{message}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":         r.PathValue("message"),
			"channel_id": r.PathValue("channel"),
			"attachments": []map[string]any{
				{"id": "att-100", "url": "https://cdn.example/att-100/fresh"},
			},
		})
	})
	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

type testEnv struct {
	service  *archiver.Service
	provider *fakeProvider
	store    *manifest.Store
	metrics  *metrics.Metrics
	staging  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	staging := t.TempDir()
	routesPath := filepath.Join(staging, "routes.yml")
	require.NoError(t, os.WriteFile(routesPath, []byte(testRoutes), 0o600))

	table, err := routing.LoadTable(routesPath)
	require.NoError(t, err)

	store, err := manifest.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := newFakeProvider(t)
	log := logger.NewNopLogger()
	m := metrics.New(prometheus.NewRegistry())

	service := archiver.NewService(true, false, archiver.Deps{
		Policy:    policy.NewEngine(50<<20, nil, log),
		Router:    routing.NewRouter(table),
		Limits:    sizelimit.NewDetector(),
		Compress:  compress.NewCompressor(staging, log),
		Manifest:  store,
		Uploader:  uploader.NewClient(provider.server.URL, "test-token", "", 5*time.Second, log),
		Rehydrate: rehydrate.NewFetcher(provider.server.URL, "test-token", 5*time.Second, log),
		URLCache:  nil,
		Cleanup:   cleanup.NewManager(staging, time.Hour, log),
		Metrics:   m,
		Logger:    log,
	})

	return &testEnv{service: service, provider: provider, store: store, metrics: m, staging: staging}
}

func writeNoisePNG(t *testing.T, dir, name string, side int) string {
	t.Helper()

	rng := rand.New(rand.NewSource(1))
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestArchiveFile_SmallImage(t *testing.T) {
	env := newTestEnv(t)
	path := writeNoisePNG(t, env.staging, "small.png", 16)

	record, err := env.service.ArchiveFile(context.Background(), path, models.FileMeta{Tags: []string{"avatar"}})
	require.NoError(t, err)

	assert.Equal(t, "msg-100", record.MessageID)
	assert.Equal(t, "C-IMG", record.ChannelID)
	assert.Equal(t, []string{"att-100"}, record.AttachmentIDs)
	assert.Equal(t, "small.png", record.Filename)
	assert.Equal(t, models.KindImages, record.MediaType)
	assert.Equal(t, record.ContentHash, record.SHA256)
	assert.False(t, record.CacheHit)
	assert.EqualValues(t, 1, env.provider.uploads.Load())

	// Original archived file must be gone from disk.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// Record is durable under its hash.
	stored, err := env.store.Lookup(context.Background(), record.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, record.MessageID, stored.MessageID)
}

func TestArchiveFile_OversizedImageRecompressed(t *testing.T) {
	env := newTestEnv(t)
	path := writeNoisePNG(t, env.staging, "big.png", 256)

	info, err := os.Stat(path)
	require.NoError(t, err)
	t.Setenv(sizelimit.EnvGlobalLimit, "20000")
	require.Greater(t, info.Size(), int64(20000))

	record, err := env.service.ArchiveFile(context.Background(), path, models.FileMeta{})
	require.NoError(t, err)

	assert.Equal(t, info.Size(), record.Compression.OriginalSize)
	assert.Less(t, record.Compression.FinalSize, record.Compression.OriginalSize)
	assert.Equal(t, record.Compression.FinalSize, record.Size)
	assert.EqualValues(t, 1, env.provider.uploads.Load())

	// Both the original and the re-encoded intermediate are cleaned up.
	entries, err := os.ReadDir(env.staging)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, ".jpg", filepath.Ext(entry.Name()))
	}
}

func TestArchiveFile_DedupSecondUpload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := writeNoisePNG(t, env.staging, "one.png", 16)
	original, err := env.service.ArchiveFile(ctx, first, models.FileMeta{Filename: "photo.png"})
	require.NoError(t, err)

	// Identical bytes under a different temp name.
	second := writeNoisePNG(t, env.staging, "two.png", 16)
	dup, err := env.service.ArchiveFile(ctx, second, models.FileMeta{Filename: "photo.png"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, env.provider.uploads.Load())
	assert.True(t, dup.CacheHit)
	assert.Equal(t, original.ContentHash, dup.ContentHash)
	assert.Equal(t, original.MessageID, dup.MessageID)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.DedupHits))

	_, statErr := os.Stat(second)
	assert.True(t, os.IsNotExist(statErr))
}

func TestArchiveFile_PolicyDenied(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.staging, "tool.exe")
	require.NoError(t, os.WriteFile(path, []byte("MZ"), 0o644))

	_, err := env.service.ArchiveFile(context.Background(), path, models.FileMeta{})
	require.Error(t, err)

	var denied *models.PolicyDeniedError
	require.True(t, errors.As(err, &denied))
	assert.NotEmpty(t, denied.Reasons)
	assert.EqualValues(t, 0, env.provider.uploads.Load())

	// Denied files are left in place.
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestArchiveFile_Disabled(t *testing.T) {
	env := newTestEnv(t)
	disabled := archiver.NewService(false, false, archiver.Deps{})

	path := writeNoisePNG(t, env.staging, "small.png", 16)
	_, err := disabled.ArchiveFile(context.Background(), path, models.FileMeta{})
	assert.ErrorIs(t, err, models.ErrArchiverDisabled)
}

func TestRehydrate_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	path := writeNoisePNG(t, env.staging, "small.png", 16)
	record, err := env.service.ArchiveFile(ctx, path, models.FileMeta{Filename: "photo.png"})
	require.NoError(t, err)

	result, err := env.service.Rehydrate(ctx, record.ContentHash)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/att-100/fresh", result.URL)
	assert.Equal(t, "photo.png", result.Filename)
}

func TestRehydrate_UnknownHash(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Rehydrate(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
