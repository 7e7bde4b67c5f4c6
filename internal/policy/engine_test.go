package policy_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/media-archiver/internal/logger"
	"github.com/jonesrussell/media-archiver/internal/models"
	"github.com/jonesrussell/media-archiver/internal/policy"
)

type stubChecker struct {
	blocked bool
	reasons []string
	err     error
}

func (s *stubChecker) Check(_ context.Context, _ string, _ models.FileMeta) (bool, []string, error) {
	return s.blocked, s.reasons, s.err
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return path
}

func TestCheck(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name        string
		file        string
		size        int
		meta        models.FileMeta
		checker     *stubChecker
		wantAllowed bool
		wantReasons int
	}{
		{
			name:        "allowed image",
			file:        "photo.png",
			size:        1024,
			wantAllowed: true,
		},
		{
			name:        "do-not-archive always rejected",
			file:        "photo.png",
			size:        1024,
			meta:        models.FileMeta{DoNotArchive: true},
			wantAllowed: false,
			wantReasons: 1,
		},
		{
			name:        "denied executable extension",
			file:        "tool.exe",
			size:        1024,
			wantAllowed: false,
			wantReasons: 1,
		},
		{
			name:        "unknown extension rejected",
			file:        "data.xyz",
			size:        1024,
			wantAllowed: false,
			wantReasons: 1,
		},
		{
			name:        "oversized file rejected",
			file:        "photo.png",
			size:        4096,
			meta:        models.FileMeta{SizeLimit: 2048},
			wantAllowed: false,
			wantReasons: 1,
		},
		{
			name:        "unknown type and oversized accumulates both reasons",
			file:        "data.xyz",
			size:        4096,
			meta:        models.FileMeta{SizeLimit: 2048},
			wantAllowed: false,
			wantReasons: 2,
		},
		{
			name:        "delegate block reasons appended verbatim",
			file:        "photo.png",
			size:        1024,
			checker:     &stubChecker{blocked: true, reasons: []string{"flagged by moderation", "nsfw"}},
			wantAllowed: false,
			wantReasons: 2,
		},
		{
			name:        "delegate allow leaves decision clean",
			file:        "photo.png",
			size:        1024,
			checker:     &stubChecker{blocked: false},
			wantAllowed: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, tc.file, tc.size)

			var checker policy.ContentChecker
			if tc.checker != nil {
				checker = tc.checker
			}
			engine := policy.NewEngine(8192, checker, logger.NewNopLogger())

			decision, err := engine.Check(ctx, path, tc.meta)
			require.NoError(t, err)
			assert.Equal(t, tc.wantAllowed, decision.Allowed)
			assert.Len(t, decision.Reasons, tc.wantReasons)
		})
	}
}

func TestCheck_DefaultPolicyMax(t *testing.T) {
	path := writeFile(t, "photo.png", 4096)
	engine := policy.NewEngine(1024, nil, logger.NewNopLogger())

	decision, err := engine.Check(context.Background(), path, models.FileMeta{})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Len(t, decision.Reasons, 1)
}

func TestCheck_DelegateErrorPropagates(t *testing.T) {
	path := writeFile(t, "photo.png", 16)
	engine := policy.NewEngine(8192, &stubChecker{err: errors.New("delegate down")}, logger.NewNopLogger())

	_, err := engine.Check(context.Background(), path, models.FileMeta{})
	assert.Error(t, err)
}

func TestCheck_MissingFile(t *testing.T) {
	engine := policy.NewEngine(8192, nil, logger.NewNopLogger())
	_, err := engine.Check(context.Background(), filepath.Join(t.TempDir(), "gone.png"), models.FileMeta{})
	assert.Error(t, err)
}
