// Package compress shrinks files to fit under a provider byte ceiling.
// Only images support lossy re-encoding; every other kind must already fit.
package compress

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	// Registered decoders for the image re-encode path.
	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"

	"github.com/jonesrussell/media-archiver/internal/logger"
	"github.com/jonesrussell/media-archiver/internal/models"
)

const (
	// StartQuality is the initial JPEG quality for the re-encode loop.
	StartQuality = 85
	// QualityFloor is the lowest quality the loop will try. Once reached,
	// the result is accepted even if it still exceeds the limit; a degraded
	// archive beats a failed one.
	QualityFloor = 35
	// QualityStep is subtracted from the quality on each failed attempt.
	QualityStep = 5
)

// Result describes the outcome of FitToLimit.
type Result struct {
	// Path is the file to upload: the original on pass-through, or a
	// re-encoded copy in the staging directory.
	Path string
	// Stats records original and final byte sizes.
	Stats models.CompressionStats
	// Quality is the final JPEG quality used, or zero on pass-through.
	Quality int
}

// Compressor re-encodes images into the staging directory.
type Compressor struct {
	stagingDir string
	logger     logger.Logger
}

// NewCompressor creates a Compressor that writes intermediates to stagingDir.
func NewCompressor(stagingDir string, log logger.Logger) *Compressor {
	return &Compressor{
		stagingDir: stagingDir,
		logger:     log,
	}
}

// FitToLimit returns an on-disk artifact for path that fits under limit
// bytes. Files already within the limit pass through unchanged. Oversized
// images are re-encoded as JPEG at decreasing quality; re-encoding also
// drops any embedded metadata, so no EXIF leaks into the archive. Oversized
// non-images fail with models.ErrUncompressible.
func (c *Compressor) FitToLimit(path string, limit int64, kind models.MediaKind) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", path, err)
	}
	originalSize := info.Size()

	if originalSize <= limit {
		return Result{
			Path:  path,
			Stats: models.CompressionStats{OriginalSize: originalSize, FinalSize: originalSize},
		}, nil
	}

	if kind != models.KindImages {
		return Result{}, fmt.Errorf("%w: kind=%s size=%d limit=%d",
			models.ErrUncompressible, kind, originalSize, limit)
	}

	return c.reencode(path, limit, originalSize)
}

// reencode runs the quality-reduction loop. It terminates either when the
// output fits or when the quality floor is reached, whichever comes first.
func (c *Compressor) reencode(path string, limit, originalSize int64) (Result, error) {
	img, err := decodeImage(path)
	if err != nil {
		return Result{}, err
	}

	outPath := filepath.Join(c.stagingDir, uuid.NewString()+".jpg")

	for quality := StartQuality; ; quality -= QualityStep {
		size, err := encodeJPEG(outPath, img, quality)
		if err != nil {
			_ = os.Remove(outPath)
			return Result{}, err
		}

		if size <= limit || quality <= QualityFloor {
			c.logger.Debug("Image re-encoded",
				logger.String("path", path),
				logger.Int64("original_size", originalSize),
				logger.Int64("final_size", size),
				logger.Int("quality", quality),
				logger.Bool("within_limit", size <= limit),
			)
			return Result{
				Path:    outPath,
				Stats:   models.CompressionStats{OriginalSize: originalSize, FinalSize: size},
				Quality: quality,
			}, nil
		}
	}
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

func encodeJPEG(path string, img image.Image, quality int) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("encode jpeg: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close output: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat output: %w", err)
	}
	return info.Size(), nil
}
