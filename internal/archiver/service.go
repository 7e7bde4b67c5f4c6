// Package archiver ties the archival pipeline together: policy, routing,
// size limits, compression, hashing, the manifest, upload, and cleanup.
// Each ArchiveFile call runs the pipeline once, sequentially, with no
// internal retries.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jonesrussell/media-archiver/internal/cleanup"
	"github.com/jonesrussell/media-archiver/internal/compress"
	"github.com/jonesrussell/media-archiver/internal/hashing"
	"github.com/jonesrussell/media-archiver/internal/logger"
	"github.com/jonesrussell/media-archiver/internal/manifest"
	"github.com/jonesrussell/media-archiver/internal/metrics"
	"github.com/jonesrussell/media-archiver/internal/models"
	"github.com/jonesrussell/media-archiver/internal/policy"
	"github.com/jonesrussell/media-archiver/internal/rehydrate"
	"github.com/jonesrussell/media-archiver/internal/routing"
	"github.com/jonesrussell/media-archiver/internal/sizelimit"
	"github.com/jonesrussell/media-archiver/internal/uploader"
	"github.com/jonesrussell/media-archiver/internal/urlcache"
)

// Deps holds the collaborators a Service is built from. All fields except
// URLCache are required.
type Deps struct {
	Policy    *policy.Engine
	Router    *routing.Router
	Limits    *sizelimit.Detector
	Compress  *compress.Compressor
	Manifest  *manifest.Store
	Uploader  *uploader.Client
	Rehydrate *rehydrate.Fetcher
	URLCache  *urlcache.Cache
	Cleanup   *cleanup.Manager
	Metrics   *metrics.Metrics
	Logger    logger.Logger
}

// Service is the archive orchestrator.
type Service struct {
	enabled       bool
	allowFallback bool
	deps          Deps
}

// NewService creates the orchestrator. With enabled false every ArchiveFile
// call fails fast with models.ErrArchiverDisabled.
func NewService(enabled, allowFallback bool, deps Deps) *Service {
	return &Service{
		enabled:       enabled,
		allowFallback: allowFallback,
		deps:          deps,
	}
}

// RehydrateResult is a freshly resolved download URL plus the filename the
// content was archived under.
type RehydrateResult struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// ArchiveFile runs the full pipeline for the file at path. On success the
// local file (and any compressed intermediate) is deleted and the manifest
// record is returned; re-archiving identical bytes returns the existing
// record with CacheHit set and performs no upload.
func (s *Service) ArchiveFile(ctx context.Context, path string, meta models.FileMeta) (*models.ArchiveRecord, error) {
	if !s.enabled {
		return nil, models.ErrArchiverDisabled
	}

	name := meta.Filename
	if name == "" {
		name = filepath.Base(path)
	}
	visibility := meta.Visibility
	if visibility == "" {
		visibility = models.VisibilityInternal
	}

	decision, err := s.deps.Policy.Check(ctx, path, meta)
	if err != nil {
		s.deps.Metrics.RecordArchive(metrics.OutcomeError)
		return nil, fmt.Errorf("policy check: %w", err)
	}
	if !decision.Allowed {
		s.deps.Metrics.RecordArchive(metrics.OutcomeDenied)
		return nil, &models.PolicyDeniedError{Reasons: decision.Reasons}
	}

	dest, err := s.deps.Router.PickChannel(name, meta.Tenant, visibility)
	if err != nil {
		s.deps.Metrics.RecordArchive(metrics.OutcomeError)
		return nil, err
	}

	useBot := s.deps.Uploader.HasCredentials()
	limit := s.deps.Limits.Detect(dest.ChannelID, useBot)
	kind := routing.KindFromPath(name)

	fit, err := s.deps.Compress.FitToLimit(path, limit, kind)
	if err != nil {
		s.deps.Metrics.RecordArchive(metrics.OutcomeError)
		return nil, err
	}

	hash, err := hashing.ComputeHash(fit.Path)
	if err != nil {
		s.deps.Metrics.RecordArchive(metrics.OutcomeError)
		return nil, fmt.Errorf("hash artifact: %w", err)
	}

	// Dedup fast path: identical bytes were archived before.
	existing, err := s.deps.Manifest.Lookup(ctx, hash)
	if err == nil {
		s.removeArtifacts(path, fit.Path)
		existing.CacheHit = true
		s.deps.Metrics.DedupHits.Inc()
		s.deps.Metrics.RecordArchive(metrics.OutcomeDedup)
		s.deps.Logger.Info("Dedup hit, skipping upload",
			logger.String("content_hash", hash),
			logger.String("filename", name),
		)
		return existing, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.deps.Metrics.RecordArchive(metrics.OutcomeError)
		return nil, fmt.Errorf("manifest lookup: %w", err)
	}

	if !useBot && !s.allowFallback {
		s.deps.Metrics.RecordArchive(metrics.OutcomeError)
		return nil, models.ErrNoCredentials
	}
	useFallback := !useBot

	start := time.Now()
	result, err := s.deps.Uploader.Upload(ctx, fit.Path, dest, useFallback)
	s.deps.Metrics.UploadDuration.Observe(time.Since(start).Seconds())
	s.deps.Metrics.RecordUpload(uploadMode(useFallback), err)
	if err != nil {
		s.deps.Metrics.RecordArchive(metrics.OutcomeError)
		return nil, err
	}

	record := &models.ArchiveRecord{
		ContentHash:   hash,
		MessageID:     result.MessageID,
		ChannelID:     result.ChannelID,
		AttachmentIDs: attachmentIDs(result.Attachments),
		Filename:      name,
		Size:          fit.Stats.FinalSize,
		SHA256:        hash,
		Tenant:        meta.Tenant,
		Workspace:     meta.Workspace,
		MediaType:     kind,
		Visibility:    visibility,
		Tags:          meta.Tags,
		Compression:   fit.Stats,
		CreatedAt:     time.Now().UTC(),
	}

	stored, created, err := s.deps.Manifest.Record(ctx, record)
	if err != nil {
		s.deps.Metrics.RecordArchive(metrics.OutcomeError)
		return nil, fmt.Errorf("manifest record: %w", err)
	}
	if !created {
		// A concurrent caller archived the same bytes first; their record
		// is authoritative and our uploaded copy is a harmless duplicate.
		stored.CacheHit = true
	}

	s.removeArtifacts(path, fit.Path)
	s.deps.Metrics.RecordArchive(metrics.OutcomeArchived)
	s.deps.Logger.Info("File archived",
		logger.String("content_hash", hash),
		logger.String("filename", name),
		logger.String("channel_id", stored.ChannelID),
		logger.Int64("size", stored.Size),
		logger.Bool("dedup", !created),
	)
	return stored, nil
}

// Rehydrate resolves a content hash to a fresh download URL plus the stored
// filename. The URL cache is consulted first; a miss re-fetches the message
// from the provider.
func (s *Service) Rehydrate(ctx context.Context, contentHash string) (*RehydrateResult, error) {
	record, err := s.deps.Manifest.Lookup(ctx, contentHash)
	if err != nil {
		return nil, err
	}

	if url := s.deps.URLCache.Get(ctx, contentHash); url != "" {
		return &RehydrateResult{URL: url, Filename: record.Filename}, nil
	}

	attachmentID := ""
	if len(record.AttachmentIDs) > 0 {
		attachmentID = record.AttachmentIDs[0]
	}
	url, err := s.deps.Rehydrate.FreshURL(ctx, record.ChannelID, record.MessageID, attachmentID)
	if err != nil {
		return nil, err
	}

	s.deps.URLCache.Put(ctx, contentHash, url)
	return &RehydrateResult{URL: url, Filename: record.Filename}, nil
}

// Lookup returns the manifest record for a content hash.
func (s *Service) Lookup(ctx context.Context, contentHash string) (*models.ArchiveRecord, error) {
	return s.deps.Manifest.Lookup(ctx, contentHash)
}

// SearchTag returns partial records whose tags contain the substring.
func (s *Service) SearchTag(ctx context.Context, substring string, limit, offset int) ([]models.RecordSummary, error) {
	return s.deps.Manifest.SearchTag(ctx, substring, limit, offset)
}

// UpdateTags replaces the tags on an existing record.
func (s *Service) UpdateTags(ctx context.Context, contentHash string, tags []string) error {
	return s.deps.Manifest.UpdateTags(ctx, contentHash, tags)
}

// removeArtifacts deletes the source file and, when compression produced a
// separate intermediate, that intermediate as well. Best effort.
func (s *Service) removeArtifacts(original, artifact string) {
	if err := s.deps.Cleanup.Remove(original); err != nil {
		s.deps.Logger.Warn("Failed to remove original file",
			logger.String("path", original),
			logger.Error(err),
		)
	}
	if artifact != original {
		if err := s.deps.Cleanup.Remove(artifact); err != nil {
			s.deps.Logger.Warn("Failed to remove compressed intermediate",
				logger.String("path", artifact),
				logger.Error(err),
			)
		}
	}
}

func uploadMode(useFallback bool) string {
	if useFallback {
		return uploader.ModeWebhook
	}
	return uploader.ModeBot
}

func attachmentIDs(attachments []uploader.Attachment) []string {
	ids := make([]string, 0, len(attachments))
	for _, att := range attachments {
		ids = append(ids, att.ID)
	}
	return ids
}
