package models

import (
	"encoding/json"
	"strings"
	"time"
)

// MediaKind is the coarse classification used for routing and compression.
type MediaKind string

// Media kinds. Blobs is the catch-all for unmatched extensions.
const (
	KindImages MediaKind = "images"
	KindVideos MediaKind = "videos"
	KindAudio  MediaKind = "audio"
	KindDocs   MediaKind = "docs"
	KindBlobs  MediaKind = "blobs"
)

// Visibility tiers used to select a destination channel.
const (
	VisibilityPublic     = "public"
	VisibilityInternal   = "internal"
	VisibilityRestricted = "restricted"
)

// CompressionStats records the byte sizes before and after fit-to-limit.
type CompressionStats struct {
	OriginalSize int64 `json:"original_size"`
	FinalSize    int64 `json:"final_size"`
}

// ArchiveRecord is the durable manifest entry for one distinct content hash.
// It maps the hash to the provider-side storage location plus metadata.
// Records are created exactly once per hash and never mutated except through
// the explicit tag update operation.
type ArchiveRecord struct {
	ContentHash   string           `db:"content_hash"   json:"content_hash"`
	MessageID     string           `db:"message_id"     json:"message_id"`
	ChannelID     string           `db:"channel_id"     json:"channel_id"`
	AttachmentIDs []string         `db:"-"              json:"attachment_ids"`
	Filename      string           `db:"filename"       json:"filename"`
	Size          int64            `db:"size"           json:"size"`
	SHA256        string           `db:"sha256"         json:"sha256"`
	Tenant        *string          `db:"tenant"         json:"tenant,omitempty"`
	Workspace     *string          `db:"workspace"      json:"workspace,omitempty"`
	MediaType     MediaKind        `db:"media_type"     json:"media_type"`
	Visibility    string           `db:"visibility"     json:"visibility"`
	Tags          []string         `db:"-"              json:"tags"`
	Compression   CompressionStats `db:"-"              json:"compression"`
	CreatedAt     time.Time        `db:"created_at"     json:"created_at"`

	// Raw DB encodings; decoded symmetrically on read.
	AttachmentIDsRaw string `db:"attachment_ids" json:"-"`
	TagsRaw          string `db:"tags"           json:"-"`
	CompressionRaw   []byte `db:"compression"    json:"-"`

	// CacheHit reports whether the record was served from the manifest
	// without an upload. It is never persisted.
	CacheHit bool `db:"-" json:"cache_hit"`
}

// EncodeFields populates the raw DB columns from the decoded slices.
func (r *ArchiveRecord) EncodeFields() error {
	r.AttachmentIDsRaw = strings.Join(r.AttachmentIDs, ",")
	r.TagsRaw = strings.Join(r.Tags, ",")
	data, err := json.Marshal(r.Compression)
	if err != nil {
		return err
	}
	r.CompressionRaw = data
	return nil
}

// DecodeFields populates the decoded slices from the raw DB columns.
func (r *ArchiveRecord) DecodeFields() error {
	r.AttachmentIDs = splitNonEmpty(r.AttachmentIDsRaw)
	r.Tags = splitNonEmpty(r.TagsRaw)
	if len(r.CompressionRaw) > 0 {
		if err := json.Unmarshal(r.CompressionRaw, &r.Compression); err != nil {
			return err
		}
	}
	return nil
}

// splitNonEmpty splits a comma-joined list, dropping empty elements so an
// empty column decodes to a nil slice rather than [""].
func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// RecordSummary is the partial record shape returned by tag search.
type RecordSummary struct {
	ContentHash string    `db:"content_hash" json:"content_hash"`
	MessageID   string    `db:"message_id"   json:"message_id"`
	ChannelID   string    `db:"channel_id"   json:"channel_id"`
	Filename    string    `db:"filename"     json:"filename"`
	Size        int64     `db:"size"         json:"size"`
	MediaType   MediaKind `db:"media_type"   json:"media_type"`
	Tags        []string  `db:"-"            json:"tags"`
	TagsRaw     string    `db:"tags"         json:"-"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

// DecodeFields decodes the comma-joined tag column.
func (s *RecordSummary) DecodeFields() {
	s.Tags = splitNonEmpty(s.TagsRaw)
}
