// Package policy decides whether a candidate file may be archived.
// Rejection reasons accumulate so a caller sees every failed check at once.
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonesrussell/media-archiver/internal/logger"
	"github.com/jonesrussell/media-archiver/internal/models"
	"github.com/jonesrussell/media-archiver/internal/routing"
)

// deniedExtensions is the hard denylist of executable and script types.
// These are rejected regardless of any kind allowlist.
var deniedExtensions = map[string]bool{
	".exe": true, ".dll": true, ".msi": true, ".com": true, ".scr": true,
	".bat": true, ".cmd": true, ".ps1": true, ".sh": true, ".vbs": true,
	".js": true, ".jar": true, ".app": true,
}

// ContentChecker is the external content-policy delegate. A blocked result
// carries its own reasons, which the engine appends verbatim.
type ContentChecker interface {
	Check(ctx context.Context, path string, meta models.FileMeta) (blocked bool, reasons []string, err error)
}

// Engine evaluates archive candidates against local rules and the optional
// content-policy delegate.
type Engine struct {
	maxBytes int64
	checker  ContentChecker // nil disables the delegated check
	logger   logger.Logger
}

// NewEngine creates an Engine. maxBytes is the policy default applied when
// the caller's metadata does not set its own limit; it is independent of the
// provider's per-attachment ceiling.
func NewEngine(maxBytes int64, checker ContentChecker, log logger.Logger) *Engine {
	return &Engine{
		maxBytes: maxBytes,
		checker:  checker,
		logger:   log,
	}
}

// Check evaluates a file. The returned decision is allowed iff no check
// produced a reason. The delegate is consulted even when local checks have
// already failed, so its reasons are included in the same decision.
func (e *Engine) Check(ctx context.Context, path string, meta models.FileMeta) (models.PolicyDecision, error) {
	var reasons []string

	if meta.DoNotArchive {
		reasons = append(reasons, "file is marked do-not-archive")
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case deniedExtensions[ext]:
		reasons = append(reasons, fmt.Sprintf("extension %s is denied", ext))
	case !routing.KnownExtension(path):
		reasons = append(reasons, fmt.Sprintf("extension %s is not an allowed type", ext))
	}

	if e.checker != nil {
		blocked, delegateReasons, err := e.checker.Check(ctx, path, meta)
		if err != nil {
			return models.PolicyDecision{}, fmt.Errorf("content policy check: %w", err)
		}
		if blocked {
			reasons = append(reasons, delegateReasons...)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return models.PolicyDecision{}, fmt.Errorf("stat %s: %w", path, err)
	}
	limit := meta.SizeLimit
	if limit <= 0 {
		limit = e.maxBytes
	}
	if info.Size() > limit {
		reasons = append(reasons, fmt.Sprintf("size %d exceeds policy limit %d", info.Size(), limit))
	}

	decision := models.PolicyDecision{
		Allowed: len(reasons) == 0,
		Reasons: reasons,
	}

	if !decision.Allowed {
		e.logger.Debug("Policy denied file",
			logger.String("path", path),
			logger.Strings("reasons", reasons),
		)
	}

	return decision, nil
}
