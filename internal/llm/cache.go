package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/raine/survival-bro/internal/storage"
	"github.com/rs/zerolog/log"
)

// CachedAnalyzer wraps an Analyzer with SQLite caching keyed by image content.
type CachedAnalyzer struct {
	inner Analyzer
	store storage.AnalysisCache
}

// NewCachedAnalyzer creates a cached analyzer.
func NewCachedAnalyzer(inner Analyzer, store storage.AnalysisCache) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, store: store}
}

// hashImage creates a SHA256 hash of the decoded image bytes, so the same
// photo hits the cache whatever data URL header it arrived with.
func hashImage(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Analyze implements the Analyzer interface with caching.
func (c *CachedAnalyzer) Analyze(ctx context.Context, encodedImage string) (*AnalysisResult, error) {
	if c.store == nil {
		return c.inner.Analyze(ctx, encodedImage)
	}

	data, _, err := DecodeImage(encodedImage)
	if err != nil {
		// Let the inner analyzer report the problem in its own terms.
		return c.inner.Analyze(ctx, encodedImage)
	}
	hash := hashImage(data)

	cached, err := c.store.GetAnalysis(hash)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check analysis cache")
	} else if cached != nil {
		log.Debug().Str("hash", hash[:16]).Msg("analysis cache hit")
		return &AnalysisResult{
			RiskLevel:    RiskLevel(cached.RiskLevel),
			RiskSpots:    cached.RiskSpots,
			Scripts:      cached.Scripts,
			Excuses:      cached.Excuses,
			Summary:      cached.Summary,
			ActionNeeded: Action(cached.ActionNeeded),
		}, nil
	}

	result, err := c.inner.Analyze(ctx, encodedImage)
	if err != nil {
		return nil, err
	}

	entry := &storage.AnalysisCacheEntry{
		RiskLevel:    string(result.RiskLevel),
		RiskSpots:    result.RiskSpots,
		Scripts:      result.Scripts,
		Excuses:      result.Excuses,
		Summary:      result.Summary,
		ActionNeeded: string(result.ActionNeeded),
	}
	if err := c.store.SetAnalysis(hash, entry); err != nil {
		log.Warn().Err(err).Msg("failed to cache analysis result")
	}

	return result, nil
}

// Unwrap returns the analyzer behind the cache.
func (c *CachedAnalyzer) Unwrap() Analyzer {
	return c.inner
}

// ModelName reports the model behind an analyzer, unwrapping caches.
// Returns "" when the analyzer does not expose one.
func ModelName(a Analyzer) string {
	curr := a
	for {
		switch t := curr.(type) {
		case interface{ Model() string }:
			return t.Model()
		case *CachedAnalyzer:
			curr = t.inner
		default:
			return ""
		}
	}
}
