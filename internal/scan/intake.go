package scan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/raine/survival-bro/internal/llm"
	"github.com/rs/zerolog/log"
)

// Upload is one photo handed to Intake.
type Upload struct {
	Name     string
	MIMEType string // sniffed from the content when empty or not image/*
	Reader   io.Reader
}

// Intake turns uploads into pending items and runs one analysis per item.
//
// Each analysis runs in its own goroutine and reports back to the Store by
// item id, so completions may arrive in any order.
type Intake struct {
	ctx      context.Context
	store    *Store
	analyzer llm.Analyzer
	wg       sync.WaitGroup
}

// NewIntake creates an Intake. ctx bounds every analysis it starts; it is
// not tied to any single request.
func NewIntake(ctx context.Context, store *Store, analyzer llm.Analyzer) *Intake {
	return &Intake{
		ctx:      ctx,
		store:    store,
		analyzer: analyzer,
	}
}

// Store returns the store the intake writes to.
func (in *Intake) Store() *Store {
	return in.store
}

// Ingest reads the upload, adds it as a pending item and starts its analysis
// without waiting for it. Returns the new item id.
func (in *Intake) Ingest(upload Upload) (string, error) {
	data, err := io.ReadAll(upload.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to read upload %q: %w", upload.Name, err)
	}

	mimeType := upload.MIMEType
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	encoded := llm.EncodeDataURL(data, mimeType)

	item := in.store.Add(encoded)
	log.Info().
		Str("itemID", item.ID).
		Str("name", upload.Name).
		Int("bytes", len(data)).
		Msg("photo ingested")

	in.wg.Add(1)
	go in.analyze(item.ID, encoded)

	return item.ID, nil
}

func (in *Intake) analyze(id, encoded string) {
	defer in.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("itemID", id).Interface("panic", r).Msg("recovered from panic in analysis")
			in.store.OnAnalysisFailed(id, fmt.Errorf("analysis panicked: %v", r))
		}
	}()

	start := time.Now()
	result, err := in.analyzer.Analyze(in.ctx, encoded)
	if err != nil {
		in.store.OnAnalysisFailed(id, err)
		return
	}
	if result == nil {
		in.store.OnAnalysisSucceeded(id, nil)
		return
	}

	log.Info().
		Str("itemID", id).
		Str("riskLevel", string(result.RiskLevel)).
		Dur("took", time.Since(start)).
		Msg("photo analyzed")
	in.store.OnAnalysisSucceeded(id, result)
}

// Wait blocks until every analysis started so far has reported.
func (in *Intake) Wait() {
	in.wg.Wait()
}
