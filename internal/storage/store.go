package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database that disappears with the process.
const MemoryDSN = ":memory:"

// AnalysisCacheEntry represents a cached analysis result.
type AnalysisCacheEntry struct {
	RiskLevel    string
	RiskSpots    []string
	Scripts      []string
	Excuses      []string
	Summary      string
	ActionNeeded string
}

// AnalysisCache stores analysis results keyed by image hash.
type AnalysisCache interface {
	GetAnalysis(imageHash string) (*AnalysisCacheEntry, error)
	SetAnalysis(imageHash string, entry *AnalysisCacheEntry) error
	Close() error
}

// SQLiteStore implements AnalysisCache using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens an SQLite database at dsn and creates the schema.
// Use MemoryDSN for a cache that lives only as long as the process.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database, so keep exactly one.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS analysis_cache (
		image_hash TEXT PRIMARY KEY,
		risk_level TEXT NOT NULL,
		risk_spots TEXT NOT NULL,
		scripts TEXT NOT NULL,
		excuses TEXT NOT NULL,
		summary TEXT NOT NULL,
		action_needed TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create analysis_cache table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetAnalysis retrieves a cached analysis by image hash.
// Returns nil, nil if not found.
func (s *SQLiteStore) GetAnalysis(imageHash string) (*AnalysisCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry AnalysisCacheEntry
	var riskSpots, scripts, excuses string
	err := s.db.QueryRow(
		`SELECT risk_level, risk_spots, scripts, excuses, summary, action_needed
		FROM analysis_cache WHERE image_hash = ?`,
		imageHash,
	).Scan(&entry.RiskLevel, &riskSpots, &scripts, &excuses, &entry.Summary, &entry.ActionNeeded)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis cache: %w", err)
	}

	for _, col := range []struct {
		raw string
		dst *[]string
	}{
		{riskSpots, &entry.RiskSpots},
		{scripts, &entry.Scripts},
		{excuses, &entry.Excuses},
	} {
		if err := json.Unmarshal([]byte(col.raw), col.dst); err != nil {
			return nil, fmt.Errorf("failed to decode cached analysis: %w", err)
		}
	}

	return &entry, nil
}

// SetAnalysis stores an analysis result in the cache.
func (s *SQLiteStore) SetAnalysis(imageHash string, entry *AnalysisCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	riskSpots, err := marshalList(entry.RiskSpots)
	if err != nil {
		return err
	}
	scripts, err := marshalList(entry.Scripts)
	if err != nil {
		return err
	}
	excuses, err := marshalList(entry.Excuses)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO analysis_cache (image_hash, risk_level, risk_spots, scripts, excuses, summary, action_needed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(image_hash) DO UPDATE SET
			risk_level = excluded.risk_level,
			risk_spots = excluded.risk_spots,
			scripts = excluded.scripts,
			excuses = excluded.excuses,
			summary = excluded.summary,
			action_needed = excluded.action_needed,
			created_at = CURRENT_TIMESTAMP
	`, imageHash, entry.RiskLevel, riskSpots, scripts, excuses, entry.Summary, entry.ActionNeeded)
	if err != nil {
		return fmt.Errorf("failed to cache analysis result: %w", err)
	}

	log.Debug().Str("hash", shortHash(imageHash)).Msg("stored analysis in cache")
	return nil
}

// marshalList encodes a list column. A nil list is stored as [].
func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
