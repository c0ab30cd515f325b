package audit

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a document id is unknown
var ErrNotFound = errors.New("document not found")

// Config contains audit database configuration
type Config struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Document is one stored pseudonymization report
type Document struct {
	ID                string    `db:"id" json:"id"`
	SessionID         string    `db:"session_id" json:"session_id"`
	OriginalText      string    `db:"original_text" json:"original_text"`
	PseudonymizedText string    `db:"pseudonymized_text" json:"pseudonymized_text"`
	Entities          string    `db:"entities" json:"-"`
	Findings          string    `db:"findings" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Correspondence is one registry entry recorded for a session
type Correspondence struct {
	SessionID   string    `db:"session_id" json:"session_id"`
	Key         string    `db:"entity_key" json:"key"`
	Replacement string    `db:"replacement" json:"replacement"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Stats summarises the audit trail
type Stats struct {
	Documents       int64 `db:"documents" json:"documents"`
	Sessions        int64 `db:"sessions" json:"sessions"`
	Correspondences int64 `db:"correspondences" json:"correspondences"`
}
