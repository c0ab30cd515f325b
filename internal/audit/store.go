// Package audit persists pseudonymization reports and the correspondences
// they produced, so that a session can be reversed or reviewed later.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/raaihank/text-pseudonymizer/internal/logger"
	"github.com/raaihank/text-pseudonymizer/internal/privacy"
	"github.com/raaihank/text-pseudonymizer/internal/pseudonymizer"
	"github.com/raaihank/text-pseudonymizer/internal/rewriter"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	original_text TEXT NOT NULL,
	pseudonymized_text TEXT NOT NULL,
	entities TEXT NOT NULL,
	findings TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_session ON documents (session_id);
CREATE TABLE IF NOT EXISTS correspondences (
	session_id TEXT NOT NULL,
	entity_key TEXT NOT NULL,
	replacement TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, entity_key)
);`

// Store handles audit storage on PostgreSQL or SQLite
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewStore connects to the database named by config.DatabaseURL and creates
// the schema if needed
func NewStore(config *Config, log *logger.Logger) (*Store, error) {
	driver, dsn, err := driverFor(config.DatabaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == "sqlite" {
		// Every sqlite connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	store := &Store{
		db:     db,
		logger: log.WithComponent("audit"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	store.logger.Info("Audit store initialized",
		zap.String("driver", driver),
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)))

	return store, nil
}

// driverFor picks the sql driver from the URL scheme
func driverFor(url string) (string, string, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", url, nil
	case strings.HasPrefix(url, "sqlite://"):
		return "sqlite", strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "file:"), url == ":memory:":
		return "sqlite", url, nil
	default:
		return "", "", fmt.Errorf("unsupported database url: %s", maskDatabaseURL(url))
	}
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveReport stores a report and the session's correspondences. Existing
// correspondences are left untouched. Returns the new document id.
func (s *Store) SaveReport(ctx context.Context, sessionID string, report *pseudonymizer.Report) (string, error) {
	entities, err := json.Marshal(report.Entities)
	if err != nil {
		return "", fmt.Errorf("failed to encode entities: %w", err)
	}
	findings, err := json.Marshal(report.Findings)
	if err != nil {
		return "", fmt.Errorf("failed to encode findings: %w", err)
	}

	doc := Document{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		OriginalText:      report.OriginalText,
		PseudonymizedText: report.PseudonymizedText,
		Entities:          string(entities),
		Findings:          string(findings),
		CreatedAt:         time.Now().UTC(),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertDoc := tx.Rebind(`
		INSERT INTO documents (id, session_id, original_text, pseudonymized_text, entities, findings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, insertDoc,
		doc.ID, doc.SessionID, doc.OriginalText, doc.PseudonymizedText, doc.Entities, doc.Findings, doc.CreatedAt,
	); err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}

	insertCorr := tx.Rebind(`
		INSERT INTO correspondences (session_id, entity_key, replacement, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, entity_key) DO NOTHING`)
	var inserted int64
	for key, replacement := range report.Correspondences {
		res, err := tx.ExecContext(ctx, insertCorr, sessionID, key, replacement, doc.CreatedAt)
		if err != nil {
			return "", fmt.Errorf("failed to insert correspondence: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit report: %w", err)
	}

	s.logger.Debug("Report stored",
		zap.String("document_id", doc.ID),
		zap.String("session_id", sessionID),
		zap.Int64("new_correspondences", inserted))

	return doc.ID, nil
}

// GetReport loads a stored report by document id. The correspondences are
// those of the whole session.
func (s *Store) GetReport(ctx context.Context, docID string) (*pseudonymizer.Report, *Document, error) {
	var doc Document
	query := s.db.Rebind(`
		SELECT id, session_id, original_text, pseudonymized_text, entities, findings, created_at
		FROM documents WHERE id = ?`)
	if err := s.db.GetContext(ctx, &doc, query, docID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to load document: %w", err)
	}

	report := &pseudonymizer.Report{
		OriginalText:      doc.OriginalText,
		PseudonymizedText: doc.PseudonymizedText,
	}
	var entities []rewriter.AppliedEntity
	if err := json.Unmarshal([]byte(doc.Entities), &entities); err != nil {
		return nil, nil, fmt.Errorf("failed to decode entities: %w", err)
	}
	var findings []privacy.Finding
	if err := json.Unmarshal([]byte(doc.Findings), &findings); err != nil {
		return nil, nil, fmt.Errorf("failed to decode findings: %w", err)
	}
	report.Entities = entities
	report.Findings = findings

	corr, err := s.Correspondences(ctx, doc.SessionID)
	if err != nil {
		return nil, nil, err
	}
	report.Correspondences = corr

	return report, &doc, nil
}

// Correspondences returns the key → pseudonym map recorded for a session
func (s *Store) Correspondences(ctx context.Context, sessionID string) (map[string]string, error) {
	var rows []Correspondence
	query := s.db.Rebind(`
		SELECT session_id, entity_key, replacement, created_at
		FROM correspondences WHERE session_id = ?`)
	if err := s.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to load correspondences: %w", err)
	}

	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Replacement
	}
	return out, nil
}

// GetStats returns row counts for the audit tables
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	query := `
		SELECT
			(SELECT COUNT(*) FROM documents) AS documents,
			(SELECT COUNT(DISTINCT session_id) FROM documents) AS sessions,
			(SELECT COUNT(*) FROM correspondences) AS correspondences`
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get audit stats: %w", err)
	}
	return &stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL masks the password of a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	scheme := strings.Index(url, "://")
	userinfo := url[:at]
	if scheme >= 0 {
		userinfo = url[scheme+3 : at]
	}
	colon := strings.Index(userinfo, ":")
	if colon < 0 {
		return url
	}
	prefix := url[:at-len(userinfo)]
	return prefix + userinfo[:colon] + ":***" + url[at:]
}
