package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/lexredact/lexredact/internal/pii"
)

// Store persists anonymization summaries to PostgreSQL. It implements
// pii.AuditSink. Only aggregate numbers are stored: no document text and
// no entity values ever reach the database.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Config contains database configuration
type Config struct {
	DatabaseURL  string `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
}

const schema = `
CREATE TABLE IF NOT EXISTS anonymization_audit (
	id              BIGSERIAL PRIMARY KEY,
	operation       TEXT NOT NULL,
	entity_count    INTEGER NOT NULL,
	breakdown       JSONB NOT NULL,
	processing_ms   BIGINT NOT NULL,
	recorded_at     TIMESTAMPTZ NOT NULL
)`

// NewStore connects to the database and ensures the audit table exists.
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audit store: %w", err)
	}

	logger.Info("Audit store initialized successfully",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

// initialize checks the connection and creates the audit table when missing.
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}

	return nil
}

// Record implements pii.AuditSink. Failures are logged, never surfaced:
// audit persistence must not fail the anonymization that produced it.
func (s *Store) Record(ctx context.Context, summary pii.Summary) {
	breakdown, err := json.Marshal(summary.Breakdown)
	if err != nil {
		s.logger.Error("Failed to marshal audit breakdown", zap.Error(err))
		return
	}

	query := `
		INSERT INTO anonymization_audit (operation, entity_count, breakdown, processing_ms, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.db.ExecContext(ctx, query,
		summary.Operation,
		summary.EntityCount,
		breakdown,
		summary.ProcessingTime.Milliseconds(),
		summary.Timestamp,
	)
	if err != nil {
		s.logger.Error("Failed to persist audit record",
			zap.Error(err),
			zap.String("operation", summary.Operation))
		return
	}

	s.logger.Debug("Audit record persisted",
		zap.String("operation", summary.Operation),
		zap.Int("entity_count", summary.EntityCount))
}

// AuditRecord is one persisted audit row.
type AuditRecord struct {
	ID           int64     `db:"id" json:"id"`
	Operation    string    `db:"operation" json:"operation"`
	EntityCount  int       `db:"entity_count" json:"entity_count"`
	Breakdown    []byte    `db:"breakdown" json:"breakdown"`
	ProcessingMS int64     `db:"processing_ms" json:"processing_ms"`
	RecordedAt   time.Time `db:"recorded_at" json:"recorded_at"`
}

// Recent returns the most recent audit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []AuditRecord
	query := `
		SELECT id, operation, entity_count, breakdown, processing_ms, recorded_at
		FROM anonymization_audit
		ORDER BY recorded_at DESC
		LIMIT $1`
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	return records, nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL masks sensitive information in database URL for logging
func maskDatabaseURL(url string) string {
	if at := strings.Index(url, "@"); at != -1 {
		if scheme := strings.Index(url, "://"); scheme != -1 {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}
