package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"database/sql"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/good-yellow-bee/taskforge/internal/models"
)

// ClickHouseConfig holds ClickHouse connection settings for the
// activity archive.
type ClickHouseConfig struct {
	// Addresses are the ClickHouse server addresses (host:port).
	Addresses []string

	// Database is the ClickHouse database name.
	Database string

	// Username for authentication.
	Username string

	// Password for authentication.
	Password string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// DialTimeout is the connection timeout.
	DialTimeout time.Duration

	// Compression enables LZ4 compression.
	Compression bool

	// RetentionDays is the TTL in days for archived activity retention.
	RetentionDays int
}

// ClickHouseArchive keeps a long-retention copy of the activity ledger
// in ClickHouse. SQLite stays the source of truth for the API; the
// archive serves retention beyond what the primary database should
// carry.
type ClickHouseArchive struct {
	config *ClickHouseConfig
	db     *sql.DB
}

// NewClickHouseArchive creates a new activity archive.
func NewClickHouseArchive(config *ClickHouseConfig) *ClickHouseArchive {
	// Apply defaults
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 5
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 5
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.RetentionDays == 0 {
		config.RetentionDays = 365
	}

	return &ClickHouseArchive{config: config}
}

// Open initializes the ClickHouse connection.
func (s *ClickHouseArchive) Open() error {
	opts := &clickhouse.Options{
		Addr: s.config.Addresses,
		Auth: clickhouse.Auth{
			Database: s.config.Database,
			Username: s.config.Username,
			Password: s.config.Password,
		},
		DialTimeout:  s.config.DialTimeout,
		MaxOpenConns: s.config.MaxOpenConns,
		MaxIdleConns: s.config.MaxIdleConns,
	}

	if s.config.Compression {
		opts.Compression = &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		}
	}

	db := clickhouse.OpenDB(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *ClickHouseArchive) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate creates the archive table if it doesn't exist.
func (s *ClickHouseArchive) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS activities (
			id String,
			action LowCardinality(String),
			actor_id String,
			entity_type LowCardinality(String),
			entity_id String,
			project_id String,
			changes String,
			metadata String,
			created_at DateTime64(3, 'UTC'),
			_date Date DEFAULT toDate(created_at)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(_date)
		ORDER BY (project_id, created_at)
		TTL _date + INTERVAL %d DAY
	`, s.config.RetentionDays)

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create activities archive table: %w", err)
	}
	return nil
}

// Ping checks connectivity for health reporting.
func (s *ClickHouseArchive) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertBatch writes a batch of activity entries to the archive.
func (s *ClickHouseArchive) InsertBatch(ctx context.Context, entries []*models.Activity) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO activities (id, action, actor_id, entity_type, entity_id, project_id, changes, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range entries {
		changes := ""
		if a.Changes != nil {
			b, err := json.Marshal(a.Changes)
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("encode archive changes: %w", err)
			}
			changes = string(b)
		}
		metadata := ""
		if len(a.Metadata) > 0 {
			b, err := json.Marshal(a.Metadata)
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("encode archive metadata: %w", err)
			}
			metadata = string(b)
		}

		_, err := stmt.ExecContext(ctx,
			a.ID, string(a.Action), a.ActorID, string(a.EntityType), a.EntityID,
			a.ProjectID, changes, metadata, a.CreatedAt.UTC())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("append archive entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive batch: %w", err)
	}
	return nil
}
