// Package postgres records the indexing status of documents in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/resilience"
)

// Document statuses. Ingestion writes PENDING; the indexer writes the rest.
const (
	StatusPending = "PENDING"
	StatusIndexed = "INDEXED"
	StatusDeleted = "DELETED"
	StatusFailed  = "FAILED"
)

const schema = `
CREATE TABLE IF NOT EXISTS document_status (
	document_id BIGINT PRIMARY KEY,
	status      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

// Connect retries New until the database answers, then ensures the schema.
// Services start alongside their database and may come up first.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	var client *Client
	err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
	}, func(ctx context.Context) error {
		c, err := New(cfg)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureSchema(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// EnsureSchema creates the document_status table if it is missing.
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating document_status table: %w", err)
	}
	return nil
}

// UpdateStatus upserts the status of docID.
func (c *Client) UpdateStatus(ctx context.Context, docID uint64, status, detail string) error {
	_, err := c.DB.ExecContext(ctx,
		`INSERT INTO document_status (document_id, status, detail, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (document_id) DO UPDATE
		 SET status = EXCLUDED.status, detail = EXCLUDED.detail, updated_at = EXCLUDED.updated_at`,
		int64(docID), status, detail,
	)
	if err != nil {
		return fmt.Errorf("updating status of document %d: %w", docID, err)
	}
	return nil
}

// Status returns the recorded status of docID, or sql.ErrNoRows.
func (c *Client) Status(ctx context.Context, docID uint64) (string, error) {
	var status string
	err := c.DB.QueryRowContext(ctx,
		`SELECT status FROM document_status WHERE document_id = $1`, int64(docID),
	).Scan(&status)
	if err != nil {
		return "", err
	}
	return status, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}
