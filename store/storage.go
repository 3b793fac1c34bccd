package store

import (
	"context"
	"log"

	"docsum/types"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordMirror receives a copy of every processed Document Record.
type RecordMirror interface {
	SaveRecord(context.Context, types.DocumentRecord) error
	DeleteRecord(context.Context, string) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) SaveRecord(ctx context.Context, rec types.DocumentRecord) error {
	query := `INSERT INTO document_records (name, created_at, text_preview, analysis, type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			text_preview = EXCLUDED.text_preview,
			analysis = EXCLUDED.analysis,
			type = EXCLUDED.type
			`
	_, err := p.pool.Exec(
		ctx,
		query,
		rec.Name,
		rec.Timestamp,
		rec.TextPreview,
		rec.Analysis,
		string(rec.Type),
	)
	return err
}

func (p *PostgresStore) DeleteRecord(ctx context.Context, name string) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM document_records WHERE name = $1", name)
	return err
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS document_records (
		name TEXT PRIMARY KEY,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		text_preview TEXT NOT NULL,
		analysis TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_document_records_created_at ON document_records(created_at);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

// Close закрывает пул подключений
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
