package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

// ChunkRepository reads chunk records out of the indexing pipeline's
// store, used to hydrate search hits whose payloads are incomplete.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	kb_id TEXT NOT NULL,
	source_file TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chunks_kb_id ON chunks(kb_id);

CREATE TABLE IF NOT EXISTS api_keys (
	key_hash TEXT PRIMARY KEY,
	key_id TEXT NOT NULL,
	allowed_kb_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	rate_limit_per_sec DOUBLE PRECISION NOT NULL DEFAULT 10,
	rate_limit_burst INTEGER NOT NULL DEFAULT 20,
	revoked_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS query_feedback (
	id BIGSERIAL PRIMARY KEY,
	query_type TEXT NOT NULL,
	complexity TEXT NOT NULL,
	service_type TEXT NOT NULL,
	result_count INTEGER NOT NULL,
	degraded BOOLEAN NOT NULL,
	elapsed_ms DOUBLE PRECISION NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_feedback_observed_at ON query_feedback(observed_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// FetchChunkMetadata loads stored chunk rows by id. Missing ids are simply
// absent from the result map.
func (r *ChunkRepository) FetchChunkMetadata(ctx context.Context, ids []string) (map[string]domain.CandidateChunk, error) {
	if len(ids) == 0 {
		return map[string]domain.CandidateChunk{}, nil
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal chunk ids: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, kb_id, source_file, content, metadata
FROM chunks
WHERE id IN (SELECT jsonb_array_elements_text($1::jsonb))
`, idsJSON)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.CandidateChunk, len(ids))
	for rows.Next() {
		var chunk domain.CandidateChunk
		var metaRaw []byte
		if err := rows.Scan(&chunk.ID, &chunk.KnowledgeBaseID, &chunk.SourceFile, &chunk.Content, &metaRaw); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		out[chunk.ID] = chunk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// SaveFeedback appends one learning event, consumed by the worker.
func (r *ChunkRepository) SaveFeedback(ctx context.Context, feedback domain.QueryFeedback) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO query_feedback (query_type, complexity, service_type, result_count, degraded, elapsed_ms, observed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		string(feedback.QueryType), string(feedback.Complexity), string(feedback.ServiceType),
		feedback.ResultCount, feedback.Degraded, feedback.ElapsedMs, feedback.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
