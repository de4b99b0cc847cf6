package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore keeps checkpoints in the conversation_checkpoints table.
type PGStore struct {
	pool   rowQuerier
	tracer trace.Tracer
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("checkpoint: pgx pool required")
	}
	return newPGStoreWithExec(pool)
}

func newPGStoreWithExec(exec rowQuerier) *PGStore {
	if exec == nil {
		panic("checkpoint: exec required")
	}
	return &PGStore{pool: exec, tracer: otel.Tracer("scheduling.internal.checkpoint.postgres")}
}

func (s *PGStore) Load(ctx context.Context, conversationID string) ([]byte, error) {
	if err := validID(conversationID); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "checkpoint.postgres.load")
	defer span.End()

	query := `SELECT state FROM conversation_checkpoints WHERE conversation_id = $1`
	var state []byte
	if err := s.pool.QueryRow(ctx, query, conversationID).Scan(&state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("checkpoint: postgres load: %w", err)
	}
	return state, nil
}

func (s *PGStore) Save(ctx context.Context, conversationID string, data []byte) error {
	if err := validID(conversationID); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "checkpoint.postgres.save")
	defer span.End()

	query := `
		INSERT INTO conversation_checkpoints (conversation_id, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (conversation_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, conversationID, data); err != nil {
		span.RecordError(err)
		return fmt.Errorf("checkpoint: postgres save: %w", err)
	}
	return nil
}
