package journal

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/service/database"
	"github.com/kapu/markov-kakao-bot-go/pkg/errors"
	"go.uber.org/zap"
)

// Migrations creates the invocation journal table.
var Migrations = []database.Migration{
	{
		Version: 1,
		Name:    "create_command_invocations",
		SQL: `CREATE TABLE IF NOT EXISTS command_invocations (
	id             UUID PRIMARY KEY,
	command        TEXT NOT NULL,
	room           TEXT NOT NULL,
	user_id        TEXT NOT NULL,
	outcome        TEXT NOT NULL,
	retry_after_ms BIGINT NOT NULL DEFAULT 0,
	duration_ms    BIGINT NOT NULL DEFAULT 0,
	invoked_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_command_invocations_invoked_at ON command_invocations (invoked_at)`,
	},
}

const insertInvocation = `INSERT INTO command_invocations
	(id, command, room, user_id, outcome, retry_after_ms, duration_ms, invoked_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Repository appends dispatch outcomes to PostgreSQL.
type Repository struct {
	db     execer
	logger *zap.Logger
}

func NewRepository(postgres *database.PostgresService, logger *zap.Logger) *Repository {
	return newRepository(postgres.GetDB(), logger)
}

func newRepository(db execer, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger}
}

// Record stores one invocation, assigning an ID when it has none.
func (r *Repository) Record(ctx context.Context, inv *domain.Invocation) error {
	if inv == nil {
		return errors.NewValidationError("invocation is required", "invocation", nil)
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, insertInvocation,
		inv.ID,
		inv.Command,
		inv.Room,
		inv.UserID,
		inv.Outcome,
		inv.RetryAfter.Milliseconds(),
		inv.Duration.Milliseconds(),
		inv.At.UTC(),
	)
	if err != nil {
		return errors.NewServiceError("failed to record invocation", "journal", "record", err)
	}

	r.logger.Debug("Invocation recorded",
		zap.String("id", inv.ID),
		zap.String("command", inv.Command),
		zap.String("outcome", inv.Outcome),
	)
	return nil
}
