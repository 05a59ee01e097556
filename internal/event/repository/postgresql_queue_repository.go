package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/allisson/cecsync/internal/database"
	"github.com/allisson/cecsync/internal/event/domain"
)

// queueDocumentID is the primary key of the single row holding the queue document.
const queueDocumentID = 1

// PostgreSQLQueueRepository stores the queue document in the event_queue table.
// Inside a transaction Load takes a row lock so concurrent processes serialize their
// load-mutate-save cycles.
type PostgreSQLQueueRepository struct {
	db *sql.DB
}

// NewPostgreSQLQueueRepository creates a new PostgreSQLQueueRepository.
func NewPostgreSQLQueueRepository(db *sql.DB) *PostgreSQLQueueRepository {
	return &PostgreSQLQueueRepository{db: db}
}

// Load reads and decodes the queue document.
func (r *PostgreSQLQueueRepository) Load(ctx context.Context) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT document FROM event_queue WHERE id = $1 FOR UPDATE`

	var document string
	if err := querier.QueryRowContext(ctx, query, queueDocumentID).Scan(&document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*domain.Event{}, nil
		}
		return nil, fmt.Errorf("failed to load queue document: %w", err)
	}

	return decodeQueue([]byte(document))
}

// Save upserts the queue document.
func (r *PostgreSQLQueueRepository) Save(ctx context.Context, events []*domain.Event) error {
	data, err := encodeQueue(events)
	if err != nil {
		return err
	}

	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO event_queue (id, document, updated_at)
			  VALUES ($1, $2, NOW())
			  ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`

	if _, err := querier.ExecContext(ctx, query, queueDocumentID, string(data)); err != nil {
		return fmt.Errorf("failed to save queue document: %w", err)
	}
	return nil
}
