package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/allisson/cecsync/internal/database"
	"github.com/allisson/cecsync/internal/event/domain"
)

// MySQLQueueRepository stores the queue document in the event_queue table.
type MySQLQueueRepository struct {
	db *sql.DB
}

// NewMySQLQueueRepository creates a new MySQLQueueRepository.
func NewMySQLQueueRepository(db *sql.DB) *MySQLQueueRepository {
	return &MySQLQueueRepository{db: db}
}

// Load reads and decodes the queue document.
func (r *MySQLQueueRepository) Load(ctx context.Context) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT document FROM event_queue WHERE id = ? FOR UPDATE`

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
func (r *MySQLQueueRepository) Save(ctx context.Context, events []*domain.Event) error {
	data, err := encodeQueue(events)
	if err != nil {
		return err
	}

	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO event_queue (id, document, updated_at)
			  VALUES (?, ?, NOW())
			  ON DUPLICATE KEY UPDATE document = VALUES(document), updated_at = VALUES(updated_at)`

	if _, err := querier.ExecContext(ctx, query, queueDocumentID, string(data)); err != nil {
		return fmt.Errorf("failed to save queue document: %w", err)
	}
	return nil
}
