package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmchain/backend/domain"
	"github.com/farmchain/backend/repository"
)

type journalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository returns a Postgres-backed implementation of
// JournalRepository.
func NewJournalRepository(pool *pgxpool.Pool) repository.JournalRepository {
	return &journalRepository{pool: pool}
}

func (r *journalRepository) Record(ctx context.Context, entry *repository.JournalEntry) error {
	if entry == nil || entry.ProductID <= 0 {
		return domain.ErrInvalidPayload
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO reconciliation_journal (id, product_id, action, provenance, tx_ref)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at
	`

	return r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.ProductID,
		entry.Action,
		string(entry.Provenance),
		entry.TxRef,
	).Scan(&entry.CreatedAt)
}

func (r *journalRepository) ListRecent(ctx context.Context, limit int) ([]repository.JournalEntry, error) {
	const query = `
	SELECT id, product_id, action, provenance, tx_ref, created_at
	FROM reconciliation_journal
	ORDER BY created_at DESC
	LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []repository.JournalEntry
	for rows.Next() {
		var entry repository.JournalEntry
		var provenance string
		if err := rows.Scan(
			&entry.ID,
			&entry.ProductID,
			&entry.Action,
			&provenance,
			&entry.TxRef,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entry.Provenance = domain.Provenance(provenance)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
