package postgres

import (
	"context"
	"database/sql"
	"errors"

	payments "stewardship-cloud/internal/payments/domain"
)

// BatchRepository persists computation batches.
type BatchRepository struct {
	db DBTX
}

// NewBatchRepository constructs a repository.
func NewBatchRepository(db DBTX) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a batch.
func (r *BatchRepository) Create(ctx context.Context, b *payments.Batch) error {
	if r == nil || r.db == nil {
		return errors.New("batch repo: nil db")
	}
	if b == nil {
		return errors.New("batch repo: nil batch")
	}
	p := b.Period()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payment_batches (
	id, scheme_id, category, period_type, period, period_start, status, started_at, ended_at, error_message
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		b.ID(), b.SchemeID(), string(b.Category()), string(p.Type), p.Value, p.Start, string(b.Status()),
		b.Start(), nullTime(b.End()), b.ErrorMessage(),
	)
	return err
}

// Update writes status, end time and error message.
func (r *BatchRepository) Update(ctx context.Context, b *payments.Batch) error {
	if r == nil || r.db == nil {
		return errors.New("batch repo: nil db")
	}
	if b == nil {
		return errors.New("batch repo: nil batch")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE payment_batches
SET status = $1, ended_at = $2, error_message = $3
WHERE id = $4`, string(b.Status()), nullTime(b.End()), b.ErrorMessage(), b.ID())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return payments.ErrBatchNotFound
	}
	return nil
}

// Get loads a batch.
func (r *BatchRepository) Get(ctx context.Context, id string) (*payments.Batch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("batch repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, scheme_id, category, period_type, period, period_start, status, started_at, ended_at, error_message
FROM payment_batches
WHERE id = $1`, id)

	var batchID, schemeID, category, periodType, period, status, errMsg string
	var periodStart, startedAt, endedAt sql.NullTime
	if err := row.Scan(&batchID, &schemeID, &category, &periodType, &period, &periodStart, &status, &startedAt, &endedAt, &errMsg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payments.ErrBatchNotFound
		}
		return nil, err
	}
	return payments.RestoreBatch(
		batchID,
		schemeID,
		payments.ParticipantCategory(category),
		payments.Period{Type: payments.PeriodType(periodType), Value: period, Start: periodStart.Time.UTC()},
		payments.BatchStatus(status),
		startedAt.Time,
		endedAt.Time,
		errMsg,
	), nil
}
