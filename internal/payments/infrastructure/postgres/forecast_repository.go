package postgres

import (
	"context"
	"errors"

	payments "stewardship-cloud/internal/payments/domain"
)

// ForecastRepository persists forecast headers and lines.
type ForecastRepository struct {
	db DBTX
}

// NewForecastRepository constructs a repository over a db or tx.
func NewForecastRepository(db DBTX) *ForecastRepository {
	return &ForecastRepository{db: db}
}

// SaveHeader inserts a header and its lines.
func (r *ForecastRepository) SaveHeader(ctx context.Context, h *payments.ForecastHeader) error {
	if r == nil || r.db == nil {
		return errors.New("forecast repo: nil db")
	}
	if h == nil {
		return errors.New("forecast repo: nil header")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO forecast_headers (
	id, scheme_id, batch_id, participant_id, participant_name, period_type, period, period_start, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		h.ID, h.SchemeID, h.BatchID, h.ParticipantID, h.ParticipantName, string(h.PeriodType), h.Period, h.PeriodStart, h.CreatedAt)
	if err != nil {
		return err
	}
	for _, line := range h.Lines {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO forecast_lines (header_id, material_id, volume, fact_id)
VALUES ($1,$2,$3,$4)`, h.ID, line.MaterialID, line.Volume, line.FactID)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListHeaders returns headers of a participant and period with their lines.
func (r *ForecastRepository) ListHeaders(ctx context.Context, schemeID, participantID, period string) ([]*payments.ForecastHeader, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("forecast repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, scheme_id, batch_id, participant_id, participant_name, period_type, period, period_start, created_at
FROM forecast_headers
WHERE scheme_id = $1 AND period = $2 AND ($3 = '' OR participant_id = $3)
ORDER BY created_at DESC`, schemeID, period, participantID)
	if err != nil {
		return nil, err
	}
	var headers []*payments.ForecastHeader
	for rows.Next() {
		var h payments.ForecastHeader
		var periodType string
		if err := rows.Scan(&h.ID, &h.SchemeID, &h.BatchID, &h.ParticipantID, &h.ParticipantName, &periodType, &h.Period, &h.PeriodStart, &h.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		h.PeriodType = payments.PeriodType(periodType)
		h.PeriodStart = h.PeriodStart.UTC()
		h.CreatedAt = h.CreatedAt.UTC()
		headers = append(headers, &h)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, h := range headers {
		lines, err := r.listLines(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		h.Lines = lines
	}
	return headers, nil
}

func (r *ForecastRepository) listLines(ctx context.Context, headerID string) ([]payments.ForecastLine, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT material_id, volume, fact_id
FROM forecast_lines
WHERE header_id = $1
ORDER BY material_id ASC`, headerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []payments.ForecastLine
	for rows.Next() {
		var l payments.ForecastLine
		if err := rows.Scan(&l.MaterialID, &l.Volume, &l.FactID); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
