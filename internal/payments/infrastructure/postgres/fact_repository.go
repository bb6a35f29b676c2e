package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	payments "stewardship-cloud/internal/payments/domain"
)

const factColumns = `id, scheme_id, batch_id, participant_id, participant_name, category, payment_type, payment_method,
	material_id, period_type, period, period_start, entry_type, volume, unit, unit_price,
	gross_amount, taxable_amount, tax_amount, arrears, status, source_record_id, auction_lot_id,
	manifest_id, auction_subtype, seller_category, buyer_id, buyer_name, created_at, updated_at`

// FactRepository persists transaction facts in payment_transactions.
type FactRepository struct {
	db DBTX
}

// NewFactRepository constructs a repository over a db or tx.
func NewFactRepository(db DBTX) *FactRepository {
	return &FactRepository{db: db}
}

// Save upserts a fact. A fact saved again within its batch carries merged
// volume and amounts.
func (r *FactRepository) Save(ctx context.Context, f *payments.TransactionFact) error {
	if r == nil || r.db == nil {
		return errors.New("fact repo: nil db")
	}
	if f == nil {
		return payments.ErrNilFact
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payment_transactions (`+factColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30)
ON CONFLICT (id) DO UPDATE SET
	volume = EXCLUDED.volume,
	unit_price = EXCLUDED.unit_price,
	gross_amount = EXCLUDED.gross_amount,
	taxable_amount = EXCLUDED.taxable_amount,
	tax_amount = EXCLUDED.tax_amount,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at`,
		f.ID, f.SchemeID, f.BatchID, f.ParticipantID, f.ParticipantName, string(f.Category), f.PaymentType, f.PaymentMethod,
		f.MaterialID, string(f.PeriodType), f.Period, f.PeriodStart, string(f.EntryType), f.Volume, f.Unit, f.UnitPrice,
		f.GrossAmount, f.TaxableAmount, f.TaxAmount, f.Arrears, string(f.Status), f.SourceRecordID, f.AuctionLotID,
		f.ManifestID, string(f.AuctionSubtype), string(f.SellerCategory), f.BuyerID, f.BuyerName, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

// MarkStale flips live facts with the key in other batches to STALE.
func (r *FactRepository) MarkStale(ctx context.Context, key payments.DimensionalKey, excludeBatchID string, live payments.FactStatus) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("fact repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE payment_transactions
SET status = $1, updated_at = $2
WHERE scheme_id = $3 AND participant_id = $4 AND material_id = $5
	AND period_type = $6 AND period = $7 AND entry_type = $8 AND auction_lot_id = $9
	AND batch_id <> $10 AND status = $11`,
		string(payments.FactStale), time.Now().UTC(),
		key.SchemeID, key.ParticipantID, key.MaterialID,
		string(key.PeriodType), key.Period, string(key.EntryType), key.AuctionLotID,
		excludeBatchID, string(live),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// List returns facts matching the filter ordered by creation.
func (r *FactRepository) List(ctx context.Context, filter payments.FactFilter) ([]*payments.TransactionFact, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("fact repo: nil db")
	}
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.SchemeID != "" {
		add("scheme_id = $%d", filter.SchemeID)
	}
	if filter.Category != "" {
		add("category = $%d", string(filter.Category))
	}
	if filter.AuctionLotID != "" {
		add("auction_lot_id = $%d", filter.AuctionLotID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		add("status = ANY($%d)", statuses)
	}
	if len(filter.Participants.IDs) > 0 {
		if filter.Participants.Exclude {
			add("NOT (participant_id = ANY($%d))", filter.Participants.IDs)
		} else {
			add("participant_id = ANY($%d)", filter.Participants.IDs)
		}
	}
	query := `SELECT ` + factColumns + ` FROM payment_transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*payments.TransactionFact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus moves facts currently in one of from to status.
func (r *FactRepository) UpdateStatus(ctx context.Context, ids []string, from []payments.FactStatus, status payments.FactStatus) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("fact repo: nil db")
	}
	if len(ids) == 0 || len(from) == 0 {
		return 0, nil
	}
	current := make([]string, 0, len(from))
	for _, st := range from {
		current = append(current, string(st))
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE payment_transactions
SET status = $1, updated_at = $2
WHERE id = ANY($3) AND status = ANY($4)`, string(status), time.Now().UTC(), ids, current)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Invoiced reports whether an INVOICED fact carries the key.
func (r *FactRepository) Invoiced(ctx context.Context, key payments.DimensionalKey) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("fact repo: nil db")
	}
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM payment_transactions
	WHERE scheme_id = $1 AND participant_id = $2 AND material_id = $3
		AND period_type = $4 AND period = $5 AND entry_type = $6 AND auction_lot_id = $7
		AND status = $8
)`,
		key.SchemeID, key.ParticipantID, key.MaterialID,
		string(key.PeriodType), key.Period, string(key.EntryType), key.AuctionLotID,
		string(payments.FactInvoiced),
	).Scan(&exists)
	return exists, err
}

func scanFact(row rowScanner) (*payments.TransactionFact, error) {
	var f payments.TransactionFact
	var category, periodType, entryType, status, subtype, sellerCategory string
	err := row.Scan(
		&f.ID, &f.SchemeID, &f.BatchID, &f.ParticipantID, &f.ParticipantName, &category, &f.PaymentType, &f.PaymentMethod,
		&f.MaterialID, &periodType, &f.Period, &f.PeriodStart, &entryType, &f.Volume, &f.Unit, &f.UnitPrice,
		&f.GrossAmount, &f.TaxableAmount, &f.TaxAmount, &f.Arrears, &status, &f.SourceRecordID, &f.AuctionLotID,
		&f.ManifestID, &subtype, &sellerCategory, &f.BuyerID, &f.BuyerName, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	f.Category = payments.ParticipantCategory(category)
	f.PeriodType = payments.PeriodType(periodType)
	f.EntryType = payments.EntryType(entryType)
	f.Status = payments.FactStatus(status)
	f.AuctionSubtype = payments.AuctionSubtype(subtype)
	f.SellerCategory = payments.ParticipantCategory(sellerCategory)
	f.PeriodStart = f.PeriodStart.UTC()
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
