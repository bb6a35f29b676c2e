package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	invoicing "stewardship-cloud/internal/invoicing/domain"
	paymentspg "stewardship-cloud/internal/payments/infrastructure/postgres"
)

const documentColumns = `number, invoice_batch_id, scheme_id, document_type, classification, business_unit,
	legal_entity, currency, counterparty_id, counterparty_name, category, payment_type, payment_method,
	auction_lot_id, total_amount, tax_amount, description, created_at, synced_at`

const lineColumns = `document_number, line_number, fact_id, material_id, quantity, unit, unit_price,
	amount, tax_amount, tax_classification, distribution`

// DocumentRepository persists documents in invoice_documents and
// invoice_lines.
type DocumentRepository struct {
	db paymentspg.DBTX
}

// NewDocumentRepository constructs a repository over a db or tx.
func NewDocumentRepository(db paymentspg.DBTX) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Save inserts a document header and its lines. An existing number is an
// error.
func (r *DocumentRepository) Save(ctx context.Context, d *invoicing.Document) error {
	if r == nil || r.db == nil {
		return errors.New("document repo: nil db")
	}
	if d == nil || d.Number == "" {
		return errors.New("document repo: document number required")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO invoice_documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		d.Number, d.InvoiceBatchID, d.SchemeID, string(d.Type), string(d.Classification), d.BusinessUnit,
		d.LegalEntity, d.Currency, d.CounterpartyID, d.CounterpartyName, d.Category, d.PaymentType, d.PaymentMethod,
		d.AuctionLotID, d.TotalAmount, d.TaxAmount, d.Description, d.CreatedAt, nullTime(d.SyncedAt),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	for _, l := range d.Lines {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO invoice_lines (`+lineColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			d.Number, l.LineNumber, l.FactID, l.MaterialID, l.Quantity, l.Unit, l.UnitPrice,
			l.Amount, l.TaxAmount, l.TaxClassification, l.Distribution,
		)
		if err != nil {
			return fmt.Errorf("insert line %d: %w", l.LineNumber, err)
		}
	}
	return nil
}

// ListByBatch returns the documents of an invoice batch with their lines.
func (r *DocumentRepository) ListByBatch(ctx context.Context, invoiceBatchID string) ([]*invoicing.Document, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("document repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM invoice_documents
WHERE invoice_batch_id = $1
ORDER BY number ASC`, invoiceBatchID)
	if err != nil {
		return nil, err
	}
	var (
		docs  []*invoicing.Document
		index = make(map[string]*invoicing.Document)
	)
	for rows.Next() {
		var (
			d              invoicing.Document
			docType, class string
			syncedAt       sql.NullTime
		)
		if err := rows.Scan(
			&d.Number, &d.InvoiceBatchID, &d.SchemeID, &docType, &class, &d.BusinessUnit,
			&d.LegalEntity, &d.Currency, &d.CounterpartyID, &d.CounterpartyName, &d.Category, &d.PaymentType, &d.PaymentMethod,
			&d.AuctionLotID, &d.TotalAmount, &d.TaxAmount, &d.Description, &d.CreatedAt, &syncedAt,
		); err != nil {
			rows.Close()
			return nil, err
		}
		d.Type = invoicing.DocumentType(docType)
		d.Classification = invoicing.Classification(class)
		d.CreatedAt = d.CreatedAt.UTC()
		if syncedAt.Valid {
			d.SyncedAt = syncedAt.Time.UTC()
		}
		docs = append(docs, &d)
		index[d.Number] = &d
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(docs) == 0 {
		return nil, nil
	}

	lineRows, err := r.db.QueryContext(ctx, `
SELECT l.document_number, l.line_number, l.fact_id, l.material_id, l.quantity, l.unit, l.unit_price,
	l.amount, l.tax_amount, l.tax_classification, l.distribution
FROM invoice_lines l
JOIN invoice_documents d ON d.number = l.document_number
WHERE d.invoice_batch_id = $1
ORDER BY l.document_number ASC, l.line_number ASC`, invoiceBatchID)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var (
			number string
			l      invoicing.Line
		)
		if err := lineRows.Scan(
			&number, &l.LineNumber, &l.FactID, &l.MaterialID, &l.Quantity, &l.Unit, &l.UnitPrice,
			&l.Amount, &l.TaxAmount, &l.TaxClassification, &l.Distribution,
		); err != nil {
			return nil, err
		}
		if d, ok := index[number]; ok {
			d.Lines = append(d.Lines, l)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// MarkSynced stamps the unsynced documents of a batch.
func (r *DocumentRepository) MarkSynced(ctx context.Context, invoiceBatchID string, at time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("document repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE invoice_documents
SET synced_at = $1
WHERE invoice_batch_id = $2 AND synced_at IS NULL`, at.UTC(), invoiceBatchID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
