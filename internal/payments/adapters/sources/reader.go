package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	payments "stewardship-cloud/internal/payments/domain"
)

const (
	defaultLotsTable         = "auction_lots"
	defaultParticipantsTable = "scheme_participants"
)

// Reader loads volume declarations and claims from the per-category source
// tables. The claim tables share one layout.
type Reader struct {
	db                *sql.DB
	tables            map[payments.ParticipantCategory]string
	lotsTable         string
	participantsTable string
}

// ReaderOption configures the reader.
type ReaderOption func(*Reader)

// WithCategoryTable overrides the source table of a category.
func WithCategoryTable(category payments.ParticipantCategory, table string) ReaderOption {
	return func(r *Reader) {
		if r != nil && table != "" {
			r.tables[category] = table
		}
	}
}

// WithLotsTable overrides the auction lots table.
func WithLotsTable(table string) ReaderOption {
	return func(r *Reader) {
		if r != nil && table != "" {
			r.lotsTable = table
		}
	}
}

// NewReader constructs a reader.
func NewReader(db *sql.DB, opts ...ReaderOption) *Reader {
	r := &Reader{
		db: db,
		tables: map[payments.ParticipantCategory]string{
			payments.CategoryManufacturer:    "manufacturer_declarations",
			payments.CategoryProcessor:       "processor_claims",
			payments.CategoryCollectionPoint: "collection_point_claims",
			payments.CategoryExporter:        "exporter_claims",
			payments.CategoryMRF:             "mrf_volume_reports",
		},
		lotsTable:         defaultLotsTable,
		participantsTable: defaultParticipantsTable,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads the records of the query period plus late entries of earlier
// periods. Manufacturer runs also get the trailing twelve months of
// declarations as history and the scheme's manufacturers as targets.
func (r *Reader) Load(ctx context.Context, q payments.SourceQuery) (payments.SourceSet, error) {
	if r == nil || r.db == nil {
		return payments.SourceSet{}, errors.New("source reader: nil db")
	}
	if q.SchemeID == "" {
		return payments.SourceSet{}, errors.New("source reader: empty scheme id")
	}
	var set payments.SourceSet
	if q.Category == payments.CategoryAuction {
		lots, err := r.loadLots(ctx, q)
		if err != nil {
			return set, err
		}
		set.Lots = lots
		return set, nil
	}

	table, ok := r.tables[q.Category]
	if !ok {
		return set, fmt.Errorf("source reader: no table for %s", q.Category)
	}
	records, err := r.loadRecords(ctx, table, q, `
	AND ((period_start >= $2 AND period_start < $3) OR (period_start < $2 AND entry_type = 'L'))`,
		q.Period.Start, q.Period.End())
	if err != nil {
		return set, err
	}
	set.Records = records

	if q.Category != payments.CategoryManufacturer {
		return set, nil
	}
	history, err := r.loadRecords(ctx, table, q, `
	AND period_start >= $2 AND period_start < $3`,
		q.Period.Start.AddDate(0, -12, 0), q.Period.Start)
	if err != nil {
		return set, err
	}
	set.History = history
	targets, err := r.loadTargets(ctx, q)
	if err != nil {
		return set, err
	}
	set.Targets = targets
	return set, nil
}

func (r *Reader) loadRecords(ctx context.Context, table string, q payments.SourceQuery, window string, from, to any) ([]payments.SourceRecord, error) {
	query := fmt.Sprintf(`
SELECT id, scheme_id, participant_id, participant_name, material_id, payment_type, payment_method,
	period_type, period, period_start, entry_type, volume, unit
FROM %s
WHERE scheme_id = $1`, table) + window + `
ORDER BY period_start ASC, participant_id ASC, material_id ASC`
	rows, err := r.db.QueryContext(ctx, query, q.SchemeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payments.SourceRecord
	for rows.Next() {
		var rec payments.SourceRecord
		var periodType, entryType string
		if err := rows.Scan(&rec.ID, &rec.SchemeID, &rec.ParticipantID, &rec.ParticipantName, &rec.MaterialID,
			&rec.PaymentType, &rec.PaymentMethod, &periodType, &rec.Period, &rec.PeriodStart, &entryType,
			&rec.Volume, &rec.Unit); err != nil {
			return nil, err
		}
		if !q.Participants.Allows(rec.ParticipantID) {
			continue
		}
		rec.PeriodType = payments.PeriodType(periodType)
		rec.EntryType = payments.EntryType(entryType)
		rec.PeriodStart = rec.PeriodStart.UTC()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Reader) loadLots(ctx context.Context, q payments.SourceQuery) ([]payments.AuctionLot, error) {
	query := fmt.Sprintf(`
SELECT lot_id, manifest_id, scheme_id, seller_id, seller_name, seller_category, buyer_id, buyer_name,
	material_id, sale_price, actual_weight, period, period_start
FROM %s
WHERE scheme_id = $1 AND ($2 = '' OR lot_id = $2) AND ($3 = '' OR manifest_id = $3)
	AND period_start < $4
ORDER BY lot_id ASC`, r.lotsTable)
	rows, err := r.db.QueryContext(ctx, query, q.SchemeID, q.AuctionLotID, q.ManifestID, q.Period.End())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payments.AuctionLot
	for rows.Next() {
		var lot payments.AuctionLot
		var sellerCategory string
		if err := rows.Scan(&lot.LotID, &lot.ManifestID, &lot.SchemeID, &lot.SellerID, &lot.SellerName, &sellerCategory,
			&lot.BuyerID, &lot.BuyerName, &lot.MaterialID, &lot.SalePrice, &lot.ActualWeight, &lot.Period, &lot.PeriodStart); err != nil {
			return nil, err
		}
		if !q.Participants.Allows(lot.SellerID) {
			continue
		}
		lot.SellerCategory = payments.ParticipantCategory(sellerCategory)
		lot.PeriodStart = lot.PeriodStart.UTC()
		result = append(result, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Reader) loadTargets(ctx context.Context, q payments.SourceQuery) ([]payments.Participant, error) {
	query := fmt.Sprintf(`
SELECT participant_id, name, scheme_id, COALESCE(array_to_string(materials, ','), '')
FROM %s
WHERE scheme_id = $1 AND category = $2 AND active
ORDER BY participant_id ASC`, r.participantsTable)
	rows, err := r.db.QueryContext(ctx, query, q.SchemeID, string(payments.CategoryManufacturer))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payments.Participant
	for rows.Next() {
		var p payments.Participant
		var materials string
		if err := rows.Scan(&p.ID, &p.Name, &p.SchemeID, &materials); err != nil {
			return nil, err
		}
		if !q.Participants.Allows(p.ID) {
			continue
		}
		if materials != "" {
			p.Materials = strings.Split(materials, ",")
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
