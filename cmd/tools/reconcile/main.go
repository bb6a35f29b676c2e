package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"stewardship-cloud/internal/payments/adapters/sources"
	paymentsapp "stewardship-cloud/internal/payments/application"
	payments "stewardship-cloud/internal/payments/domain"
	paymentsrepo "stewardship-cloud/internal/payments/infrastructure/postgres"
)

const timeLayout = time.RFC3339

type config struct {
	dbURL         string
	schemeID      string
	participantID string
	periodType    string
	period        string
	outDir        string
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	period, err := payments.ParsePeriod(payments.PeriodType(strings.ToUpper(cfg.periodType)), cfg.period)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ctx := context.Background()
	store := paymentsrepo.NewStore(db)
	service, err := paymentsapp.NewReconciliationService(store.Forecasts(), sources.NewReader(db))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	participants, err := forecastParticipants(ctx, store.Forecasts(), cfg.schemeID, cfg.participantID, period)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load forecast headers:", err)
		os.Exit(2)
	}

	var lines []paymentsapp.ReconciliationLine
	for _, participantID := range participants {
		result, err := service.Reconcile(ctx, cfg.schemeID, participantID, period)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reconcile %s: %v\n", participantID, err)
			os.Exit(2)
		}
		lines = append(lines, result...)
	}

	facts, err := loadFacts(ctx, store.Facts(), cfg.schemeID, cfg.participantID, period)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load facts:", err)
		os.Exit(2)
	}

	if err := writeReconciliation(cfg.outDir, lines); err != nil {
		fmt.Fprintln(os.Stderr, "write reconciliation:", err)
		os.Exit(2)
	}
	if err := writeFacts(cfg.outDir, facts); err != nil {
		fmt.Fprintln(os.Stderr, "write facts:", err)
		os.Exit(2)
	}

	undeclared := 0
	for _, line := range lines {
		if !line.Declared {
			undeclared++
		}
	}
	fmt.Printf("Reconciled %d forecast lines for %d participants (%d undeclared)\n", len(lines), len(participants), undeclared)
	fmt.Printf("Reconciliation outputs written to %s\n", cfg.outDir)
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.schemeID, "scheme", getenvDefault("SCHEME_ID", ""), "scheme id")
	flag.StringVar(&cfg.participantID, "participant", "", "manufacturer id (optional, default all forecast participants)")
	flag.StringVar(&cfg.periodType, "period-type", string(payments.PeriodMonth), "MONTH or QUARTER")
	flag.StringVar(&cfg.period, "period", "", "period value, YYYY-MM or YYYY-Qn")
	flag.StringVar(&cfg.outDir, "out", "./out", "output directory")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	if cfg.schemeID == "" {
		return cfg, errors.New("missing --scheme or SCHEME_ID")
	}
	if cfg.period == "" {
		return cfg, errors.New("missing --period")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func forecastParticipants(ctx context.Context, repo payments.ForecastRepository, schemeID, participantID string, period payments.Period) ([]string, error) {
	if participantID != "" {
		return []string{participantID}, nil
	}
	headers, err := repo.ListHeaders(ctx, schemeID, "", period.Value)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(headers))
	var ids []string
	for _, h := range headers {
		if _, ok := seen[h.ParticipantID]; ok {
			continue
		}
		seen[h.ParticipantID] = struct{}{}
		ids = append(ids, h.ParticipantID)
	}
	sort.Strings(ids)
	return ids, nil
}

func loadFacts(ctx context.Context, repo payments.FactRepository, schemeID, participantID string, period payments.Period) ([]*payments.TransactionFact, error) {
	filter := payments.FactFilter{SchemeID: schemeID, Category: payments.CategoryManufacturer}
	if participantID != "" {
		filter.Participants = payments.ParticipantFilter{IDs: []string{participantID}}
	}
	facts, err := repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	result := facts[:0]
	for _, f := range facts {
		if f.Period == period.Value {
			result = append(result, f)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].ParticipantID != result[j].ParticipantID {
			return result[i].ParticipantID < result[j].ParticipantID
		}
		if result[i].MaterialID != result[j].MaterialID {
			return result[i].MaterialID < result[j].MaterialID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func writeReconciliation(outDir string, rows []paymentsapp.ReconciliationLine) error {
	path := filepath.Join(outDir, "forecast_reconciliation.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"participant_id",
		"material_id",
		"period",
		"forecast_volume",
		"actual_volume",
		"difference",
		"declared",
	}); err != nil {
		return err
	}

	for _, row := range rows {
		if err := writer.Write([]string{
			row.ParticipantID,
			row.MaterialID,
			row.Period,
			row.ForecastVolume.String(),
			row.ActualVolume.String(),
			row.Difference.String(),
			formatBool(row.Declared),
		}); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeFacts(outDir string, rows []*payments.TransactionFact) error {
	path := filepath.Join(outDir, "manufacturer_facts.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{
		"fact_id",
		"batch_id",
		"participant_id",
		"material_id",
		"period",
		"entry_type",
		"volume",
		"unit_price",
		"gross_amount",
		"tax_amount",
		"arrears",
		"status",
		"created_at",
	}); err != nil {
		return err
	}

	for _, row := range rows {
		if err := writer.Write([]string{
			row.ID,
			row.BatchID,
			row.ParticipantID,
			row.MaterialID,
			row.Period,
			string(row.EntryType),
			row.Volume.String(),
			row.UnitPrice.String(),
			row.GrossAmount.String(),
			row.TaxAmount.String(),
			row.Arrears,
			string(row.Status),
			formatTime(row.CreatedAt),
		}); err != nil {
			return err
		}
	}
	return writer.Error()
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatBool(value bool) string {
	if value {
		return "Y"
	}
	return "N"
}
