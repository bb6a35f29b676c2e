package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"stewardship-cloud/internal/auth"
	payments "stewardship-cloud/internal/payments/domain"
	"stewardship-cloud/internal/payments/infrastructure/pricing"
)

var sourceTables = map[payments.ParticipantCategory]string{
	payments.CategoryManufacturer:    "manufacturer_declarations",
	payments.CategoryProcessor:       "processor_claims",
	payments.CategoryCollectionPoint: "collection_point_claims",
	payments.CategoryExporter:        "exporter_claims",
	payments.CategoryMRF:             "mrf_volume_reports",
}

var rateKinds = map[payments.ParticipantCategory]string{
	payments.CategoryManufacturer:    payments.RateKindManufacturerFee,
	payments.CategoryProcessor:       payments.RateKindProcessorRate,
	payments.CategoryCollectionPoint: payments.RateKindCollectionRate,
	payments.CategoryExporter:        payments.RateKindExporterRate,
	payments.CategoryMRF:             payments.RateKindMRFRate,
}

type config struct {
	dsn               string
	baseURL           string
	token             string
	jwtSecret         string
	schemeID          string
	category          string
	participantPrefix string
	participantCount  int
	materials         string
	period            string
	rate              string
	seedRates         bool
	seedRecords       bool
	compute           bool
	batchIDsOut       string
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.participantCount <= 0 {
		log.Fatal("participant-count must be > 0")
	}
	category, ok := payments.ParseCategory(cfg.category)
	if !ok || category == payments.CategoryAuction {
		log.Fatalf("unsupported category %q", cfg.category)
	}
	period, err := parsePeriod(cfg.period)
	if err != nil {
		log.Fatalf("invalid period: %v", err)
	}
	rate, err := decimal.NewFromString(cfg.rate)
	if err != nil {
		log.Fatalf("invalid rate: %v", err)
	}

	participantIDs := buildParticipantIDs(cfg.participantPrefix, cfg.participantCount)
	materials := splitList(cfg.materials)
	if len(materials) == 0 {
		log.Fatal("materials must not be empty")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if cfg.seedRates {
		log.Printf("seeding reference_rates: scheme=%s kind=%s materials=%d", cfg.schemeID, rateKinds[category], len(materials))
		if err := seedRates(ctx, pricing.NewReferenceDataStore(db), cfg.schemeID, rateKinds[category], materials, rate, period); err != nil {
			log.Fatalf("seed rates: %v", err)
		}
	}

	if cfg.seedRecords {
		log.Printf("seeding %s: participants=%d materials=%d period=%s", sourceTables[category], len(participantIDs), len(materials), period.Value)
		if err := seedRecords(ctx, db, sourceTables[category], cfg.schemeID, participantIDs, materials, period); err != nil {
			log.Fatalf("seed records: %v", err)
		}
	}

	if cfg.compute {
		if cfg.baseURL == "" {
			log.Fatal("base-url is required when compute is enabled")
		}
		if cfg.token == "" && cfg.jwtSecret != "" {
			cfg.token, err = auth.SignToken(auth.Identity{
				SchemeID:   cfg.schemeID,
				Role:       auth.RoleOperator,
				Subject:    "perf-seed",
				Categories: []string{string(category)},
			}, []byte(cfg.jwtSecret), time.Hour)
			if err != nil {
				log.Fatalf("sign token: %v", err)
			}
		}
		log.Printf("computing payments: category=%s period=%s participants=%d", category, period.Value, len(participantIDs))
		ids, err := computeBatches(ctx, cfg.baseURL, cfg.token, cfg.schemeID, category, participantIDs, period.Value)
		if err != nil {
			log.Fatalf("compute: %v", err)
		}
		if cfg.batchIDsOut != "" {
			if err := writeLines(cfg.batchIDsOut, ids); err != nil {
				log.Fatalf("write batch ids: %v", err)
			}
			log.Printf("batch ids written to %s", cfg.batchIDsOut)
		}
	}

	log.Printf("perf seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.baseURL, "base-url", envOrDefault("BASE_URL", ""), "API base URL for payment computation")
	flag.StringVar(&cfg.token, "token", envOrDefault("API_TOKEN", ""), "bearer token for the API")
	flag.StringVar(&cfg.jwtSecret, "jwt-secret", envOrDefault("JWT_SECRET", ""), "mint an operator token with this secret when no token is given")
	flag.StringVar(&cfg.schemeID, "scheme-id", envOrDefault("SCHEME_ID", "scheme-demo"), "scheme id")
	flag.StringVar(&cfg.category, "category", envOrDefault("CATEGORY", string(payments.CategoryProcessor)), "participant category")
	flag.StringVar(&cfg.participantPrefix, "participant-prefix", envOrDefault("PARTICIPANT_PREFIX", "perf-"), "participant id prefix")
	flag.IntVar(&cfg.participantCount, "participant-count", envOrInt("PARTICIPANT_COUNT", 10), "number of participants to seed")
	flag.StringVar(&cfg.materials, "materials", envOrDefault("MATERIALS", "PET,HDPE,GLASS"), "comma separated material ids")
	flag.StringVar(&cfg.period, "period", envOrDefault("PERIOD", ""), "period (YYYY-MM), default current month")
	flag.StringVar(&cfg.rate, "rate", envOrDefault("RATE", "2.50"), "scheme-wide rate per unit")
	flag.BoolVar(&cfg.seedRates, "seed-rates", envOrBool("SEED_RATES", true), "seed scheme-wide reference rates")
	flag.BoolVar(&cfg.seedRecords, "seed-records", envOrBool("SEED_RECORDS", true), "seed source records")
	flag.BoolVar(&cfg.compute, "compute", envOrBool("COMPUTE", false), "compute payments via API per participant")
	flag.StringVar(&cfg.batchIDsOut, "batch-ids-out", envOrDefault("BATCH_IDS_OUT", ""), "output file for batch IDs")
	flag.Parse()
	return cfg
}

func parsePeriod(value string) (payments.Period, error) {
	if strings.TrimSpace(value) == "" {
		return payments.PeriodContaining(time.Now().UTC(), payments.PeriodMonth), nil
	}
	return payments.ParsePeriod(payments.PeriodMonth, value)
}

func buildParticipantIDs(prefix string, count int) []string {
	list := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		list = append(list, fmt.Sprintf("%s%04d", prefix, i))
	}
	return list
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func seedRates(ctx context.Context, store *pricing.ReferenceDataStore, schemeID, kind string, materials []string, value decimal.Decimal, period payments.Period) error {
	for _, material := range materials {
		if err := store.InsertRate(ctx, payments.ReferenceRate{
			SchemeID:      schemeID,
			Kind:          kind,
			MaterialID:    material,
			Value:         value,
			EffectiveFrom: period.Start,
		}); err != nil {
			return fmt.Errorf("rate %s: %w", material, err)
		}
	}
	return nil
}

func seedRecords(ctx context.Context, db *sql.DB, table, schemeID string, participants, materials []string, period payments.Period) error {
	insertSQL := fmt.Sprintf(`
INSERT INTO %s (
	id,
	scheme_id,
	participant_id,
	participant_name,
	material_id,
	payment_type,
	payment_method,
	period_type,
	period,
	period_start,
	entry_type,
	volume,
	unit
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, table)

	for idx, participantID := range participants {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		base := int64((idx % 10) + 1)
		for m, material := range materials {
			volume := decimal.NewFromInt(base*100 + int64(m+1)*10)
			if _, err := stmt.ExecContext(
				ctx,
				uuid.NewString(),
				schemeID,
				participantID,
				"Participant "+participantID,
				material,
				"STANDARD",
				"EFT",
				string(period.Type),
				period.Value,
				period.Start,
				string(payments.EntryRegular),
				volume,
				"KG",
			); err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				return err
			}
		}
		if err := stmt.Close(); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Printf("seeded records participant %s (%d/%d)", participantID, idx+1, len(participants))
	}
	return nil
}

func computeBatches(ctx context.Context, baseURL, token, schemeID string, category payments.ParticipantCategory, participants []string, period string) ([]string, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("base url required")
	}
	client := &http.Client{Timeout: 60 * time.Second}
	baseURL = strings.TrimRight(baseURL, "/")
	ids := make([]string, 0, len(participants))
	for _, participantID := range participants {
		body := map[string]any{
			"schemeId":       schemeID,
			"category":       string(category),
			"participantIds": []string{participantID},
			"period":         period,
		}
		payload, _ := json.Marshal(body)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/payments/compute", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		var respBody payments.ExecutionSummary
		if resp.StatusCode >= 300 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("compute failed for %s: http %d", participantID, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
			_ = resp.Body.Close()
			return nil, err
		}
		_ = resp.Body.Close()
		if respBody.BatchID == "" {
			return nil, fmt.Errorf("empty batch id for %s", participantID)
		}
		if respBody.Status != payments.BatchSuccess {
			log.Printf("batch %s for %s finished %s: %s", respBody.BatchID, participantID, respBody.Status, respBody.Error)
		}
		ids = append(ids, respBody.BatchID)
	}
	return ids, nil
}

func writeLines(path string, lines []string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	content := strings.Join(lines, "\n")
	return os.WriteFile(path, []byte(content), 0o644)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envOrBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
