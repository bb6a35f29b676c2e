package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"stewardship-cloud/internal/payments/adapters/sources"
	"stewardship-cloud/internal/payments/application"
	payments "stewardship-cloud/internal/payments/domain"
	paymentspg "stewardship-cloud/internal/payments/infrastructure/postgres"
	"stewardship-cloud/internal/payments/infrastructure/pricing"
	"stewardship-cloud/internal/scheme"
)

func TestCompute_ProcessorClaims_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	for _, table := range []string{"payment_batches", "payment_transactions", "processor_claims", "reference_rates"} {
		if !tableExists(db, table) {
			t.Skip("missing tables; run migrations")
		}
	}

	ctx := context.Background()
	schemeID := "scheme-pg-" + time.Now().UTC().Format("20060102150405.000")
	defer func() {
		_, _ = db.ExecContext(ctx, "DELETE FROM payment_transactions WHERE scheme_id = $1", schemeID)
		_, _ = db.ExecContext(ctx, "DELETE FROM payment_batches WHERE scheme_id = $1", schemeID)
		_, _ = db.ExecContext(ctx, "DELETE FROM processor_claims WHERE scheme_id = $1", schemeID)
		_, _ = db.ExecContext(ctx, "DELETE FROM reference_rates WHERE scheme_id = $1", schemeID)
	}()

	ref := pricing.NewReferenceDataStore(db)
	r := rate(payments.RateKindProcessorRate, "PET", "2.50")
	r.SchemeID = schemeID
	if err := ref.InsertRate(ctx, r); err != nil {
		t.Fatalf("insert rate: %v", err)
	}
	insertClaim := func(id, volume string) {
		t.Helper()
		_, err := db.ExecContext(ctx, `
INSERT INTO processor_claims (
	id, scheme_id, participant_id, participant_name, material_id, payment_type, payment_method,
	period_type, period, period_start, entry_type, volume, unit
) VALUES ($1,$2,'proc-1','Processor One','PET','','EFT','MONTH','2026-03',$3,'R',$4,'kg')
ON CONFLICT (id) DO UPDATE SET volume = EXCLUDED.volume`, id, schemeID, month(3), volume)
		if err != nil {
			t.Fatalf("insert claim: %v", err)
		}
	}
	insertClaim(schemeID+"-c1", "100")

	clock := fixedClock{now: time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)}
	store := paymentspg.NewStore(db)
	registry, err := application.NewDefaultRegistry(ref, clock, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	service, err := application.NewComputeService(store.Batches(), store, sources.NewReader(db), registry, scheme.DefaultConfig(), nil, application.WithClock(clock))
	if err != nil {
		t.Fatalf("compute service: %v", err)
	}

	first, err := service.Compute(ctx, application.ComputeRequest{SchemeID: schemeID, Category: "PROCESSOR"})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if first.Status != payments.BatchSuccess {
		t.Fatalf("status = %s (%s)", first.Status, first.Error)
	}
	assertAmount(t, "first total", first.TotalAmount, "250.00")

	insertClaim(schemeID+"-c1", "120")
	second, err := service.Compute(ctx, application.ComputeRequest{SchemeID: schemeID, Category: "PROCESSOR"})
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	assertAmount(t, "second total", second.TotalAmount, "300.00")

	facts, err := store.Facts().List(ctx, payments.FactFilter{SchemeID: schemeID, Category: payments.CategoryProcessor})
	if err != nil {
		t.Fatalf("list facts: %v", err)
	}
	var live, stale int
	for _, f := range facts {
		switch f.Status {
		case payments.FactAwaitingReview:
			live++
		case payments.FactStale:
			stale++
		}
	}
	if live != 1 || stale != 1 {
		t.Fatalf("live=%d stale=%d", live, stale)
	}

	batch, err := store.Batches().Get(ctx, second.BatchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.Status() != payments.BatchSuccess {
		t.Fatalf("batch status = %s", batch.Status())
	}
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", name).Scan(&exists)
	return err == nil && exists
}
