package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stewardship-cloud/internal/payments/application"
	payments "stewardship-cloud/internal/payments/domain"
)

func TestManufacturer_ForecastsAbsentParticipants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ref.AddRates(rate(payments.RateKindManufacturerFee, "PET", "2.00"))
	h.ref.AddSeasonality(payments.SeasonalityIndex{MaterialID: "PET", Period: "2026-03", Index: decimal.NewFromInt(1)})
	h.sources.AddTargets(
		payments.Participant{ID: "man-1", Name: "Bottler One", SchemeID: testScheme, Materials: []string{"PET"}},
		payments.Participant{ID: "man-2", Name: "Bottler Two", SchemeID: testScheme, Materials: []string{"PET"}},
		payments.Participant{ID: "man-3", Name: "Bottler Three", SchemeID: testScheme, Materials: []string{"PET"}},
	)
	h.sources.AddRecords(payments.CategoryManufacturer,
		record("h-1", "man-1", "PET", month(12), payments.EntryRegular, "90"),
		record("h-2", "man-1", "PET", month(1), payments.EntryRegular, "100"),
		record("h-3", "man-1", "PET", month(2), payments.EntryRegular, "110"),
		record("h-4", "man-2", "PET", month(1), payments.EntryRegular, "100"),
		record("h-5", "man-2", "PET", month(2), payments.EntryRegular, "100"),
		record("d-1", "man-3", "PET", month(3), payments.EntryForecast, "10"),
	)

	summary, err := h.service.Compute(ctx, application.ComputeRequest{SchemeID: testScheme, Category: "MANUFACTURER"})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if summary.Status != payments.BatchSuccess {
		t.Fatalf("status = %s (%s)", summary.Status, summary.Error)
	}

	facts := h.facts(t, payments.CategoryManufacturer)
	byParticipant := make(map[string]*payments.TransactionFact)
	for _, f := range facts {
		byParticipant[f.ParticipantID] = f
	}
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}

	declared := byParticipant["man-3"]
	if declared == nil || declared.EntryType != payments.EntryRegular {
		t.Fatalf("declared forecast entry not reclassified: %+v", declared)
	}
	assertAmount(t, "declared gross", declared.GrossAmount, "20.00")

	forecast := byParticipant["man-1"]
	if forecast == nil {
		t.Fatalf("expected forecast for man-1")
	}
	if forecast.EntryType != payments.EntryForecast || forecast.Period != "2026-03" {
		t.Fatalf("entry=%s period=%s", forecast.EntryType, forecast.Period)
	}
	assertAmount(t, "forecast volume", forecast.Volume, "100")
	assertAmount(t, "forecast gross", forecast.GrossAmount, "200.00")

	if _, ok := byParticipant["man-2"]; ok {
		t.Fatalf("man-2 has two periods of history and must not be forecast")
	}

	headers, err := h.store.ListHeaders(ctx, testScheme, "man-1", "2026-03")
	if err != nil {
		t.Fatalf("list headers: %v", err)
	}
	if len(headers) != 1 || len(headers[0].Lines) != 1 || headers[0].Lines[0].FactID != forecast.ID {
		t.Fatalf("unexpected forecast headers: %+v", headers)
	}
	if headers, _ := h.store.ListHeaders(ctx, testScheme, "man-2", "2026-03"); len(headers) != 0 {
		t.Fatalf("expected no header for man-2")
	}
}

func TestManufacturer_MissingSeasonalityUsesSchemeDefault(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ref.AddRates(rate(payments.RateKindManufacturerFee, "PET", "2.00"))
	h.sources.AddTargets(payments.Participant{ID: "man-1", SchemeID: testScheme, Materials: []string{"PET"}})
	h.sources.AddRecords(payments.CategoryManufacturer,
		record("h-1", "man-1", "PET", month(12), payments.EntryRegular, "90"),
		record("h-2", "man-1", "PET", month(1), payments.EntryRegular, "100"),
		record("h-3", "man-1", "PET", month(2), payments.EntryRegular, "110"),
	)

	if _, err := h.service.Compute(ctx, application.ComputeRequest{SchemeID: testScheme, Category: "MANUFACTURER"}); err != nil {
		t.Fatalf("compute: %v", err)
	}
	// the default index is zero unless configured, so the forecast is suppressed
	if facts := h.facts(t, payments.CategoryManufacturer); len(facts) != 0 {
		t.Fatalf("expected no facts, got %d", len(facts))
	}
}

func TestMeanRecentVolume_Floor(t *testing.T) {
	target, err := payments.ParsePeriod(payments.PeriodMonth, "2026-03")
	if err != nil {
		t.Fatalf("parse period: %v", err)
	}
	history := []payments.SourceRecord{
		record("a", "man-1", "PET", month(2), payments.EntryRegular, "30"),
		record("b", "man-1", "PET", month(1), payments.EntryLate, "60"),
		record("c", "man-1", "PET", month(12), payments.EntryRegular, "90"),
		// excluded: forecast entry, outside window, other material
		record("d", "man-1", "PET", month(11), payments.EntryForecast, "1000"),
		record("e", "man-1", "PET", time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), payments.EntryRegular, "1000"),
		record("f", "man-1", "CAN", month(10), payments.EntryRegular, "1000"),
	}
	for n := 0; n < 3; n++ {
		if _, ok := application.MeanRecentVolume(history[:n], "man-1", "PET", target); ok {
			t.Fatalf("expected no forecast with %d periods", n)
		}
	}
	mean, ok := application.MeanRecentVolume(history, "man-1", "PET", target)
	if !ok {
		t.Fatalf("expected forecast with three periods")
	}
	assertAmount(t, "mean", mean, "60")

	// three records of a single month are one period
	single := []payments.SourceRecord{
		record("j-1", "man-1", "PET", month(1), payments.EntryRegular, "30"),
		record("j-2", "man-1", "PET", month(1), payments.EntryRegular, "40"),
		record("j-3", "man-1", "PET", month(1), payments.EntryLate, "50"),
	}
	if _, ok := application.MeanRecentVolume(single, "man-1", "PET", target); ok {
		t.Fatalf("expected no forecast from one period of history")
	}
}

func TestMeanRecentVolume_SumsEntriesPerPeriod(t *testing.T) {
	target, _ := payments.ParsePeriod(payments.PeriodMonth, "2026-03")
	var history []payments.SourceRecord
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		period := start.AddDate(0, i, 0)
		history = append(history,
			record("r", "man-1", "PET", period, payments.EntryRegular, "12"),
			record("l", "man-1", "PET", period, payments.EntryLate, "12"),
		)
	}
	// outside the window
	history = append(history, record("o", "man-1", "PET", start.AddDate(0, -1, 0), payments.EntryRegular, "1000"))

	mean, ok := application.MeanRecentVolume(history, "man-1", "PET", target)
	if !ok {
		t.Fatalf("expected forecast")
	}
	assertAmount(t, "mean", mean, "24")
}

func TestReconcile_ForecastAgainstDeclaration(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ref.AddRates(rate(payments.RateKindManufacturerFee, "PET", "2.00"))
	h.ref.AddSeasonality(payments.SeasonalityIndex{MaterialID: "PET", Period: "2026-03", Index: decimal.NewFromInt(1)})
	h.sources.AddTargets(payments.Participant{ID: "man-1", SchemeID: testScheme, Materials: []string{"PET"}})
	h.sources.AddRecords(payments.CategoryManufacturer,
		record("h-1", "man-1", "PET", month(12), payments.EntryRegular, "90"),
		record("h-2", "man-1", "PET", month(1), payments.EntryRegular, "100"),
		record("h-3", "man-1", "PET", month(2), payments.EntryRegular, "110"),
	)
	if _, err := h.service.Compute(ctx, application.ComputeRequest{SchemeID: testScheme, Category: "MANUFACTURER"}); err != nil {
		t.Fatalf("compute: %v", err)
	}

	h.sources.AddRecords(payments.CategoryManufacturer, record("d-1", "man-1", "PET", month(3), payments.EntryRegular, "120"))
	svc, err := application.NewReconciliationService(h.store, h.sources)
	if err != nil {
		t.Fatalf("reconciliation service: %v", err)
	}
	period, _ := payments.ParsePeriod(payments.PeriodMonth, "2026-03")
	lines, err := svc.Reconcile(ctx, testScheme, "man-1", period)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !lines[0].Declared {
		t.Fatalf("expected declared")
	}
	assertAmount(t, "forecast", lines[0].ForecastVolume, "100")
	assertAmount(t, "actual", lines[0].ActualVolume, "120")
	assertAmount(t, "difference", lines[0].Difference, "20")
}
