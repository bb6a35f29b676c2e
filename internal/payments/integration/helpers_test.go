package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stewardship-cloud/internal/payments/application"
	payments "stewardship-cloud/internal/payments/domain"
	"stewardship-cloud/internal/payments/infrastructure/memory"
	"stewardship-cloud/internal/payments/infrastructure/pricing"
	"stewardship-cloud/internal/scheme"
)

const testScheme = "scheme-za-pack"

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type harness struct {
	store   *memory.Store
	sources *memory.Sources
	ref     *pricing.StaticReferenceData
	rules   scheme.Config
	clock   fixedClock
	service *application.ComputeService
}

func newHarness(t *testing.T, opts ...application.ComputeOption) *harness {
	t.Helper()
	h := &harness{
		store:   memory.NewStore(),
		sources: memory.NewSources(),
		ref:     pricing.NewStaticReferenceData(),
		rules:   scheme.DefaultConfig(),
		clock:   fixedClock{now: time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)},
	}
	registry, err := application.NewDefaultRegistry(h.ref, h.clock, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	opts = append([]application.ComputeOption{application.WithClock(h.clock)}, opts...)
	service, err := application.NewComputeService(h.store, h.store, h.sources, registry, h.rules, nil, opts...)
	if err != nil {
		t.Fatalf("compute service: %v", err)
	}
	h.service = service
	return h
}

func (h *harness) facts(t *testing.T, category payments.ParticipantCategory, statuses ...payments.FactStatus) []*payments.TransactionFact {
	t.Helper()
	facts, err := h.store.List(context.Background(), payments.FactFilter{
		SchemeID: testScheme,
		Category: category,
		Statuses: statuses,
	})
	if err != nil {
		t.Fatalf("list facts: %v", err)
	}
	return facts
}

func month(m time.Month) time.Time {
	y := 2026
	if m > time.March {
		y = 2025
	}
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func periodValue(t time.Time) string {
	return t.Format("2006-01")
}

func rate(kind, material, value string) payments.ReferenceRate {
	return payments.ReferenceRate{
		SchemeID:      testScheme,
		Kind:          kind,
		MaterialID:    material,
		Value:         decimal.RequireFromString(value),
		EffectiveFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func record(id, participant, material string, start time.Time, entry payments.EntryType, volume string) payments.SourceRecord {
	return payments.SourceRecord{
		ID:            id,
		SchemeID:      testScheme,
		ParticipantID: participant,
		MaterialID:    material,
		PeriodType:    payments.PeriodMonth,
		Period:        periodValue(start),
		PeriodStart:   start,
		EntryType:     entry,
		Volume:        decimal.RequireFromString(volume),
		Unit:          "kg",
	}
}

func assertAmount(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s mismatch: got=%s want=%s", label, got.String(), want)
	}
}
