package integration_test

import (
	"context"
	"errors"
	"testing"

	"stewardship-cloud/internal/payments/application"
	payments "stewardship-cloud/internal/payments/domain"
)

func TestTransitions_ReviewWorkflow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ref.AddRates(rate(payments.RateKindProcessorRate, "PET", "1.00"))
	h.sources.AddRecords(payments.CategoryProcessor,
		record("c-1", "proc-1", "PET", month(3), payments.EntryRegular, "10"),
		record("c-2", "proc-2", "PET", month(3), payments.EntryRegular, "20"),
	)
	if _, err := h.service.Compute(ctx, application.ComputeRequest{SchemeID: testScheme, Category: "PROCESSOR"}); err != nil {
		t.Fatalf("compute: %v", err)
	}

	svc, err := application.NewTransitionService(h.store, nil)
	if err != nil {
		t.Fatalf("transition service: %v", err)
	}
	result, err := svc.Apply(ctx, application.TransitionRequest{
		SchemeID: testScheme,
		Category: "PROCESSOR",
		Items: []application.TransitionItem{
			{ParticipantID: "proc-1", NewStatus: "AWAITING_APPROVAL"},
			{ParticipantID: "proc-2", NewStatus: "AWAITING_INVOICING"},
			{ParticipantID: "proc-9", NewStatus: "HOLD"},
		},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Updated != 1 || result.Skipped != 1 {
		t.Fatalf("updated=%d skipped=%d", result.Updated, result.Skipped)
	}
	want := map[string]string{
		"proc-1": application.TransitionUpdated,
		"proc-2": application.TransitionInvalid,
		"proc-9": application.TransitionNoLiveFacts,
	}
	for id, outcome := range want {
		if result.Outcomes[id] != outcome {
			t.Fatalf("%s outcome = %s want %s", id, result.Outcomes[id], outcome)
		}
	}
	if approved := h.facts(t, payments.CategoryProcessor, payments.FactAwaitingApproval); len(approved) != 1 || approved[0].ParticipantID != "proc-1" {
		t.Fatalf("expected proc-1 awaiting approval")
	}
}

func TestTransitions_RecomputeStalesHeldFact(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.ref.AddRates(rate(payments.RateKindProcessorRate, "PET", "1.00"))
	h.sources.AddRecords(payments.CategoryProcessor, record("c-1", "proc-1", "PET", month(3), payments.EntryRegular, "10"))
	if _, err := h.service.Compute(ctx, application.ComputeRequest{SchemeID: testScheme, Category: "PROCESSOR"}); err != nil {
		t.Fatalf("compute: %v", err)
	}
	svc, _ := application.NewTransitionService(h.store, nil)
	if _, err := svc.Apply(ctx, application.TransitionRequest{
		SchemeID: testScheme,
		Category: "PROCESSOR",
		Items:    []application.TransitionItem{{ParticipantID: "proc-1", NewStatus: "HOLD"}},
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := h.service.Compute(ctx, application.ComputeRequest{SchemeID: testScheme, Category: "PROCESSOR"}); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if held := h.facts(t, payments.CategoryProcessor, payments.FactHold); len(held) != 0 {
		t.Fatalf("held fact should be stale after recompute")
	}
	if live := h.facts(t, payments.CategoryProcessor, payments.FactAwaitingReview); len(live) != 1 {
		t.Fatalf("expected 1 live fact, got %d", len(live))
	}
}

func TestTransitions_RejectsUnknownStatus(t *testing.T) {
	h := newHarness(t)
	svc, _ := application.NewTransitionService(h.store, nil)
	_, err := svc.Apply(context.Background(), application.TransitionRequest{
		SchemeID: testScheme,
		Category: "PROCESSOR",
		Items:    []application.TransitionItem{{ParticipantID: "proc-1", NewStatus: "PAID"}},
	})
	if !errors.Is(err, payments.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
