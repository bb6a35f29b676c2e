package integration_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stewardship-cloud/internal/invoicing/application"
	invoicing "stewardship-cloud/internal/invoicing/domain"
	paymentsapp "stewardship-cloud/internal/payments/application"
	payments "stewardship-cloud/internal/payments/domain"
	paymentsmemory "stewardship-cloud/internal/payments/infrastructure/memory"
	"stewardship-cloud/internal/payments/infrastructure/pricing"
)

func TestGenerate_ProcessorDocumentPerParticipant(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryProcessor, invoicing.DocumentPayable, false)
	h.seed(t,
		fact("f-1", "proc-1", payments.CategoryProcessor, payments.PaymentTypeProcessingFee, "PET", "250.00"),
		fact("f-2", "proc-1", payments.CategoryProcessor, payments.PaymentTypeProcessingFee, "HDPE", "100.00"),
		fact("f-3", "proc-2", payments.CategoryProcessor, payments.PaymentTypeProcessingFee, "PET", "300.00"),
	)

	result, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID: testScheme,
		Category: "PROCESSOR",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.InvoiceBatchID == "" || result.SchemeID != testScheme {
		t.Fatalf("unexpected result header: %+v", result)
	}
	if len(result.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(result.Documents))
	}

	first := result.Documents[0]
	if first.CounterpartyID != "proc-1" || first.Type != invoicing.DocumentPayable {
		t.Fatalf("unexpected first document: %+v", first)
	}
	if first.Classification != invoicing.ClassificationStandard {
		t.Fatalf("classification = %s", first.Classification)
	}
	if first.BusinessUnit != "BU-PROCESSOR" || first.LegalEntity != "LE-DEFAULT" || first.Currency != "ZAR" {
		t.Fatalf("unexpected attributes: %+v", first)
	}
	if len(first.Lines) != 2 || first.Lines[0].FactID != "f-1" || first.Lines[1].FactID != "f-2" {
		t.Fatalf("unexpected lines: %+v", first.Lines)
	}
	if first.Lines[0].TaxClassification != "VAT-STD" || first.Lines[0].Distribution != "DIST-PROCESSOR" {
		t.Fatalf("unexpected line attributes: %+v", first.Lines[0])
	}
	assertAmount(t, "proc-1 total", first.TotalAmount, "402.50")
	assertAmount(t, "proc-1 tax", first.TaxAmount, "52.50")
	assertAmount(t, "proc-2 total", result.Documents[1].TotalAmount, "345.00")

	for _, d := range result.Documents {
		if d.InvoiceBatchID != result.InvoiceBatchID {
			t.Fatalf("document %s not in batch", d.Number)
		}
		if !strings.HasPrefix(d.Number, "AP-") {
			t.Fatalf("payable number = %s", d.Number)
		}
	}
	if result.Documents[0].Number == result.Documents[1].Number {
		t.Fatalf("duplicate document number %s", result.Documents[0].Number)
	}
	for _, id := range []string{"f-1", "f-2", "f-3"} {
		if got := h.status(t, id); got != payments.FactInvoiced {
			t.Fatalf("fact %s status = %s", id, got)
		}
	}
}

func TestGenerate_IsolatesParticipantFailure(t *testing.T) {
	h := newHarness(t)
	key := invoicing.AttributeKey{SchemeID: testScheme, DocumentType: invoicing.DocumentPayable, Category: "PROCESSOR"}
	h.attributes.Add(invoicing.AttributeBusinessUnit, key, "BU-1")
	h.attributes.Add(invoicing.AttributeLegalEntity, key, "LE-1")
	h.attributes.Add(invoicing.AttributeDistributionLine, key, "DIST-1")
	petOnly := key
	petOnly.MaterialID = "PET"
	h.attributes.Add(invoicing.AttributeTaxClassification, petOnly, "VAT-STD")

	h.seed(t,
		fact("f-a", "proc-a", payments.CategoryProcessor, payments.PaymentTypeProcessingFee, "HDPE", "100.00"),
		fact("f-b", "proc-b", payments.CategoryProcessor, payments.PaymentTypeProcessingFee, "PET", "200.00"),
	)

	result, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID: testScheme,
		Category: "PROCESSOR",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "participant proc-a: ") {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if !strings.Contains(result.Errors[0], invoicing.ErrAttributeNotFound.Error()) {
		t.Fatalf("error lacks cause: %s", result.Errors[0])
	}
	if len(result.Documents) != 1 || result.Documents[0].CounterpartyID != "proc-b" {
		t.Fatalf("unexpected documents: %+v", result.Documents)
	}
	if !strings.HasSuffix(result.Documents[0].Number, "-00001") {
		t.Fatalf("failed participant consumed a number: %s", result.Documents[0].Number)
	}
	if got := h.status(t, "f-a"); got != payments.FactAwaitingInvoicing {
		t.Fatalf("failed participant fact status = %s", got)
	}
	if got := h.status(t, "f-b"); got != payments.FactInvoiced {
		t.Fatalf("committed participant fact status = %s", got)
	}

	stored, err := h.docs.ListByBatch(context.Background(), result.InvoiceBatchID)
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored document, got %d", len(stored))
	}
}

func TestGenerate_NegativeAuctionLotWithMRFSeller(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryAuction, invoicing.DocumentPayable, false)
	h.seedAttributes(payments.CategoryAuction, invoicing.DocumentReceivable, true)
	h.attributes.Add(invoicing.AttributeDistributionLine, invoicing.AttributeKey{
		SchemeID:     testScheme,
		DocumentType: invoicing.DocumentReceivable,
		Category:     "AUCTION",
		PaymentType:  invoicing.DistributionPlatformFee,
		PlatformFee:  true,
	}, "DIST-PLATFORM-FEE")
	h.seed(t,
		auctionFact("lot-neg", "mrf-1", payments.CategoryMRF, "lot-9", "-1000.00"),
		auctionFact("lot-pos", "mrf-1", payments.CategoryMRF, "lot-10", "2000.00"),
	)

	result, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID: testScheme,
		Category: "AUCTION",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Documents) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(result.Documents))
	}

	positive := findDocument(t, result.Documents, func(d *invoicing.Document) bool { return d.AuctionLotID == "lot-10" })
	if positive.Type != invoicing.DocumentPayable || positive.CounterpartyID != "mrf-1" {
		t.Fatalf("unexpected positive lot document: %+v", positive)
	}
	assertAmount(t, "positive lot total", positive.TotalAmount, "2300.00")

	fee := findDocument(t, result.Documents, func(d *invoicing.Document) bool {
		return d.AuctionLotID == "lot-9" && d.Type == invoicing.DocumentReceivable
	})
	if fee.CounterpartyID != "mrf-1" {
		t.Fatalf("platform fee counterparty = %s", fee.CounterpartyID)
	}
	assertAmount(t, "platform fee", fee.TotalAmount, "100.00")
	if fee.Lines[0].Distribution != "DIST-PLATFORM-FEE" {
		t.Fatalf("platform fee distribution = %s", fee.Lines[0].Distribution)
	}
	if !strings.HasPrefix(fee.Number, "AR-") {
		t.Fatalf("receivable number = %s", fee.Number)
	}

	buyer := findDocument(t, result.Documents, func(d *invoicing.Document) bool { return d.CounterpartyID == "buyer-1" })
	if buyer.Type != invoicing.DocumentPayable || buyer.AuctionLotID != "lot-9" {
		t.Fatalf("unexpected buyer document: %+v", buyer)
	}
	assertAmount(t, "buyer total", buyer.TotalAmount, "1150.00")
	assertAmount(t, "buyer tax", buyer.TaxAmount, "150.00")

	for _, id := range []string{"lot-neg", "lot-pos"} {
		if got := h.status(t, id); got != payments.FactInvoiced {
			t.Fatalf("fact %s status = %s", id, got)
		}
	}
}

func TestGenerate_NegativeAuctionLotWithProcessorSeller(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryAuction, invoicing.DocumentPayable, false)
	h.seed(t, auctionFact("lot-neg", "proc-1", payments.CategoryProcessor, "lot-3", "-400.00"))

	result, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID:     testScheme,
		Category:     "AUCTION",
		AuctionLotID: "lot-3",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Documents) != 2 {
		t.Fatalf("expected seller and buyer documents, got %d", len(result.Documents))
	}
	seller := findDocument(t, result.Documents, func(d *invoicing.Document) bool { return d.CounterpartyID == "proc-1" })
	if seller.Type != invoicing.DocumentPayable || seller.Classification != invoicing.ClassificationStandard {
		t.Fatalf("unexpected seller document: %+v", seller)
	}
	assertAmount(t, "seller total", seller.TotalAmount, "0")
	buyer := findDocument(t, result.Documents, func(d *invoicing.Document) bool { return d.CounterpartyID == "buyer-1" })
	assertAmount(t, "buyer total", buyer.TotalAmount, "460.00")
}

func TestGenerate_SplitsByCounterpartyLegalEntity(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryCollectionPoint, invoicing.DocumentPayable, false)
	expired := relationship("cp-1", "GLASS", "LE-C", "EFT")
	expired.EffectiveTo = march.AddDate(0, -1, 0)
	h.relationships.Add(
		relationship("cp-1", "PET", "LE-A", "EFT"),
		relationship("cp-1", "CAN", "LE-A", "EFT"),
		relationship("cp-1", "HDPE", "LE-B", "EFT"),
		expired,
	)
	h.seed(t,
		fact("f-pet", "cp-1", payments.CategoryCollectionPoint, payments.PaymentTypeCollectionFee, "PET", "100.00"),
		fact("f-hdpe", "cp-1", payments.CategoryCollectionPoint, payments.PaymentTypeCollectionFee, "HDPE", "80.00"),
		fact("f-can", "cp-1", payments.CategoryCollectionPoint, payments.PaymentTypeCollectionFee, "CAN", "20.00"),
		fact("f-glass", "cp-1", payments.CategoryCollectionPoint, payments.PaymentTypeCollectionFee, "GLASS", "40.00"),
	)

	result, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID: testScheme,
		Category: "COLLECTION_POINT",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := "participant cp-1: material GLASS: no active counterparty relationship"
	if len(result.Errors) != 1 || result.Errors[0] != want {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(result.Documents))
	}
	leA := findDocument(t, result.Documents, func(d *invoicing.Document) bool { return d.LegalEntity == "LE-A" })
	if len(leA.Lines) != 2 || leA.PaymentMethod != "EFT" {
		t.Fatalf("unexpected LE-A document: %+v", leA)
	}
	assertAmount(t, "LE-A total", leA.TotalAmount, "138.00")
	leB := findDocument(t, result.Documents, func(d *invoicing.Document) bool { return d.LegalEntity == "LE-B" })
	assertAmount(t, "LE-B total", leB.TotalAmount, "92.00")

	if got := h.status(t, "f-glass"); got != payments.FactAwaitingInvoicing {
		t.Fatalf("unmatched fact status = %s", got)
	}
	if got := h.status(t, "f-pet"); got != payments.FactInvoiced {
		t.Fatalf("matched fact status = %s", got)
	}
}

func TestGenerate_NegativeTotalIsCredit(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryExporter, invoicing.DocumentPayable, false)
	h.seed(t, fact("f-adj", "exp-1", payments.CategoryExporter, payments.PaymentTypeExportFee, "PET", "-200.00"))

	result, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID: testScheme,
		Category: "EXPORTER",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(result.Documents))
	}
	doc := result.Documents[0]
	if doc.Classification != invoicing.ClassificationCredit {
		t.Fatalf("classification = %s", doc.Classification)
	}
	assertAmount(t, "credit total", doc.TotalAmount, "-230.00")
}

func TestGenerate_PaymentTypeFilterAndStatus(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryManufacturer, invoicing.DocumentReceivable, false)
	review := fact("f-review", "man-1", payments.CategoryManufacturer, payments.PaymentTypeStewardshipFee, "PET", "90.00")
	review.Status = payments.FactAwaitingReview
	h.seed(t,
		fact("f-fee", "man-1", payments.CategoryManufacturer, payments.PaymentTypeStewardshipFee, "PET", "500.00"),
		fact("f-resale", "man-1", payments.CategoryManufacturer, payments.PaymentTypeResaleAdjustment, "PET", "1000.00"),
		review,
	)

	first, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID:            testScheme,
		Category:            "MANUFACTURER",
		PaymentTypes:        []string{payments.PaymentTypeResaleAdjustment},
		ExcludePaymentTypes: true,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(first.Documents) != 1 || first.Documents[0].PaymentType != payments.PaymentTypeStewardshipFee {
		t.Fatalf("unexpected documents: %+v", first.Documents)
	}
	doc := first.Documents[0]
	if doc.Type != invoicing.DocumentReceivable || !strings.HasPrefix(doc.Number, "AR-") {
		t.Fatalf("manufacturer document = %s %s", doc.Type, doc.Number)
	}
	assertAmount(t, "stewardship total", doc.TotalAmount, "575.00")
	if got := h.status(t, "f-resale"); got != payments.FactAwaitingInvoicing {
		t.Fatalf("filtered fact status = %s", got)
	}
	if got := h.status(t, "f-review"); got != payments.FactAwaitingReview {
		t.Fatalf("review fact status = %s", got)
	}

	second, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID: testScheme,
		Category: "MANUFACTURER",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(second.Documents) != 1 {
		t.Fatalf("expected resale document only, got %d", len(second.Documents))
	}
	assertAmount(t, "resale adjustment", second.Documents[0].TotalAmount, "100.00")
	if second.InvoiceBatchID == first.InvoiceBatchID {
		t.Fatal("runs share an invoice batch id")
	}
}

func TestGenerate_NoEligibleFacts(t *testing.T) {
	h := newHarness(t)
	result, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID: testScheme,
		Category: "MRF",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Documents) != 0 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestGenerate_ValidationErrors(t *testing.T) {
	h := newHarness(t)
	cases := []application.GenerateRequest{
		{Category: "PROCESSOR"},
		{SchemeID: testScheme},
		{SchemeID: testScheme, Category: "SMELTER"},
	}
	for _, req := range cases {
		if _, err := h.service.Generate(context.Background(), req); !errors.Is(err, payments.ErrValidation) {
			t.Fatalf("request %+v: expected ErrValidation, got %v", req, err)
		}
	}
}

func TestDocuments_MarkSynced(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryProcessor, invoicing.DocumentPayable, false)
	h.seed(t, fact("f-1", "proc-1", payments.CategoryProcessor, payments.PaymentTypeProcessingFee, "PET", "10.00"))

	result, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID: testScheme,
		Category: "PROCESSOR",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	docs, err := h.service.Documents(context.Background(), result.InvoiceBatchID)
	if err != nil || len(docs) != 1 {
		t.Fatalf("documents: %v (%d)", err, len(docs))
	}
	if docs[0].Synced() {
		t.Fatal("new document already synced")
	}

	n, err := h.service.MarkSynced(context.Background(), result.InvoiceBatchID)
	if err != nil || n != 1 {
		t.Fatalf("mark synced: %v (%d)", err, n)
	}
	n, err = h.service.MarkSynced(context.Background(), result.InvoiceBatchID)
	if err != nil || n != 0 {
		t.Fatalf("second mark synced: %v (%d)", err, n)
	}
	docs, _ = h.service.Documents(context.Background(), result.InvoiceBatchID)
	if !docs[0].Synced() {
		t.Fatal("document not synced")
	}

	if _, err := h.service.Documents(context.Background(), "missing"); !errors.Is(err, invoicing.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

// listedOnce serves the fact list captured when it was built, standing in for
// a generation whose eligibility read raced another run.
type listedOnce struct {
	payments.FactRepository
	listed []*payments.TransactionFact
}

func (l listedOnce) List(ctx context.Context, filter payments.FactFilter) ([]*payments.TransactionFact, error) {
	return l.listed, nil
}

func TestGenerate_OverlappingRunsInvoiceOnce(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryProcessor, invoicing.DocumentPayable, false)
	h.seed(t, fact("f-1", "proc-1", payments.CategoryProcessor, payments.PaymentTypeProcessingFee, "PET", "250.00"))

	listed, err := h.facts.List(context.Background(), payments.FactFilter{
		SchemeID: testScheme,
		Statuses: []payments.FactStatus{payments.FactAwaitingInvoicing},
	})
	if err != nil {
		t.Fatalf("list facts: %v", err)
	}
	late, err := application.NewGenerationService(listedOnce{FactRepository: h.facts, listed: listed},
		h.docs, h.docs, h.attributes, h.relationships, h.rules, nil,
		application.WithClock(fixedClock{now: march}))
	if err != nil {
		t.Fatalf("generation service: %v", err)
	}

	req := application.GenerateRequest{SchemeID: testScheme, Category: "PROCESSOR"}
	first, err := h.service.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if len(first.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(first.Documents))
	}

	second, err := late.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if len(second.Documents) != 0 {
		t.Fatalf("facts invoiced twice: %d documents", len(second.Documents))
	}
	if len(second.Errors) != 1 || !strings.Contains(second.Errors[0], "proc-1") {
		t.Fatalf("expected participant conflict, got %v", second.Errors)
	}
	if _, err := h.service.Documents(context.Background(), second.InvoiceBatchID); !errors.Is(err, invoicing.ErrDocumentNotFound) {
		t.Fatalf("late batch documents err = %v", err)
	}
	if got := h.status(t, "f-1"); got != payments.FactInvoiced {
		t.Fatalf("fact status = %s", got)
	}
}

func TestGenerate_PositiveAuctionLotWithProcessorSeller(t *testing.T) {
	h := newHarness(t)
	h.seedAttributes(payments.CategoryAuction, invoicing.DocumentPayable, false)
	h.seed(t, auctionFact("lot-pos", "proc-4", payments.CategoryProcessor, "lot-12", "2000.00"))

	result, err := h.service.Generate(context.Background(), application.GenerateRequest{
		SchemeID: testScheme,
		Category: "AUCTION",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Errors) != 0 || len(result.Documents) != 1 {
		t.Fatalf("documents=%d errors=%v", len(result.Documents), result.Errors)
	}
	seller := result.Documents[0]
	if seller.Type != invoicing.DocumentPayable || seller.CounterpartyID != "proc-4" {
		t.Fatalf("unexpected seller document: %+v", seller)
	}
	assertAmount(t, "resale adjustment", seller.TotalAmount, "200.00")
	assertAmount(t, "resale tax", seller.TaxAmount, "0")
	if !strings.Contains(seller.Description, "resale adjustment") {
		t.Fatalf("description = %s", seller.Description)
	}
	if got := h.status(t, "lot-pos"); got != payments.FactInvoiced {
		t.Fatalf("fact status = %s", got)
	}
}

func TestGenerate_ComputedResaleAndPlatformFeeClaims(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.seedAttributes(payments.CategoryProcessor, invoicing.DocumentPayable, false)
	h.seedAttributes(payments.CategoryProcessor, invoicing.DocumentReceivable, true)

	ref := pricing.NewStaticReferenceData()
	ref.AddRates(
		payments.ReferenceRate{SchemeID: testScheme, Kind: payments.RateKindProcessorRate, MaterialID: "PET", Value: decimal.NewFromInt(4), EffectiveFrom: march.AddDate(-1, 0, 0)},
		payments.ReferenceRate{SchemeID: testScheme, Kind: payments.RateKindProcessorRate, MaterialID: "HDPE", Value: decimal.NewFromInt(4), EffectiveFrom: march.AddDate(-1, 0, 0)},
	)
	sources := paymentsmemory.NewSources()
	claim := func(id, material, paymentType string) payments.SourceRecord {
		return payments.SourceRecord{
			ID:            id,
			SchemeID:      testScheme,
			ParticipantID: "proc-1",
			MaterialID:    material,
			PaymentType:   paymentType,
			PeriodType:    payments.PeriodMonth,
			Period:        "2026-03",
			PeriodStart:   march,
			EntryType:     payments.EntryRegular,
			Volume:        decimal.NewFromInt(100),
			Unit:          "kg",
		}
	}
	sources.AddRecords(payments.CategoryProcessor,
		claim("c-1", "PET", payments.PaymentTypeResaleAdjustment),
		claim("c-2", "HDPE", payments.PaymentTypePlatformFee),
	)
	clock := fixedClock{now: time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC)}
	registry, err := paymentsapp.NewDefaultRegistry(ref, clock, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	compute, err := paymentsapp.NewComputeService(h.facts, h.facts, sources, registry, h.rules, nil, paymentsapp.WithClock(clock))
	if err != nil {
		t.Fatalf("compute service: %v", err)
	}
	summary, err := compute.Compute(ctx, paymentsapp.ComputeRequest{SchemeID: testScheme, Category: "PROCESSOR"})
	if err != nil || summary.Status != payments.BatchSuccess {
		t.Fatalf("compute: status=%s err=%v", summary.Status, err)
	}

	computed, err := h.facts.List(ctx, payments.FactFilter{SchemeID: testScheme, Category: payments.CategoryProcessor})
	if err != nil || len(computed) != 2 {
		t.Fatalf("computed facts=%d err=%v", len(computed), err)
	}
	ids := []string{computed[0].ID, computed[1].ID}
	if n, err := h.facts.UpdateStatus(ctx, ids, []payments.FactStatus{payments.FactAwaitingReview}, payments.FactAwaitingInvoicing); err != nil || n != 2 {
		t.Fatalf("approve facts: n=%d err=%v", n, err)
	}

	result, err := h.service.Generate(ctx, application.GenerateRequest{SchemeID: testScheme, Category: "PROCESSOR"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(result.Errors) != 0 || len(result.Documents) != 2 {
		t.Fatalf("documents=%d errors=%v", len(result.Documents), result.Errors)
	}
	resale := findDocument(t, result.Documents, func(d *invoicing.Document) bool {
		return d.PaymentType == payments.PaymentTypeResaleAdjustment
	})
	if resale.Type != invoicing.DocumentPayable {
		t.Fatalf("resale document type = %s", resale.Type)
	}
	assertAmount(t, "resale adjustment", resale.TotalAmount, "40.00")
	fee := findDocument(t, result.Documents, func(d *invoicing.Document) bool {
		return d.PaymentType == payments.PaymentTypePlatformFee
	})
	if fee.Type != invoicing.DocumentReceivable {
		t.Fatalf("platform fee document type = %s", fee.Type)
	}
	assertAmount(t, "platform fee floor", fee.TotalAmount, "100.00")
}
