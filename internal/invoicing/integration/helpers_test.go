package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stewardship-cloud/internal/invoicing/application"
	invoicing "stewardship-cloud/internal/invoicing/domain"
	"stewardship-cloud/internal/invoicing/infrastructure/memory"
	payments "stewardship-cloud/internal/payments/domain"
	paymentsmemory "stewardship-cloud/internal/payments/infrastructure/memory"
	"stewardship-cloud/internal/scheme"
)

const testScheme = "scheme-za-pack"

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type harness struct {
	facts         *paymentsmemory.Store
	docs          *memory.Store
	attributes    *memory.Attributes
	relationships *memory.Relationships
	rules         scheme.Config
	service       *application.GenerationService
}

func newHarness(t *testing.T, opts ...application.GenerationOption) *harness {
	t.Helper()
	rules := scheme.DefaultConfig()
	rules.Defaults.TaxRate = decimal.RequireFromString("0.15")
	rules.Defaults.AuctionCommissionPct = decimal.NewFromInt(5)
	rules.Defaults.PlatformFeeFloor = decimal.NewFromInt(100)
	rules.Defaults.ResaleAdjustPct = decimal.NewFromInt(10)

	facts := paymentsmemory.NewStore()
	docs, err := memory.NewStore(facts)
	if err != nil {
		t.Fatalf("document store: %v", err)
	}
	h := &harness{
		facts:         facts,
		docs:          docs,
		attributes:    memory.NewAttributes(),
		relationships: memory.NewRelationships(),
		rules:         rules,
	}
	clock := fixedClock{now: time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)}
	opts = append([]application.GenerationOption{application.WithClock(clock)}, opts...)
	service, err := application.NewGenerationService(facts, docs, docs, h.attributes, h.relationships, rules, nil, opts...)
	if err != nil {
		t.Fatalf("generation service: %v", err)
	}
	h.service = service
	return h
}

// seedAttributes stores category-wide values for every attribute kind.
func (h *harness) seedAttributes(category payments.ParticipantCategory, docType invoicing.DocumentType, platformFee bool) {
	key := invoicing.AttributeKey{
		SchemeID:     testScheme,
		DocumentType: docType,
		Category:     string(category),
		PlatformFee:  platformFee,
	}
	h.attributes.Add(invoicing.AttributeBusinessUnit, key, "BU-"+string(category))
	h.attributes.Add(invoicing.AttributeLegalEntity, key, "LE-DEFAULT")
	h.attributes.Add(invoicing.AttributeTaxClassification, key, "VAT-STD")
	h.attributes.Add(invoicing.AttributeDistributionLine, key, "DIST-"+string(category))
}

func (h *harness) seed(t *testing.T, facts ...*payments.TransactionFact) {
	t.Helper()
	for _, f := range facts {
		if err := h.facts.Save(context.Background(), f); err != nil {
			t.Fatalf("seed fact %s: %v", f.ID, err)
		}
	}
}

func (h *harness) status(t *testing.T, id string) payments.FactStatus {
	t.Helper()
	facts, err := h.facts.List(context.Background(), payments.FactFilter{SchemeID: testScheme})
	if err != nil {
		t.Fatalf("list facts: %v", err)
	}
	for _, f := range facts {
		if f.ID == id {
			return f.Status
		}
	}
	t.Fatalf("fact %s not found", id)
	return ""
}

var march = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

// fact builds an invoiceable fact of 100 units with 15% tax.
func fact(id, participant string, category payments.ParticipantCategory, paymentType, material, gross string) *payments.TransactionFact {
	g := decimal.RequireFromString(gross)
	volume := decimal.NewFromInt(100)
	return &payments.TransactionFact{
		ID:              id,
		SchemeID:        testScheme,
		BatchID:         "batch-seed",
		ParticipantID:   participant,
		ParticipantName: "Participant " + participant,
		Category:        category,
		PaymentType:     paymentType,
		MaterialID:      material,
		PeriodType:      payments.PeriodMonth,
		Period:          "2026-03",
		PeriodStart:     march,
		EntryType:       payments.EntryRegular,
		Volume:          volume,
		Unit:            "kg",
		UnitPrice:       g.Div(volume),
		GrossAmount:     g,
		TaxableAmount:   g,
		TaxAmount:       g.Mul(decimal.RequireFromString("0.15")).Round(2),
		Arrears:         payments.ArrearsNo,
		Status:          payments.FactAwaitingInvoicing,
	}
}

func auctionFact(id, seller string, sellerCategory payments.ParticipantCategory, lot, gross string) *payments.TransactionFact {
	f := fact(id, seller, payments.CategoryAuction, payments.PaymentTypeAuctionSale, "PET-BALE", gross)
	f.AuctionLotID = lot
	f.SellerCategory = sellerCategory
	f.BuyerID = "buyer-1"
	f.BuyerName = "Bale Buyers"
	f.AuctionSubtype = payments.AuctionPositive
	if f.GrossAmount.IsNegative() {
		f.AuctionSubtype = payments.AuctionNegative
	}
	return f
}

func relationship(participant, material, legalEntity, method string) invoicing.Relationship {
	return invoicing.Relationship{
		SchemeID:         testScheme,
		ParticipantID:    participant,
		MaterialID:       material,
		CounterpartyID:   "cpty-" + legalEntity,
		CounterpartyName: "Counterparty " + legalEntity,
		LegalEntity:      legalEntity,
		PaymentMethod:    method,
		Active:           true,
		EffectiveFrom:    time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func assertAmount(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s mismatch: got=%s want=%s", label, got.String(), want)
	}
}

func findDocument(t *testing.T, docs []*invoicing.Document, match func(*invoicing.Document) bool) *invoicing.Document {
	t.Helper()
	for _, d := range docs {
		if match(d) {
			return d
		}
	}
	t.Fatalf("document not found among %d documents", len(docs))
	return nil
}
