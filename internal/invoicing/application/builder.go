package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	invoicing "stewardship-cloud/internal/invoicing/domain"
	payments "stewardship-cloud/internal/payments/domain"
	"stewardship-cloud/internal/scheme"
)

// Group is one participant sub-group turned into documents by the builder.
type Group struct {
	SchemeID        string
	Category        payments.ParticipantCategory
	ParticipantID   string
	ParticipantName string
	PaymentType     string
	PaymentMethod   string
	AuctionLotID    string
	// Counterparty is set for categories split by acceptance relationship.
	Counterparty *invoicing.Relationship
	Facts        []*payments.TransactionFact
	// AmountOverride replaces the summed gross amount when set.
	AmountOverride *decimal.Decimal
}

type documentSpec struct {
	docType          invoicing.DocumentType
	counterpartyID   string
	counterpartyName string
	platformFee      bool
	amount           *decimal.Decimal
	tax              decimal.Decimal
	description      string
}

// LineBuilder turns fact groups into accounting documents.
type LineBuilder struct {
	cache *AttributeCache
	rules scheme.Rules
	clock payments.Clock
}

// NewLineBuilder constructs a builder over a scheme-bound attribute cache.
func NewLineBuilder(cache *AttributeCache, rules scheme.Rules, clock payments.Clock) (*LineBuilder, error) {
	if cache == nil {
		return nil, errors.New("line builder: nil attribute cache")
	}
	if clock == nil {
		clock = payments.SystemClock{}
	}
	return &LineBuilder{cache: cache, rules: rules, clock: clock}, nil
}

// Build returns the documents of one group. Auction groups of a negative lot
// yield a seller and a buyer document; every other group yields one.
func (b *LineBuilder) Build(ctx context.Context, g Group) ([]*invoicing.Document, error) {
	if len(g.Facts) == 0 {
		return nil, invoicing.ErrEmptyGroup
	}
	gross, tax := sumAmounts(g.Facts)
	if g.Category == payments.CategoryAuction {
		return b.buildAuction(ctx, g, gross, tax)
	}

	spec := documentSpec{
		docType:          defaultDocumentType(g.Category),
		counterpartyID:   g.ParticipantID,
		counterpartyName: g.ParticipantName,
		amount:           g.AmountOverride,
		tax:              tax,
		description:      describe(g),
	}
	switch g.PaymentType {
	case payments.PaymentTypePlatformFee:
		fee := b.rules.PlatformFee(gross).Round(2)
		spec.docType = invoicing.DocumentReceivable
		spec.platformFee = true
		spec.amount = &fee
		spec.tax = decimal.Zero
	case payments.PaymentTypeResaleAdjustment:
		adj := b.rules.ResaleAdjustment(gross).Round(2)
		spec.amount = &adj
		spec.tax = decimal.Zero
	}
	doc, err := b.document(ctx, g, spec)
	if err != nil {
		return nil, err
	}
	return []*invoicing.Document{doc}, nil
}

// buildAuction splits a lot between seller and buyer. A processor selling a
// positive lot is paid the resale adjustment instead of the full gross.
func (b *LineBuilder) buildAuction(ctx context.Context, g Group, gross, tax decimal.Decimal) ([]*invoicing.Document, error) {
	first := g.Facts[0]
	if !gross.IsNegative() {
		spec := documentSpec{
			docType:          invoicing.DocumentPayable,
			counterpartyID:   g.ParticipantID,
			counterpartyName: g.ParticipantName,
			amount:           g.AmountOverride,
			tax:              tax,
			description:      describe(g) + " seller",
		}
		if first.SellerCategory == payments.CategoryProcessor && g.AmountOverride == nil {
			adj := b.rules.ResaleAdjustment(gross).Round(2)
			spec.amount = &adj
			spec.tax = decimal.Zero
			spec.description = describe(g) + " resale adjustment"
		}
		doc, err := b.document(ctx, g, spec)
		if err != nil {
			return nil, err
		}
		return []*invoicing.Document{doc}, nil
	}

	seller := documentSpec{
		docType:          invoicing.DocumentPayable,
		counterpartyID:   g.ParticipantID,
		counterpartyName: g.ParticipantName,
		tax:              decimal.Zero,
		description:      describe(g) + " seller",
	}
	sellerAmount := decimal.Zero
	if first.SellerCategory == payments.CategoryMRF {
		sellerAmount = b.rules.PlatformFee(gross).Round(2)
		seller.docType = invoicing.DocumentReceivable
		seller.platformFee = true
		seller.description = describe(g) + " platform fee"
	}
	seller.amount = &sellerAmount
	sellerDoc, err := b.document(ctx, g, seller)
	if err != nil {
		return nil, err
	}

	buyerAmount := gross.Abs()
	buyerDoc, err := b.document(ctx, g, documentSpec{
		docType:          invoicing.DocumentPayable,
		counterpartyID:   first.BuyerID,
		counterpartyName: first.BuyerName,
		amount:           &buyerAmount,
		tax:              tax.Abs(),
		description:      describe(g) + " buyer",
	})
	if err != nil {
		return nil, err
	}
	return []*invoicing.Document{sellerDoc, buyerDoc}, nil
}

func (b *LineBuilder) document(ctx context.Context, g Group, spec documentSpec) (*invoicing.Document, error) {
	key := invoicing.AttributeKey{
		SchemeID:     g.SchemeID,
		DocumentType: spec.docType,
		Category:     string(g.Category),
		PaymentType:  g.PaymentType,
		PlatformFee:  spec.platformFee,
	}
	businessUnit, err := b.cache.Resolve(ctx, invoicing.AttributeBusinessUnit, key)
	if err != nil {
		return nil, err
	}
	legalEntity := ""
	paymentMethod := g.PaymentMethod
	if g.Counterparty != nil {
		legalEntity = g.Counterparty.LegalEntity
		if paymentMethod == "" {
			paymentMethod = g.Counterparty.PaymentMethod
		}
	}
	if legalEntity == "" {
		legalEntity, err = b.cache.Resolve(ctx, invoicing.AttributeLegalEntity, key)
		if err != nil {
			return nil, err
		}
	}

	doc := &invoicing.Document{
		SchemeID:         g.SchemeID,
		Type:             spec.docType,
		BusinessUnit:     businessUnit,
		LegalEntity:      legalEntity,
		Currency:         b.rules.Currency,
		CounterpartyID:   spec.counterpartyID,
		CounterpartyName: spec.counterpartyName,
		Category:         string(g.Category),
		PaymentType:      g.PaymentType,
		PaymentMethod:    paymentMethod,
		AuctionLotID:     g.AuctionLotID,
		Description:      spec.description,
		CreatedAt:        b.clock.Now(),
	}

	if spec.amount == nil {
		total := decimal.Zero
		for i, f := range g.Facts {
			line, err := b.line(ctx, g, spec, key, i+1, f, f.GrossAmount, f.TaxAmount)
			if err != nil {
				return nil, err
			}
			doc.Lines = append(doc.Lines, line)
			total = total.Add(f.GrossAmount).Add(f.TaxAmount)
		}
		doc.TotalAmount = total
		doc.TaxAmount = spec.tax
	} else {
		line, err := b.line(ctx, g, spec, key, 1, g.Facts[0], *spec.amount, spec.tax)
		if err != nil {
			return nil, err
		}
		quantity := decimal.Zero
		for _, f := range g.Facts {
			quantity = quantity.Add(f.Volume)
		}
		line.Quantity = quantity
		line.UnitPrice = *spec.amount
		if !quantity.IsZero() {
			line.UnitPrice = spec.amount.Div(quantity).Round(4)
		}
		doc.Lines = []invoicing.Line{line}
		for _, f := range g.Facts[1:] {
			// the remaining facts are consumed by the single summary line
			doc.Lines = append(doc.Lines, invoicing.Line{
				LineNumber:        len(doc.Lines) + 1,
				FactID:            f.ID,
				MaterialID:        f.MaterialID,
				Quantity:          decimal.Zero,
				Unit:              f.Unit,
				UnitPrice:         decimal.Zero,
				Amount:            decimal.Zero,
				TaxAmount:         decimal.Zero,
				TaxClassification: line.TaxClassification,
				Distribution:      line.Distribution,
			})
		}
		doc.TotalAmount = spec.amount.Add(spec.tax)
		doc.TaxAmount = spec.tax
	}
	doc.Classification = invoicing.Classify(doc.TotalAmount)
	return doc, nil
}

func (b *LineBuilder) line(ctx context.Context, g Group, spec documentSpec, docKey invoicing.AttributeKey, n int, f *payments.TransactionFact, amount, tax decimal.Decimal) (invoicing.Line, error) {
	lineKey := docKey
	lineKey.MaterialID = f.MaterialID
	taxClass, err := b.cache.Resolve(ctx, invoicing.AttributeTaxClassification, lineKey)
	if err != nil {
		return invoicing.Line{}, err
	}
	distKey := lineKey
	distKey.PaymentType = invoicing.DistributionGroup(string(g.Category), g.PaymentType, spec.platformFee)
	distribution, err := b.cache.Resolve(ctx, invoicing.AttributeDistributionLine, distKey)
	if err != nil {
		return invoicing.Line{}, err
	}
	return invoicing.Line{
		LineNumber:        n,
		FactID:            f.ID,
		MaterialID:        f.MaterialID,
		Quantity:          f.Volume,
		Unit:              f.Unit,
		UnitPrice:         f.UnitPrice,
		Amount:            amount,
		TaxAmount:         tax,
		TaxClassification: taxClass,
		Distribution:      distribution,
	}, nil
}

func defaultDocumentType(category payments.ParticipantCategory) invoicing.DocumentType {
	if category == payments.CategoryManufacturer {
		return invoicing.DocumentReceivable
	}
	return invoicing.DocumentPayable
}

func sumAmounts(facts []*payments.TransactionFact) (gross, tax decimal.Decimal) {
	for _, f := range facts {
		gross = gross.Add(f.GrossAmount)
		tax = tax.Add(f.TaxAmount)
	}
	return gross, tax
}

func describe(g Group) string {
	period := ""
	if len(g.Facts) > 0 {
		period = g.Facts[0].Period
	}
	if g.AuctionLotID != "" {
		return fmt.Sprintf("%s %s lot %s %s", g.Category, g.PaymentType, g.AuctionLotID, period)
	}
	return fmt.Sprintf("%s %s %s", g.Category, g.PaymentType, period)
}
