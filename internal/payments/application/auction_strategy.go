package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	payments "stewardship-cloud/internal/payments/domain"
)

var kgPerTonne = decimal.NewFromInt(1000)

var auctionLive = []payments.FactStatus{
	payments.FactAwaitingInvoicing,
	payments.FactHold,
}

// AuctionStrategy settles auction lots. Lots bypass review and are created
// ready for invoicing.
type AuctionStrategy struct {
	clock  payments.Clock
	logger *zap.Logger
}

// NewAuctionStrategy constructs the auction strategy.
func NewAuctionStrategy(clock payments.Clock, logger *zap.Logger) *AuctionStrategy {
	if clock == nil {
		clock = payments.SystemClock{}
	}
	return &AuctionStrategy{clock: clock, logger: nopIfNil(logger)}
}

// Category returns AUCTION.
func (s *AuctionStrategy) Category() payments.ParticipantCategory { return payments.CategoryAuction }

// Calculate prices each lot at sale price per kilogram times matched weight.
func (s *AuctionStrategy) Calculate(ctx context.Context, params Parameters) ([]*payments.TransactionFact, error) {
	w, err := newFactWriter(params, auctionLive, s.clock, s.logger)
	if err != nil {
		return nil, err
	}
	for _, lot := range params.Sources.Lots {
		if params.AuctionLotID != "" && lot.LotID != params.AuctionLotID {
			continue
		}
		if !params.Participants.Allows(lot.SellerID) {
			continue
		}
		fact := s.lotFact(params, lot)
		if fact == nil {
			s.logger.Debug("auction lot skipped",
				zap.String("lot_id", lot.LotID),
				zap.String("reason", "zero amount"),
			)
			continue
		}
		if _, err := w.write(ctx, fact); err != nil {
			return nil, err
		}
	}
	return w.done(), nil
}

func (s *AuctionStrategy) lotFact(params Parameters, lot payments.AuctionLot) *payments.TransactionFact {
	unitPrice := lot.SalePrice.Div(kgPerTonne)
	gross := lot.ActualWeight.Mul(unitPrice).Round(2)
	if lot.ActualWeight.IsZero() || gross.IsZero() {
		return nil
	}
	subtype := payments.AuctionPositive
	if gross.IsNegative() {
		subtype = payments.AuctionNegative
	}
	periodStart := lot.PeriodStart
	if periodStart.IsZero() {
		periodStart = params.CurrentPeriod.Start
	}
	period := lot.Period
	if period == "" {
		period = params.CurrentPeriod.Value
	}
	now := s.clock.Now()
	return &payments.TransactionFact{
		ID:              uuid.NewString(),
		SchemeID:        params.SchemeID,
		BatchID:         params.BatchID,
		ParticipantID:   lot.SellerID,
		ParticipantName: lot.SellerName,
		Category:        payments.CategoryAuction,
		PaymentType:     payments.PaymentTypeAuctionSale,
		MaterialID:      lot.MaterialID,
		PeriodType:      params.CurrentPeriod.Type,
		Period:          period,
		PeriodStart:     periodStart,
		EntryType:       payments.EntryRegular,
		Volume:          lot.ActualWeight,
		Unit:            "kg",
		UnitPrice:       unitPrice,
		GrossAmount:     gross,
		TaxableAmount:   gross,
		TaxAmount:       params.Rules.Tax(gross),
		Arrears:         payments.ArrearsFlag(periodStart, params.CurrentPeriod),
		Status:          payments.FactAwaitingInvoicing,
		AuctionLotID:    lot.LotID,
		ManifestID:      lot.ManifestID,
		AuctionSubtype:  subtype,
		SellerCategory:  lot.SellerCategory,
		BuyerID:         lot.BuyerID,
		BuyerName:       lot.BuyerName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
