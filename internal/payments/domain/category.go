package payments

import "strings"

// ParticipantCategory selects the calculation strategy.
type ParticipantCategory string

const (
	CategoryManufacturer    ParticipantCategory = "MANUFACTURER"
	CategoryProcessor       ParticipantCategory = "PROCESSOR"
	CategoryMRF             ParticipantCategory = "MRF"
	CategoryExporter        ParticipantCategory = "EXPORTER"
	CategoryCollectionPoint ParticipantCategory = "COLLECTION_POINT"
	CategoryAuction         ParticipantCategory = "AUCTION"
)

// Categories lists every known category.
func Categories() []ParticipantCategory {
	return []ParticipantCategory{
		CategoryManufacturer,
		CategoryProcessor,
		CategoryMRF,
		CategoryExporter,
		CategoryCollectionPoint,
		CategoryAuction,
	}
}

// ParseCategory normalizes a category name.
func ParseCategory(raw string) (ParticipantCategory, bool) {
	value := ParticipantCategory(strings.ToUpper(strings.TrimSpace(raw)))
	for _, c := range Categories() {
		if c == value {
			return c, true
		}
	}
	return "", false
}

// EntryType tags how a volume was reported.
type EntryType string

const (
	EntryRegular          EntryType = "R"
	EntryLate             EntryType = "L"
	EntryForecast         EntryType = "F"
	EntryForecastOverride EntryType = "FO"
	EntryAdjustment       EntryType = "A"
)

// ReclassifyManufacturerEntry maps declared entry types onto settled ones.
func ReclassifyManufacturerEntry(e EntryType) EntryType {
	switch e {
	case EntryForecast:
		return EntryRegular
	case EntryForecastOverride:
		return EntryAdjustment
	default:
		return e
	}
}

// Payment type tags.
const (
	PaymentTypeStewardshipFee   = "STEWARDSHIP_FEE"
	PaymentTypeProcessingFee    = "PROCESSING_FEE"
	PaymentTypeRecoveryFee      = "RECOVERY_FEE"
	PaymentTypeExportFee        = "EXPORT_FEE"
	PaymentTypeCollectionFee    = "COLLECTION_FEE"
	PaymentTypeAuctionSale      = "AUCTION_SALE"
	PaymentTypePlatformFee      = "PLATFORM_FEE"
	PaymentTypeResaleAdjustment = "RESALE_ADJUSTMENT"
)

// AuctionSubtype is derived from the sign of an auction lot's gross amount.
type AuctionSubtype string

const (
	AuctionPositive AuctionSubtype = "POSITIVE"
	AuctionNegative AuctionSubtype = "NEGATIVE"
)

// Arrears flags.
const (
	ArrearsYes = "Y"
	ArrearsNo  = "N"
)
