package invoicing

// AttributeKind names an accounting attribute resolved per document or line.
type AttributeKind string

const (
	AttributeBusinessUnit      AttributeKind = "BUSINESS_UNIT"
	AttributeLegalEntity       AttributeKind = "LEGAL_ENTITY"
	AttributeTaxClassification AttributeKind = "TAX_CLASSIFICATION"
	AttributeDistributionLine  AttributeKind = "DISTRIBUTION_LINE"
)

// Wildcard matches any payment type or material in a stored attribute key.
const Wildcard = "*"

// DistributionPlatformFee is the distribution group forced by the platform-fee
// flag.
const DistributionPlatformFee = "PLATFORM_FEE"

// AttributeKey addresses an attribute value within one scheme.
type AttributeKey struct {
	SchemeID     string
	DocumentType DocumentType
	Category     string
	PaymentType  string
	MaterialID   string
	PlatformFee  bool
}

// Cascade lists the lookup keys from most to least specific: exact, material
// wildcard, payment-type wildcard, category only.
func (k AttributeKey) Cascade() []AttributeKey {
	exact := k.Normalized()
	materialWild := exact
	materialWild.MaterialID = Wildcard
	paymentWild := exact
	paymentWild.PaymentType = Wildcard
	categoryOnly := exact
	categoryOnly.PaymentType = Wildcard
	categoryOnly.MaterialID = Wildcard

	keys := []AttributeKey{exact}
	for _, c := range []AttributeKey{materialWild, paymentWild, categoryOnly} {
		if !containsKey(keys, c) {
			keys = append(keys, c)
		}
	}
	return keys
}

// Normalized replaces empty payment type and material with the wildcard.
func (k AttributeKey) Normalized() AttributeKey {
	if k.PaymentType == "" {
		k.PaymentType = Wildcard
	}
	if k.MaterialID == "" {
		k.MaterialID = Wildcard
	}
	return k
}

func containsKey(keys []AttributeKey, k AttributeKey) bool {
	for _, existing := range keys {
		if existing == k {
			return true
		}
	}
	return false
}

// DistributionGroup returns the payment-type component of a distribution
// line key. The platform-fee flag wins over the category composition.
func DistributionGroup(category, paymentType string, platformFee bool) string {
	if platformFee {
		return DistributionPlatformFee
	}
	if category == "MANUFACTURER" {
		return paymentType
	}
	return category + "_" + paymentType
}
