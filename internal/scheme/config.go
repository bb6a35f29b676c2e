package scheme

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var hundred = decimal.NewFromInt(100)

// Rules are the settlement parameters of one stewardship scheme.
type Rules struct {
	Currency   string `yaml:"currency"`
	PeriodType string `yaml:"period_type"`
	// TaxRate is a fraction applied to gross amounts (0.15 = 15%).
	TaxRate decimal.Decimal `yaml:"tax_rate"`
	// DefaultSeasonalityIndex applies when no index exists for a material and
	// period. Zero suppresses forecasts.
	DefaultSeasonalityIndex decimal.Decimal `yaml:"default_seasonality_index"`
	AuctionCommissionPct    decimal.Decimal `yaml:"auction_commission_pct"`
	PlatformFeeFloor        decimal.Decimal `yaml:"platform_fee_floor"`
	ResaleAdjustPct         decimal.Decimal `yaml:"resale_adjust_pct"`
	SplitCategories         []string        `yaml:"split_categories"`
	PayablePrefix           string          `yaml:"payable_prefix"`
	ReceivablePrefix        string          `yaml:"receivable_prefix"`
}

// Config holds scheme defaults and the resolved rules of each configured
// scheme.
type Config struct {
	Defaults Rules
	Schemes  map[string]Rules
}

// configFile is the yaml layout. Pointer fields keep an explicit zero apart
// from an absent key.
type configFile struct {
	Defaults ruleOverrides            `yaml:"defaults"`
	Schemes  map[string]ruleOverrides `yaml:"schemes"`
}

type ruleOverrides struct {
	Currency                *string          `yaml:"currency"`
	PeriodType              *string          `yaml:"period_type"`
	TaxRate                 *decimal.Decimal `yaml:"tax_rate"`
	DefaultSeasonalityIndex *decimal.Decimal `yaml:"default_seasonality_index"`
	AuctionCommissionPct    *decimal.Decimal `yaml:"auction_commission_pct"`
	PlatformFeeFloor        *decimal.Decimal `yaml:"platform_fee_floor"`
	ResaleAdjustPct         *decimal.Decimal `yaml:"resale_adjust_pct"`
	SplitCategories         *[]string        `yaml:"split_categories"`
	PayablePrefix           *string          `yaml:"payable_prefix"`
	ReceivablePrefix        *string          `yaml:"receivable_prefix"`
}

// DefaultConfig returns built-in defaults.
func DefaultConfig() Config {
	return Config{
		Defaults: Rules{
			Currency:         "ZAR",
			PeriodType:       "MONTH",
			SplitCategories:  []string{"COLLECTION_POINT"},
			PayablePrefix:    "AP",
			ReceivablePrefix: "AR",
		},
	}
}

// LoadConfig reads scheme rules from a yaml file; an empty path yields
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes yaml over the built-in defaults. Scheme entries are
// merged over the resulting defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, err
	}
	cfg.Defaults = file.Defaults.apply(cfg.Defaults)
	if cfg.Defaults.Currency == "" {
		return cfg, errors.New("scheme config: currency required")
	}
	if len(file.Schemes) > 0 {
		cfg.Schemes = make(map[string]Rules, len(file.Schemes))
		for id, override := range file.Schemes {
			rules := override.apply(cfg.Defaults)
			if rules.Currency == "" {
				return cfg, fmt.Errorf("scheme config: %s: currency required", id)
			}
			cfg.Schemes[id] = rules
		}
	}
	return cfg, nil
}

// RulesFor returns the rules of a scheme, falling back to the defaults.
func (c Config) RulesFor(schemeID string) Rules {
	if rules, ok := c.Schemes[schemeID]; ok {
		return rules
	}
	return c.Defaults
}

// apply sets every key present in o over base.
func (o ruleOverrides) apply(base Rules) Rules {
	if o.Currency != nil {
		base.Currency = *o.Currency
	}
	if o.PeriodType != nil {
		base.PeriodType = strings.ToUpper(*o.PeriodType)
	}
	if o.TaxRate != nil {
		base.TaxRate = *o.TaxRate
	}
	if o.DefaultSeasonalityIndex != nil {
		base.DefaultSeasonalityIndex = *o.DefaultSeasonalityIndex
	}
	if o.AuctionCommissionPct != nil {
		base.AuctionCommissionPct = *o.AuctionCommissionPct
	}
	if o.PlatformFeeFloor != nil {
		base.PlatformFeeFloor = *o.PlatformFeeFloor
	}
	if o.ResaleAdjustPct != nil {
		base.ResaleAdjustPct = *o.ResaleAdjustPct
	}
	if o.SplitCategories != nil {
		base.SplitCategories = append([]string(nil), (*o.SplitCategories)...)
	}
	if o.PayablePrefix != nil {
		base.PayablePrefix = *o.PayablePrefix
	}
	if o.ReceivablePrefix != nil {
		base.ReceivablePrefix = *o.ReceivablePrefix
	}
	return base
}

// SplitsCategory reports whether documents of the category are split by
// counterparty legal entity and payment method.
func (r Rules) SplitsCategory(category string) bool {
	for _, c := range r.SplitCategories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// PlatformFee returns max(commission% x |gross|, floor).
func (r Rules) PlatformFee(gross decimal.Decimal) decimal.Decimal {
	fee := gross.Abs().Mul(r.AuctionCommissionPct).Div(hundred)
	if fee.LessThan(r.PlatformFeeFloor) {
		return r.PlatformFeeFloor
	}
	return fee
}

// ResaleAdjustment returns resale-adjust% x gross.
func (r Rules) ResaleAdjustment(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(r.ResaleAdjustPct).Div(hundred)
}

// Tax returns the tax due on a gross amount, rounded to cents.
func (r Rules) Tax(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(r.TaxRate).Round(2)
}
