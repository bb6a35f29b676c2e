package payments

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PeriodType is the settlement period granularity.
type PeriodType string

const (
	PeriodMonth   PeriodType = "MONTH"
	PeriodQuarter PeriodType = "QUARTER"
)

// Period is a settlement period, e.g. MONTH 2026-03 or QUARTER 2026-Q1.
type Period struct {
	Type  PeriodType
	Value string
	Start time.Time
}

// End returns the exclusive end of the period.
func (p Period) End() time.Time {
	if p.Type == PeriodQuarter {
		return p.Start.AddDate(0, 3, 0)
	}
	return p.Start.AddDate(0, 1, 0)
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.Value == "" && p.Start.IsZero() }

// PeriodContaining resolves the period of the given type containing t.
func PeriodContaining(t time.Time, typ PeriodType) Period {
	t = t.UTC()
	switch typ {
	case PeriodQuarter:
		q := (int(t.Month())-1)/3 + 1
		start := time.Date(t.Year(), time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return Period{Type: PeriodQuarter, Value: fmt.Sprintf("%04d-Q%d", t.Year(), q), Start: start}
	default:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Type: PeriodMonth, Value: start.Format("2006-01"), Start: start}
	}
}

// ParsePeriod parses a period value of the given type.
func ParsePeriod(typ PeriodType, value string) (Period, error) {
	value = strings.TrimSpace(value)
	switch typ {
	case PeriodQuarter:
		parts := strings.Split(value, "-Q")
		if len(parts) != 2 {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
		}
		year, err := strconv.Atoi(parts[0])
		if err != nil {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
		}
		q, err := strconv.Atoi(parts[1])
		if err != nil || q < 1 || q > 4 {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
		}
		return PeriodContaining(time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC), PeriodQuarter), nil
	case PeriodMonth, "":
		t, err := time.ParseInLocation("2006-01", value, time.UTC)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
		}
		return PeriodContaining(t, PeriodMonth), nil
	default:
		return Period{}, fmt.Errorf("%w: unknown type %q", ErrInvalidPeriod, typ)
	}
}

// ArrearsFlag returns "N" when the record period starts on or after the
// current period start, "Y" otherwise.
func ArrearsFlag(recordStart time.Time, current Period) string {
	if !recordStart.Before(current.Start) {
		return ArrearsNo
	}
	return ArrearsYes
}
