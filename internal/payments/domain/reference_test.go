package payments

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRateTable_ParticipantOverrideFallsBackToDefault(t *testing.T) {
	jan := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	table := NewRateTable(RateKindProcessorRate, []ReferenceRate{
		{MaterialID: "PET", Value: decimal.RequireFromString("2.50"), EffectiveFrom: jan},
		{MaterialID: "PET", ParticipantID: "p-1", Value: decimal.RequireFromString("3.00"), EffectiveFrom: jan, EffectiveTo: apr},
	})

	cases := []struct {
		name        string
		participant string
		at          time.Time
		want        string
		found       bool
	}{
		{name: "override", participant: "p-1", at: jan.AddDate(0, 1, 0), want: "3", found: true},
		{name: "override expired", participant: "p-1", at: apr, want: "2.5", found: true},
		{name: "default", participant: "p-2", at: jan, want: "2.5", found: true},
		{name: "before effective", participant: "p-2", at: jan.Add(-time.Hour), want: "0", found: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := table.Resolve("PET", tc.participant, tc.at)
			if ok != tc.found {
				t.Fatalf("found = %v, want %v", ok, tc.found)
			}
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("rate = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRateTable_LatestEffectiveWins(t *testing.T) {
	jan := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	table := NewRateTable(RateKindMRFRate, []ReferenceRate{
		{MaterialID: "GLASS", Value: decimal.NewFromInt(1), EffectiveFrom: jan},
		{MaterialID: "GLASS", Value: decimal.NewFromInt(2), EffectiveFrom: mar},
	})
	got, _ := table.Resolve("GLASS", "", mar.AddDate(0, 0, 5))
	if !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("rate = %s, want 2", got)
	}
	got, _ = table.Resolve("GLASS", "", jan.AddDate(0, 0, 5))
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("rate = %s, want 1", got)
	}
}
