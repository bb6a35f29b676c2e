package memory

import (
	"context"
	"sync"

	payments "stewardship-cloud/internal/payments/domain"
)

// Sources is an in-memory source loader keyed by category.
type Sources struct {
	mu      sync.RWMutex
	records map[payments.ParticipantCategory][]payments.SourceRecord
	lots    []payments.AuctionLot
	targets []payments.Participant
}

// NewSources constructs an empty loader.
func NewSources() *Sources {
	return &Sources{records: make(map[payments.ParticipantCategory][]payments.SourceRecord)}
}

// AddRecords appends source records of a category.
func (s *Sources) AddRecords(category payments.ParticipantCategory, records ...payments.SourceRecord) {
	s.mu.Lock()
	s.records[category] = append(s.records[category], records...)
	s.mu.Unlock()
}

// ReplaceRecords drops existing records of a category.
func (s *Sources) ReplaceRecords(category payments.ParticipantCategory, records ...payments.SourceRecord) {
	s.mu.Lock()
	s.records[category] = append([]payments.SourceRecord(nil), records...)
	s.mu.Unlock()
}

// AddLots appends auction lots.
func (s *Sources) AddLots(lots ...payments.AuctionLot) {
	s.mu.Lock()
	s.lots = append(s.lots, lots...)
	s.mu.Unlock()
}

// AddTargets appends manufacturers expected to declare.
func (s *Sources) AddTargets(participants ...payments.Participant) {
	s.mu.Lock()
	s.targets = append(s.targets, participants...)
	s.mu.Unlock()
}

// Load returns records of the query period plus late entries of earlier
// periods. Earlier manufacturer declarations double as forecast history.
func (s *Sources) Load(ctx context.Context, q payments.SourceQuery) (payments.SourceSet, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	var set payments.SourceSet
	end := q.Period.End()
	for _, rec := range s.records[q.Category] {
		if !q.Participants.Allows(rec.ParticipantID) {
			continue
		}
		if !q.Period.Start.IsZero() && !rec.PeriodStart.Before(end) {
			continue
		}
		if rec.PeriodStart.Before(q.Period.Start) {
			if q.Category == payments.CategoryManufacturer {
				set.History = append(set.History, rec)
			}
			if rec.EntryType != payments.EntryLate {
				continue
			}
		}
		set.Records = append(set.Records, rec)
	}
	if q.Category == payments.CategoryAuction {
		for _, lot := range s.lots {
			if q.AuctionLotID != "" && lot.LotID != q.AuctionLotID {
				continue
			}
			if q.ManifestID != "" && lot.ManifestID != q.ManifestID {
				continue
			}
			set.Lots = append(set.Lots, lot)
		}
	}
	if q.Category == payments.CategoryManufacturer {
		for _, p := range s.targets {
			if q.Participants.Allows(p.ID) {
				set.Targets = append(set.Targets, p)
			}
		}
	}
	return set, nil
}
