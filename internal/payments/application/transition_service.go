package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	payments "stewardship-cloud/internal/payments/domain"
)

// Transition outcomes per participant.
const (
	TransitionUpdated     = "UPDATED"
	TransitionNoLiveFacts = "NO_LIVE_FACTS"
	TransitionInvalid     = "INVALID_TRANSITION"
)

// TransitionItem moves one participant's live facts to a new status.
type TransitionItem struct {
	ParticipantID string
	NewStatus     string
}

// TransitionRequest lists status changes within a scheme and category.
type TransitionRequest struct {
	SchemeID string
	Category string
	Items    []TransitionItem
}

// TransitionResult reports counts and per-participant outcomes.
type TransitionResult struct {
	Updated  int               `json:"updated"`
	Skipped  int               `json:"skipped"`
	Outcomes map[string]string `json:"outcomes"`
}

// TransitionService applies review workflow status changes to facts.
type TransitionService struct {
	uow    payments.UnitOfWork
	logger *zap.Logger
}

// NewTransitionService constructs the service.
func NewTransitionService(uow payments.UnitOfWork, logger *zap.Logger) (*TransitionService, error) {
	if uow == nil {
		return nil, errors.New("transition service: nil unit of work")
	}
	return &TransitionService{uow: uow, logger: nopIfNil(logger)}, nil
}

// Apply moves each listed participant's live facts whose current status may
// transition to the requested one. Facts that may not move are skipped.
func (s *TransitionService) Apply(ctx context.Context, req TransitionRequest) (TransitionResult, error) {
	result := TransitionResult{Outcomes: make(map[string]string, len(req.Items))}
	if strings.TrimSpace(req.SchemeID) == "" {
		return result, fmt.Errorf("%w: scheme id required", payments.ErrValidation)
	}
	category, ok := payments.ParseCategory(req.Category)
	if !ok {
		return result, fmt.Errorf("%w: %w %q", payments.ErrValidation, payments.ErrUnknownCategory, req.Category)
	}
	for _, item := range req.Items {
		if item.ParticipantID == "" {
			return result, fmt.Errorf("%w: participant id required", payments.ErrValidation)
		}
		if _, ok := payments.ParseFactStatus(item.NewStatus); !ok {
			return result, fmt.Errorf("%w: unknown status %q", payments.ErrValidation, item.NewStatus)
		}
	}

	err := s.uow.Do(ctx, func(ctx context.Context, store payments.Store) error {
		for _, item := range req.Items {
			next := payments.FactStatus(item.NewStatus)
			facts, err := store.Facts().List(ctx, payments.FactFilter{
				SchemeID:     req.SchemeID,
				Category:     category,
				Participants: payments.ParticipantFilter{IDs: []string{item.ParticipantID}},
			})
			if err != nil {
				return err
			}
			var (
				ids  []string
				from []payments.FactStatus
			)
			live := 0
			for _, f := range facts {
				if !f.Status.Live() {
					continue
				}
				live++
				if f.Status.CanTransition(next) {
					ids = append(ids, f.ID)
					from = appendStatus(from, f.Status)
				}
			}
			switch {
			case live == 0:
				result.Outcomes[item.ParticipantID] = TransitionNoLiveFacts
			case len(ids) == 0:
				result.Outcomes[item.ParticipantID] = TransitionInvalid
			default:
				result.Outcomes[item.ParticipantID] = TransitionUpdated
			}
			result.Skipped += live - len(ids)
			if len(ids) == 0 {
				continue
			}
			n, err := store.Facts().UpdateStatus(ctx, ids, from, next)
			if err != nil {
				return err
			}
			if n != len(ids) {
				return fmt.Errorf("%w: %s moved %d of %d facts", payments.ErrConcurrentUpdate, item.ParticipantID, n, len(ids))
			}
			result.Updated += len(ids)
		}
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}
	s.logger.Info("fact status transition",
		zap.String("scheme_id", req.SchemeID),
		zap.String("category", string(category)),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func appendStatus(set []payments.FactStatus, status payments.FactStatus) []payments.FactStatus {
	for _, st := range set {
		if st == status {
			return set
		}
	}
	return append(set, status)
}
