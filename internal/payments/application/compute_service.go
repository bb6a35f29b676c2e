package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stewardship-cloud/internal/observability/metrics"
	payments "stewardship-cloud/internal/payments/domain"
)

// CallbackKindPaymentBatch tags async computation callbacks.
const CallbackKindPaymentBatch = "payment_batch"

// ComputeRequest asks for one computation batch.
type ComputeRequest struct {
	SchemeID       string
	Category       string
	ParticipantIDs []string
	Exclude        bool
	AuctionLotID   string
	ManifestID     string
	// Period overrides the current period resolved from today.
	Period      string
	CallbackURL string
}

// Validate checks the request before any state is touched.
func (r ComputeRequest) Validate() error {
	if strings.TrimSpace(r.SchemeID) == "" {
		return fmt.Errorf("%w: scheme id required", payments.ErrValidation)
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("%w: participant category required", payments.ErrValidation)
	}
	if _, ok := payments.ParseCategory(r.Category); !ok {
		return fmt.Errorf("%w: %w %q", payments.ErrValidation, payments.ErrUnknownCategory, r.Category)
	}
	return nil
}

// ComputeService owns the batch lifecycle: it creates the batch, runs the
// category strategy in one unit of work and records the outcome.
type ComputeService struct {
	batches   payments.BatchRepository
	uow       payments.UnitOfWork
	sources   SourceLoader
	registry  *StrategyRegistry
	rules     RulesProvider
	publisher BatchPublisher
	notifier  ResultNotifier
	clock     payments.Clock
	logger    *zap.Logger

	wg sync.WaitGroup
}

// ComputeOption customizes the service.
type ComputeOption func(*ComputeService)

// WithBatchPublisher sets the completion event publisher.
func WithBatchPublisher(publisher BatchPublisher) ComputeOption {
	return func(s *ComputeService) { s.publisher = publisher }
}

// WithResultNotifier sets the async callback notifier.
func WithResultNotifier(notifier ResultNotifier) ComputeOption {
	return func(s *ComputeService) { s.notifier = notifier }
}

// WithClock sets the clock.
func WithClock(clock payments.Clock) ComputeOption {
	return func(s *ComputeService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewComputeService constructs the service.
func NewComputeService(
	batches payments.BatchRepository,
	uow payments.UnitOfWork,
	sources SourceLoader,
	registry *StrategyRegistry,
	rules RulesProvider,
	logger *zap.Logger,
	opts ...ComputeOption,
) (*ComputeService, error) {
	if batches == nil {
		return nil, errors.New("compute service: nil batch repository")
	}
	if uow == nil {
		return nil, errors.New("compute service: nil unit of work")
	}
	if sources == nil {
		return nil, errors.New("compute service: nil source loader")
	}
	if registry == nil {
		return nil, errors.New("compute service: nil strategy registry")
	}
	if rules == nil {
		return nil, errors.New("compute service: nil rules provider")
	}
	s := &ComputeService{
		batches:  batches,
		uow:      uow,
		sources:  sources,
		registry: registry,
		rules:    rules,
		clock:    payments.SystemClock{},
		logger:   nopIfNil(logger),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Compute runs one batch. Only request validation errors are returned; run
// failures close the batch as ERROR (ABORT on scheme mismatch) and yield a
// zero summary carrying that status.
func (s *ComputeService) Compute(ctx context.Context, req ComputeRequest) (payments.ExecutionSummary, error) {
	if err := req.Validate(); err != nil {
		return payments.ExecutionSummary{}, err
	}
	category, _ := payments.ParseCategory(req.Category)
	strategy, ok := s.registry.Lookup(category)
	if !ok {
		return payments.ExecutionSummary{}, fmt.Errorf("%w: %w %q", payments.ErrValidation, payments.ErrUnknownCategory, category)
	}
	rules := s.rules.RulesFor(req.SchemeID)
	today := s.clock.Now()
	period, err := resolvePeriod(req.Period, payments.PeriodType(rules.PeriodType), today)
	if err != nil {
		return payments.ExecutionSummary{}, fmt.Errorf("%w: %w", payments.ErrValidation, err)
	}

	start := time.Now()
	result := metrics.ResultError
	defer func() {
		metrics.ObserveBatchCompute(string(category), result, time.Since(start))
	}()

	batch := payments.NewBatch(uuid.NewString(), req.SchemeID, category, period, today)
	log := s.logger.With(
		zap.String("batch_id", batch.ID()),
		zap.String("scheme_id", req.SchemeID),
		zap.String("category", string(category)),
		zap.String("period", period.Value),
	)
	if err := s.batches.Create(ctx, batch); err != nil {
		log.Error("batch create failed", zap.Error(err))
		return zeroSummary(batch, payments.BatchError, err), nil
	}
	if err := batch.MarkInProgress(); err != nil {
		return s.closeFailed(ctx, log, batch, err), nil
	}
	if err := s.batches.Update(ctx, batch); err != nil {
		return s.closeFailed(ctx, log, batch, err), nil
	}
	log.Info("batch started")

	query := payments.SourceQuery{
		SchemeID:     req.SchemeID,
		Category:     category,
		Participants: payments.ParticipantFilter{IDs: req.ParticipantIDs, Exclude: req.Exclude},
		Period:       period,
		AuctionLotID: req.AuctionLotID,
		ManifestID:   req.ManifestID,
	}
	sources, err := s.sources.Load(ctx, query)
	if err != nil {
		return s.closeFailed(ctx, log, batch, fmt.Errorf("load sources: %w", err)), nil
	}
	if err := checkScheme(sources, req.SchemeID); err != nil {
		result = metrics.ResultAbort
		return s.closeFailed(ctx, log, batch, err), nil
	}

	var facts []*payments.TransactionFact
	err = s.uow.Do(ctx, func(ctx context.Context, store payments.Store) error {
		var calcErr error
		facts, calcErr = strategy.Calculate(ctx, Parameters{
			SchemeID:      req.SchemeID,
			Category:      category,
			Rules:         rules,
			Participants:  query.Participants,
			AuctionLotID:  req.AuctionLotID,
			Sources:       sources,
			Today:         today,
			BatchID:       batch.ID(),
			CurrentPeriod: period,
			Store:         store,
		})
		return calcErr
	})
	if err != nil {
		if errors.Is(err, payments.ErrSchemeMismatch) {
			result = metrics.ResultAbort
		}
		return s.closeFailed(ctx, log, batch, err), nil
	}

	if err := batch.Succeed(s.clock.Now()); err != nil {
		log.Error("batch close failed", zap.Error(err))
	}
	if err := s.batches.Update(ctx, batch); err != nil {
		log.Error("batch update failed", zap.Error(err))
	}
	summary := summarize(batch, facts)
	result = metrics.ResultSuccess
	log.Info("batch succeeded",
		zap.Int("transactions", summary.TransactionCount),
		zap.Int("participants", summary.ParticipantCount),
		zap.String("total_amount", summary.TotalAmount.String()),
	)
	if s.publisher != nil {
		if err := s.publisher.PublishBatchCompleted(ctx, summary); err != nil {
			log.Warn("batch completed event publish failed", zap.Error(err))
		}
	}
	return summary, nil
}

// ComputeAsync validates the request, then runs Compute in the background and
// posts the summary to the request callback URL.
func (s *ComputeService) ComputeAsync(req ComputeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := context.Background()
		summary, err := s.Compute(ctx, req)
		if err != nil {
			s.logger.Error("async compute rejected", zap.Error(err))
			return
		}
		if req.CallbackURL == "" || s.notifier == nil {
			return
		}
		if err := s.notifier.Notify(ctx, req.CallbackURL, CallbackKindPaymentBatch, summary); err != nil {
			s.logger.Warn("compute callback failed",
				zap.String("batch_id", summary.BatchID),
				zap.String("callback_url", req.CallbackURL),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until background computations finish.
func (s *ComputeService) Wait() {
	s.wg.Wait()
}

func (s *ComputeService) closeFailed(ctx context.Context, log *zap.Logger, batch *payments.Batch, cause error) payments.ExecutionSummary {
	end := s.clock.Now()
	var err error
	if errors.Is(cause, payments.ErrSchemeMismatch) {
		err = batch.Abort(end, cause)
	} else {
		err = batch.Fail(end, cause)
	}
	if err != nil {
		log.Error("batch close failed", zap.Error(err))
	}
	if err := s.batches.Update(ctx, batch); err != nil {
		log.Error("batch update failed", zap.Error(err))
	}
	log.Error("batch failed",
		zap.String("status", string(batch.Status())),
		zap.Error(cause),
		zap.String("cause_chain", CauseChain(cause)),
	)
	return zeroSummary(batch, batch.Status(), cause)
}

// CauseChain renders every wrapped error, outermost first.
func CauseChain(err error) string {
	var parts []string
	for err != nil {
		parts = append(parts, err.Error())
		err = errors.Unwrap(err)
	}
	return strings.Join(parts, " <- ")
}

func resolvePeriod(raw string, typ payments.PeriodType, today time.Time) (payments.Period, error) {
	if typ == "" {
		typ = payments.PeriodMonth
	}
	if strings.TrimSpace(raw) == "" {
		return payments.PeriodContaining(today, typ), nil
	}
	return payments.ParsePeriod(typ, raw)
}

func checkScheme(set payments.SourceSet, schemeID string) error {
	for _, rec := range set.Records {
		if rec.SchemeID != "" && rec.SchemeID != schemeID {
			return fmt.Errorf("%w: record %s belongs to %s", payments.ErrSchemeMismatch, rec.ID, rec.SchemeID)
		}
	}
	for _, lot := range set.Lots {
		if lot.SchemeID != "" && lot.SchemeID != schemeID {
			return fmt.Errorf("%w: lot %s belongs to %s", payments.ErrSchemeMismatch, lot.LotID, lot.SchemeID)
		}
	}
	for _, p := range set.Targets {
		if p.SchemeID != "" && p.SchemeID != schemeID {
			return fmt.Errorf("%w: participant %s belongs to %s", payments.ErrSchemeMismatch, p.ID, p.SchemeID)
		}
	}
	return nil
}

func zeroSummary(batch *payments.Batch, status payments.BatchStatus, cause error) payments.ExecutionSummary {
	summary := payments.ExecutionSummary{
		BatchID:     batch.ID(),
		SchemeID:    batch.SchemeID(),
		Category:    string(batch.Category()),
		Status:      status,
		Start:       batch.Start(),
		End:         batch.End(),
		TotalAmount: decimal.Zero,
		Period:      batch.Period().Value,
	}
	if cause != nil {
		summary.Error = cause.Error()
	}
	return summary
}

func summarize(batch *payments.Batch, facts []*payments.TransactionFact) payments.ExecutionSummary {
	summary := zeroSummary(batch, batch.Status(), nil)
	participants := make(map[string]struct{})
	for _, f := range facts {
		participants[f.ParticipantID] = struct{}{}
		summary.TotalAmount = summary.TotalAmount.Add(f.GrossAmount)
	}
	summary.TransactionCount = len(facts)
	summary.ParticipantCount = len(participants)
	return summary
}
