package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	invoicing "stewardship-cloud/internal/invoicing/domain"
	"stewardship-cloud/internal/observability/metrics"
	payments "stewardship-cloud/internal/payments/domain"
	"stewardship-cloud/internal/scheme"
)

// CallbackKindInvoiceBatch tags async generation callbacks.
const CallbackKindInvoiceBatch = "invoice_batch"

// GenerateRequest selects the invoiceable facts of one category.
type GenerateRequest struct {
	SchemeID            string
	Category            string
	ParticipantIDs      []string
	Exclude             bool
	PaymentTypes        []string
	ExcludePaymentTypes bool
	AuctionLotID        string
	CallbackURL         string
}

// Validate checks the request before any state is touched.
func (r GenerateRequest) Validate() error {
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

func (r GenerateRequest) allowsPaymentType(paymentType string) bool {
	return payments.ParticipantFilter{IDs: r.PaymentTypes, Exclude: r.ExcludePaymentTypes}.Allows(paymentType)
}

// GenerateResult lists the documents of one run and the per-participant
// failures.
type GenerateResult struct {
	InvoiceBatchID string                `json:"invoiceBatchId"`
	SchemeID       string                `json:"schemeId"`
	Documents      []*invoicing.Document `json:"documents"`
	Errors         []string              `json:"errors"`
}

// GenerationService groups invoiceable facts into documents, one isolated
// unit of work per participant.
type GenerationService struct {
	facts         payments.FactRepository
	uow           invoicing.UnitOfWork
	documents     invoicing.DocumentRepository
	attributes    invoicing.AttributeSource
	relationships invoicing.RelationshipSource
	rules         RulesProvider
	publisher     GenerationPublisher
	notifier      ResultNotifier
	clock         payments.Clock
	logger        *zap.Logger

	wg sync.WaitGroup
}

// GenerationOption customizes the service.
type GenerationOption func(*GenerationService)

// WithGenerationPublisher sets the batch event publisher.
func WithGenerationPublisher(publisher GenerationPublisher) GenerationOption {
	return func(s *GenerationService) { s.publisher = publisher }
}

// WithResultNotifier sets the async callback notifier.
func WithResultNotifier(notifier ResultNotifier) GenerationOption {
	return func(s *GenerationService) { s.notifier = notifier }
}

// WithClock sets the clock.
func WithClock(clock payments.Clock) GenerationOption {
	return func(s *GenerationService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewGenerationService constructs the service.
func NewGenerationService(
	facts payments.FactRepository,
	uow invoicing.UnitOfWork,
	documents invoicing.DocumentRepository,
	attributes invoicing.AttributeSource,
	relationships invoicing.RelationshipSource,
	rules RulesProvider,
	logger *zap.Logger,
	opts ...GenerationOption,
) (*GenerationService, error) {
	if facts == nil {
		return nil, errors.New("generation service: nil fact repository")
	}
	if uow == nil {
		return nil, errors.New("generation service: nil unit of work")
	}
	if documents == nil {
		return nil, errors.New("generation service: nil document repository")
	}
	if attributes == nil {
		return nil, errors.New("generation service: nil attribute source")
	}
	if relationships == nil {
		return nil, errors.New("generation service: nil relationship source")
	}
	if rules == nil {
		return nil, errors.New("generation service: nil rules provider")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &GenerationService{
		facts:         facts,
		uow:           uow,
		documents:     documents,
		attributes:    attributes,
		relationships: relationships,
		rules:         rules,
		clock:         payments.SystemClock{},
		logger:        logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Generate invoices every eligible fact. A participant's failure is recorded
// in the result and does not affect the others; validation errors and scheme
// mismatches are returned.
func (s *GenerationService) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if err := req.Validate(); err != nil {
		return GenerateResult{}, err
	}
	category, _ := payments.ParseCategory(req.Category)

	start := time.Now()
	outcome := metrics.ResultError
	defer func() {
		metrics.ObserveInvoiceGenerate(outcome, time.Since(start))
	}()

	facts, err := s.eligible(ctx, req, category)
	if err != nil {
		if errors.Is(err, payments.ErrSchemeMismatch) {
			outcome = metrics.ResultAbort
		}
		return GenerateResult{}, err
	}

	result := GenerateResult{InvoiceBatchID: uuid.NewString(), SchemeID: req.SchemeID}
	log := s.logger.With(
		zap.String("invoice_batch_id", result.InvoiceBatchID),
		zap.String("scheme_id", req.SchemeID),
		zap.String("category", string(category)),
	)

	rules := s.rules.RulesFor(req.SchemeID)
	cache, err := NewAttributeCache(req.SchemeID, s.attributes)
	if err != nil {
		return GenerateResult{}, err
	}
	builder, err := NewLineBuilder(cache, rules, s.clock)
	if err != nil {
		return GenerateResult{}, err
	}
	numbers := newDocumentNumberer(rules, result.InvoiceBatchID)

	byParticipant := make(map[string][]*payments.TransactionFact)
	for _, f := range facts {
		byParticipant[f.ParticipantID] = append(byParticipant[f.ParticipantID], f)
	}
	participants := make([]string, 0, len(byParticipant))
	for id := range byParticipant {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	for _, participantID := range participants {
		docs, notices, err := s.generateParticipant(ctx, builder, numbers, rules, category, result.InvoiceBatchID, byParticipant[participantID])
		result.Errors = append(result.Errors, notices...)
		if err != nil {
			if errors.Is(err, payments.ErrSchemeMismatch) {
				outcome = metrics.ResultAbort
				log.Error("invoice generation aborted", zap.String("participant_id", participantID), zap.Error(err))
				return GenerateResult{}, err
			}
			metrics.IncInvoiceParticipantError(string(category))
			log.Warn("participant invoicing failed", zap.String("participant_id", participantID), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("participant %s: %v", participantID, err))
			continue
		}
		for _, doc := range docs {
			metrics.IncInvoiceDocument(string(doc.Type))
		}
		result.Documents = append(result.Documents, docs...)
	}

	outcome = metrics.ResultSuccess
	log.Info("invoice generation finished",
		zap.Int("participants", len(participants)),
		zap.Int("documents", len(result.Documents)),
		zap.Int("errors", len(result.Errors)),
		zap.Int("cached_attributes", cache.Len()),
	)
	if s.publisher != nil && len(result.Documents) > 0 {
		if err := s.publisher.PublishInvoiceBatchGenerated(ctx, result); err != nil {
			log.Warn("invoice batch event publish failed", zap.Error(err))
		}
	}
	return result, nil
}

// GenerateAsync validates the request, then runs Generate in the background
// and posts the result to the request callback URL.
func (s *GenerationService) GenerateAsync(req GenerateRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := context.Background()
		result, err := s.Generate(ctx, req)
		if err != nil {
			s.logger.Error("async invoice generation failed", zap.String("scheme_id", req.SchemeID), zap.Error(err))
			result = GenerateResult{SchemeID: req.SchemeID, Errors: []string{err.Error()}}
		}
		if req.CallbackURL == "" || s.notifier == nil {
			return
		}
		if err := s.notifier.Notify(ctx, req.CallbackURL, CallbackKindInvoiceBatch, result); err != nil {
			s.logger.Warn("generation callback failed",
				zap.String("invoice_batch_id", result.InvoiceBatchID),
				zap.String("callback_url", req.CallbackURL),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until background generations finish.
func (s *GenerationService) Wait() {
	s.wg.Wait()
}

// Documents returns the documents of an invoice batch.
func (s *GenerationService) Documents(ctx context.Context, invoiceBatchID string) ([]*invoicing.Document, error) {
	docs, err := s.documents.ListByBatch(ctx, invoiceBatchID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, invoicing.ErrDocumentNotFound
	}
	return docs, nil
}

// MarkSynced stamps the unsynced documents of an invoice batch as delivered.
func (s *GenerationService) MarkSynced(ctx context.Context, invoiceBatchID string) (int, error) {
	if _, err := s.Documents(ctx, invoiceBatchID); err != nil {
		return 0, err
	}
	n, err := s.documents.MarkSynced(ctx, invoiceBatchID, s.clock.Now())
	if err != nil {
		return 0, err
	}
	s.logger.Info("invoice documents synced", zap.String("invoice_batch_id", invoiceBatchID), zap.Int("documents", n))
	return n, nil
}

func (s *GenerationService) eligible(ctx context.Context, req GenerateRequest, category payments.ParticipantCategory) ([]*payments.TransactionFact, error) {
	listed, err := s.facts.List(ctx, payments.FactFilter{
		SchemeID:     req.SchemeID,
		Category:     category,
		Statuses:     []payments.FactStatus{payments.FactAwaitingInvoicing},
		Participants: payments.ParticipantFilter{IDs: req.ParticipantIDs, Exclude: req.Exclude},
		AuctionLotID: req.AuctionLotID,
	})
	if err != nil {
		return nil, fmt.Errorf("list invoiceable facts: %w", err)
	}
	var facts []*payments.TransactionFact
	for _, f := range listed {
		if f.SchemeID != req.SchemeID {
			return nil, fmt.Errorf("%w: fact %s belongs to %s", payments.ErrSchemeMismatch, f.ID, f.SchemeID)
		}
		if !req.allowsPaymentType(f.PaymentType) {
			continue
		}
		facts = append(facts, f)
	}
	return facts, nil
}

func (s *GenerationService) generateParticipant(
	ctx context.Context,
	builder *LineBuilder,
	numbers *documentNumberer,
	rules scheme.Rules,
	category payments.ParticipantCategory,
	invoiceBatchID string,
	facts []*payments.TransactionFact,
) ([]*invoicing.Document, []string, error) {
	groups, notices, err := s.partition(ctx, rules, category, facts)
	if err != nil {
		return nil, notices, err
	}
	if len(groups) == 0 {
		return nil, notices, nil
	}

	mark := numbers.mark()
	var docs []*invoicing.Document
	err = s.uow.Do(ctx, func(ctx context.Context, tx invoicing.Tx) error {
		var consumed []string
		for _, g := range groups {
			built, err := builder.Build(ctx, g)
			if err != nil {
				return err
			}
			for _, doc := range built {
				doc.InvoiceBatchID = invoiceBatchID
				doc.Number = numbers.next(doc.Type)
				if err := tx.Documents().Save(ctx, doc); err != nil {
					return fmt.Errorf("save document %s: %w", doc.Number, err)
				}
			}
			docs = append(docs, built...)
			for _, f := range g.Facts {
				consumed = append(consumed, f.ID)
			}
		}
		n, err := tx.Facts().UpdateStatus(ctx, consumed, []payments.FactStatus{payments.FactAwaitingInvoicing}, payments.FactInvoiced)
		if err != nil {
			return fmt.Errorf("mark facts invoiced: %w", err)
		}
		if n != len(consumed) {
			return fmt.Errorf("%w: invoiced %d of %d facts", payments.ErrConcurrentUpdate, n, len(consumed))
		}
		return nil
	})
	if err != nil {
		numbers.reset(mark)
		return nil, notices, err
	}
	return docs, notices, nil
}

// partition splits one participant's facts into document groups: by payment
// type, then by lot for auctions, then by counterparty legal entity and
// payment method for split categories. Facts of split categories without an
// active relationship are left out and reported.
func (s *GenerationService) partition(ctx context.Context, rules scheme.Rules, category payments.ParticipantCategory, facts []*payments.TransactionFact) ([]Group, []string, error) {
	type groupKey struct {
		paymentType   string
		lotID         string
		legalEntity   string
		paymentMethod string
	}
	index := make(map[groupKey]*Group)
	var order []groupKey
	var notices []string
	unmatched := make(map[string]struct{})
	split := rules.SplitsCategory(string(category))

	for _, f := range facts {
		key := groupKey{paymentType: f.PaymentType}
		var counterparty *invoicing.Relationship
		if category == payments.CategoryAuction {
			key.lotID = f.AuctionLotID
		}
		if split {
			rel, ok, err := s.relationships.ActiveRelationship(ctx, f.SchemeID, f.ParticipantID, f.MaterialID, f.PeriodStart)
			if err != nil {
				return nil, notices, fmt.Errorf("relationship lookup %s: %w", f.MaterialID, err)
			}
			if !ok {
				if _, seen := unmatched[f.MaterialID]; !seen {
					unmatched[f.MaterialID] = struct{}{}
					notices = append(notices, fmt.Errorf("participant %s: material %s: %w", f.ParticipantID, f.MaterialID, invoicing.ErrUnmatchedRelationship).Error())
				}
				continue
			}
			key.legalEntity = rel.LegalEntity
			key.paymentMethod = rel.PaymentMethod
			counterparty = &rel
		}
		g, ok := index[key]
		if !ok {
			g = &Group{
				SchemeID:        f.SchemeID,
				Category:        category,
				ParticipantID:   f.ParticipantID,
				ParticipantName: f.ParticipantName,
				PaymentType:     f.PaymentType,
				PaymentMethod:   key.paymentMethod,
				AuctionLotID:    key.lotID,
				Counterparty:    counterparty,
			}
			if g.PaymentMethod == "" {
				g.PaymentMethod = f.PaymentMethod
			}
			index[key] = g
			order = append(order, key)
		}
		g.Facts = append(g.Facts, f)
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.paymentType != b.paymentType {
			return a.paymentType < b.paymentType
		}
		if a.lotID != b.lotID {
			return a.lotID < b.lotID
		}
		if a.legalEntity != b.legalEntity {
			return a.legalEntity < b.legalEntity
		}
		return a.paymentMethod < b.paymentMethod
	})
	groups := make([]Group, 0, len(order))
	for _, k := range order {
		groups = append(groups, *index[k])
	}
	return groups, notices, nil
}

// documentNumberer hands out per-run document numbers by document type.
type documentNumberer struct {
	payablePrefix    string
	receivablePrefix string
	batchTag         string
	seq              int
}

func newDocumentNumberer(rules scheme.Rules, invoiceBatchID string) *documentNumberer {
	tag := strings.ReplaceAll(invoiceBatchID, "-", "")
	if len(tag) > 8 {
		tag = tag[:8]
	}
	return &documentNumberer{
		payablePrefix:    rules.PayablePrefix,
		receivablePrefix: rules.ReceivablePrefix,
		batchTag:         strings.ToUpper(tag),
	}
}

func (n *documentNumberer) next(docType invoicing.DocumentType) string {
	n.seq++
	prefix := n.payablePrefix
	if docType == invoicing.DocumentReceivable {
		prefix = n.receivablePrefix
	}
	return fmt.Sprintf("%s-%s-%05d", prefix, n.batchTag, n.seq)
}

func (n *documentNumberer) mark() int { return n.seq }

func (n *documentNumberer) reset(mark int) { n.seq = mark }
