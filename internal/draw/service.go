package draw

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mora-interactive/prizevault-backend/internal/ledger"
	"github.com/mora-interactive/prizevault-backend/internal/overrides"
	"github.com/mora-interactive/prizevault-backend/internal/pool"
	"github.com/mora-interactive/prizevault-backend/internal/probability"
	"github.com/mora-interactive/prizevault-backend/pkg/config"
	"github.com/mora-interactive/prizevault-backend/pkg/db"
	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
	"github.com/mora-interactive/prizevault-backend/pkg/enums"
	pkgerrors "github.com/mora-interactive/prizevault-backend/pkg/errors"
	"github.com/mora-interactive/prizevault-backend/pkg/logger"
)

// Block reasons recorded on decisions that resolve without a prize grant.
const (
	ReasonEmergencyStop     = "emergency_stop"
	ReasonEmptyPool         = "empty_pool"
	ReasonNoAffordablePrize = "no_affordable_prize"
	ReasonOverrideBudget    = "programmed_prize_unaffordable"
)

var (
	errContention = errors.New("draw: concurrent commit lost")
	errIntegrity  = errors.New("draw: ledger integrity violated")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type containerLoader interface {
	FindActive(ctx context.Context, id uuid.UUID) (*models.ContainerType, error)
}

type oddsSource interface {
	WinProbability(container *models.ContainerType, period *models.FinancialPeriod) probability.Decision
}

// Metrics receives engine observations. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveDraw(decisionType string, duration time.Duration)
	IncUndrawablePool(containerTypeID string)
	IncContention(containerTypeID string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveDraw(string, time.Duration) {}
func (noopMetrics) IncUndrawablePool(string)          {}
func (noopMetrics) IncContention(string)              {}

// Rand is the randomness the engine samples from. The default implementation
// delegates to math/rand's shared source; tests inject deterministic rolls.
type Rand interface {
	Float64() float64
	Int63n(n int64) int64
	Intn(n int) int
}

type systemRand struct{}

func (systemRand) Float64() float64     { return rand.Float64() }
func (systemRand) Int63n(n int64) int64 { return rand.Int63n(n) }
func (systemRand) Intn(n int) int       { return rand.Intn(n) }

// Input describes one paid draw request.
type Input struct {
	ContainerTypeID uuid.UUID
	UserID          uuid.UUID
	PurchaseID      string
	// PriceCents optionally overrides the container list price, e.g. for a
	// discounted sale. Zero means the container price applies.
	PriceCents int64
}

// PrizeItem is the granted item on a winning draw.
type PrizeItem struct {
	Ref        string
	Name       string
	ValueCents int64
	Quantity   int
}

// Result is the committed outcome of a draw. Replayed is true when the
// purchase id matched an earlier decision and no new state was committed.
type Result struct {
	Decision *models.DrawDecision
	Item     *PrizeItem
	Replayed bool
}

// Won reports whether the result grants a prize to the player.
func (r *Result) Won() bool {
	return r != nil && r.Decision != nil && r.Decision.DecisionType.IsWin()
}

// Service runs the draw state machine: override check, probability sample,
// prize selection, and a single transaction committing budget debit, override
// consumption, and the audit decision together.
type Service interface {
	Draw(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	tx         txRunner
	containers containerLoader
	ledgerRepo ledger.Repository
	poolRepo   pool.Repository
	overrides  overrides.Repository
	decisions  DecisionRepository
	odds       oddsSource
	metrics    Metrics
	log        *logger.Logger
	cfg        config.EngineConfig
	rng        Rand
	now        func() time.Time

	// halted tracks container ids frozen after an observed negative budget.
	// Key uuid.UUID, value string reason.
	halted sync.Map
}

// NewService builds the draw engine.
func NewService(
	tx txRunner,
	containers containerLoader,
	ledgerRepo ledger.Repository,
	poolRepo pool.Repository,
	overrideRepo overrides.Repository,
	decisions DecisionRepository,
	odds oddsSource,
	metrics Metrics,
	log *logger.Logger,
	cfg config.EngineConfig,
	rng Rand,
	now func() time.Time,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if containers == nil {
		return nil, fmt.Errorf("container loader required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if poolRepo == nil {
		return nil, fmt.Errorf("pool repository required")
	}
	if overrideRepo == nil {
		return nil, fmt.Errorf("overrides repository required")
	}
	if decisions == nil {
		return nil, fmt.Errorf("decision repository required")
	}
	if odds == nil {
		return nil, fmt.Errorf("odds source required")
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if log == nil {
		log = logger.New(logger.Options{})
	}
	if rng == nil {
		rng = systemRand{}
	}
	if now == nil {
		now = time.Now
	}
	if cfg.MaxCommitAttempts <= 0 {
		cfg.MaxCommitAttempts = 1
	}
	return &service{
		tx:         tx,
		containers: containers,
		ledgerRepo: ledgerRepo,
		poolRepo:   poolRepo,
		overrides:  overrideRepo,
		decisions:  decisions,
		odds:       odds,
		metrics:    metrics,
		log:        log,
		cfg:        cfg,
		rng:        rng,
		now:        now,
	}, nil
}

func (s *service) Draw(ctx context.Context, input Input) (*Result, error) {
	if input.ContainerTypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "container type id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.PurchaseID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	if reason, frozen := s.halted.Load(input.ContainerTypeID); frozen {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity,
			fmt.Sprintf("container frozen: %s", reason))
	}

	ctx = s.log.WithContainerID(ctx, input.ContainerTypeID.String())
	ctx = s.log.WithPurchaseID(ctx, input.PurchaseID)

	if existing, err := s.decisions.FindByPurchaseID(ctx, input.PurchaseID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup purchase")
	} else if existing != nil {
		return s.replay(existing), nil
	}

	container, err := s.containers.FindActive(ctx, input.ContainerTypeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load container type")
	}
	if container == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "container type not found")
	}
	price := input.PriceCents
	if price == 0 {
		price = container.PriceCents
	}

	started := s.now()
	for attempt := 0; attempt < s.cfg.MaxCommitAttempts; attempt++ {
		result, err := s.attempt(ctx, container, price, input)
		switch {
		case err == nil:
			s.metrics.ObserveDraw(string(result.Decision.DecisionType), s.now().Sub(started))
			return result, nil
		case errors.Is(err, errContention):
			s.metrics.IncContention(container.ID.String())
			continue
		case errors.Is(err, errIntegrity):
			s.freeze(ctx, container.ID, "negative remaining budget")
			return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "financial period budget went negative")
		default:
			return nil, err
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeContention, "draw lost the commit race, retry the purchase")
}

// outcome is the resolved plan for one attempt, computed before the commit
// transaction opens.
type outcome struct {
	decisionType enums.DecisionType
	probability  float64
	payoutCents  int64
	itemRef      *string
	itemName     *string
	quantity     int
	reason       *string
	overrideID   *uuid.UUID
}

func (s *service) attempt(ctx context.Context, container *models.ContainerType, price int64, input Input) (*Result, error) {
	now := s.now()
	period, err := s.ledgerRepo.GetOrCreatePeriod(ctx, container, models.PeriodKeyFor(now))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load financial period")
	}
	if period.RemainingBudgetCents < 0 {
		return nil, errIntegrity
	}

	plan, err := s.resolve(ctx, container, period, input, now)
	if err != nil {
		return nil, err
	}

	decision := &models.DrawDecision{
		ContainerTypeID:      container.ID,
		UserID:               input.UserID,
		PurchaseID:           input.PurchaseID,
		DecisionType:         plan.decisionType,
		ProbabilityUsed:      plan.probability,
		BudgetAvailableCents: period.RemainingBudgetCents,
		SaleCents:            price,
		ResultItemRef:        plan.itemRef,
		ResultItemName:       plan.itemName,
		ResultValueCents:     plan.payoutCents,
		ResultQuantity:       plan.quantity,
		Reason:               plan.reason,
		ProgrammedPrizeID:    plan.overrideID,
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if plan.overrideID != nil {
			consumed, err := s.overrides.WithTx(tx).Consume(ctx, *plan.overrideID)
			if err != nil {
				return err
			}
			if !consumed {
				return errContention
			}
		}
		committed, err := s.ledgerRepo.WithTx(tx).CommitDraw(ctx, period.ID, price, plan.payoutCents)
		if err != nil {
			return err
		}
		if !committed {
			if plan.payoutCents == 0 {
				return errIntegrity
			}
			return errContention
		}
		return s.decisions.WithTx(tx).Create(ctx, decision)
	})
	switch {
	case txErr == nil:
	case errors.Is(txErr, errContention), errors.Is(txErr, errIntegrity):
		return nil, txErr
	case db.IsUniqueViolation(txErr, models.UniqueDrawPurchaseConstraint) || errors.Is(txErr, gorm.ErrDuplicatedKey):
		existing, err := s.decisions.FindByPurchaseID(ctx, input.PurchaseID)
		if err != nil || existing == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "replay purchase lookup")
		}
		return s.replay(existing), nil
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "commit draw")
	}

	if decision.DecisionType == enums.DecisionBudgetBlock {
		s.log.Warn(ctx, "draw blocked by budget controls")
	}
	return &Result{Decision: decision, Item: itemFromDecision(decision)}, nil
}

// resolve runs the pre-commit decision pipeline: scheduled overrides first,
// then the probability controller and weighted sampling.
func (s *service) resolve(ctx context.Context, container *models.ContainerType, period *models.FinancialPeriod, input Input, now time.Time) (outcome, error) {
	override, err := s.overrides.NextPending(ctx, container.ID, input.UserID, now)
	if err != nil {
		return outcome{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load programmed prizes")
	}
	if override != nil {
		if override.ItemValueCents > period.RemainingBudgetCents {
			// The prize stays pending: it may fit after a refill or on a
			// fresh period.
			reason := ReasonOverrideBudget
			s.log.Warn(ctx, "programmed prize exceeds remaining budget")
			return outcome{
				decisionType: enums.DecisionBudgetBlock,
				reason:       &reason,
			}, nil
		}
		id := override.ID
		return outcome{
			decisionType: override.DecisionType(),
			probability:  1,
			payoutCents:  override.ItemValueCents,
			itemRef:      &override.ItemRef,
			itemName:     &override.ItemName,
			quantity:     1,
			overrideID:   &id,
		}, nil
	}

	odds := s.odds.WinProbability(container, period)
	plan := outcome{probability: odds.Probability}
	if s.rng.Float64() >= odds.Probability {
		plan.decisionType = enums.DecisionWeightedLoss
		return plan, nil
	}
	if odds.BudgetBlocked {
		reason := ReasonEmergencyStop
		plan.decisionType = enums.DecisionBudgetBlock
		plan.reason = &reason
		return plan, nil
	}

	entries, err := s.poolRepo.ActiveEntries(ctx, container.ID)
	if err != nil {
		return outcome{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load prize pool")
	}
	entry := s.pick(entries, period.RemainingBudgetCents)
	if entry == nil {
		if pool.TotalWeight(entries) == 0 {
			reason := ReasonEmptyPool
			plan.decisionType = enums.DecisionWeightedLoss
			plan.reason = &reason
			s.metrics.IncUndrawablePool(container.ID.String())
			s.log.Warn(ctx, "prize pool has no drawable entries")
			return plan, nil
		}
		reason := ReasonNoAffordablePrize
		plan.decisionType = enums.DecisionBudgetBlock
		plan.reason = &reason
		return plan, nil
	}

	quantity := s.rollQuantity(entry)
	plan.decisionType = enums.DecisionWeightedWin
	plan.payoutCents = entry.ItemValueCents * int64(quantity)
	plan.itemRef = &entry.ItemRef
	plan.itemName = &entry.ItemName
	plan.quantity = quantity
	plan.overrideID = nil
	if plan.payoutCents > period.RemainingBudgetCents {
		// Quantity pushed the grant past the budget; fall back to one unit.
		plan.quantity = 1
		plan.payoutCents = entry.ItemValueCents
	}
	return plan, nil
}

// pick samples one drawable entry the remaining budget can cover. Unaffordable
// rolls are retried a bounded number of times before restricting the pool to
// affordable entries only.
func (s *service) pick(entries []models.PrizeEntry, budgetCents int64) *models.PrizeEntry {
	total := pool.TotalWeight(entries)
	if total == 0 {
		return nil
	}
	redraws := s.cfg.MaxRedrawAttempts
	if redraws < 1 {
		redraws = 1
	}
	for i := 0; i < redraws; i++ {
		entry := pool.PickWeighted(entries, s.rng.Int63n(total))
		if entry != nil && entry.ItemValueCents <= budgetCents {
			return entry
		}
	}
	affordable := pool.Affordable(entries, budgetCents)
	affordableTotal := pool.TotalWeight(affordable)
	if affordableTotal == 0 {
		return nil
	}
	return pool.PickWeighted(affordable, s.rng.Int63n(affordableTotal))
}

func (s *service) rollQuantity(entry *models.PrizeEntry) int {
	min, max := entry.MinQuantity, entry.MaxQuantity
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	if max == min {
		return min
	}
	return min + s.rng.Intn(max-min+1)
}

func (s *service) replay(decision *models.DrawDecision) *Result {
	return &Result{Decision: decision, Item: itemFromDecision(decision), Replayed: true}
}

func (s *service) freeze(ctx context.Context, containerTypeID uuid.UUID, reason string) {
	s.halted.Store(containerTypeID, reason)
	s.log.Error(ctx, "container frozen pending operator review", errIntegrity)
}

func itemFromDecision(decision *models.DrawDecision) *PrizeItem {
	if !decision.DecisionType.IsWin() || decision.ResultItemRef == nil {
		return nil
	}
	item := &PrizeItem{
		Ref:        *decision.ResultItemRef,
		ValueCents: decision.ResultValueCents,
		Quantity:   decision.ResultQuantity,
	}
	if decision.ResultItemName != nil {
		item.Name = *decision.ResultItemName
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	return item
}
