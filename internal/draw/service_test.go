package draw

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mora-interactive/prizevault-backend/internal/ledger"
	"github.com/mora-interactive/prizevault-backend/internal/overrides"
	"github.com/mora-interactive/prizevault-backend/internal/pool"
	"github.com/mora-interactive/prizevault-backend/internal/probability"
	"github.com/mora-interactive/prizevault-backend/pkg/config"
	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
	"github.com/mora-interactive/prizevault-backend/pkg/enums"
	pkgerrors "github.com/mora-interactive/prizevault-backend/pkg/errors"
)

type stubTx struct {
	calls int
	err   error
}

func (s *stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return fn(nil)
}

type stubContainers struct {
	container *models.ContainerType
	calls     int
	err       error
}

func (s *stubContainers) FindActive(ctx context.Context, id uuid.UUID) (*models.ContainerType, error) {
	s.calls++
	return s.container, s.err
}

type stubLedger struct {
	period        *models.FinancialPeriod
	commitResults []bool
	commitCalls   int
	lastSale      int64
	lastPayout    int64
	commitErr     error
}

func (s *stubLedger) WithTx(tx *gorm.DB) ledger.Repository { return s }

func (s *stubLedger) GetOrCreatePeriod(ctx context.Context, container *models.ContainerType, periodKey string) (*models.FinancialPeriod, error) {
	return s.period, nil
}

func (s *stubLedger) FindPeriod(ctx context.Context, containerTypeID uuid.UUID, periodKey string) (*models.FinancialPeriod, error) {
	return s.period, nil
}

func (s *stubLedger) CommitDraw(ctx context.Context, periodID uuid.UUID, saleCents, payoutCents int64) (bool, error) {
	s.commitCalls++
	s.lastSale = saleCents
	s.lastPayout = payoutCents
	if s.commitErr != nil {
		return false, s.commitErr
	}
	if len(s.commitResults) == 0 {
		return true, nil
	}
	result := s.commitResults[0]
	s.commitResults = s.commitResults[1:]
	return result, nil
}

func (s *stubLedger) Credit(ctx context.Context, periodID uuid.UUID, amountCents int64) error {
	return nil
}

func (s *stubLedger) RefillIfLow(ctx context.Context, periodID uuid.UUID, ceilingCents int64, now time.Time) (bool, error) {
	return false, nil
}

func (s *stubLedger) ListPeriodsForDate(ctx context.Context, periodKey string) ([]models.FinancialPeriod, error) {
	return nil, nil
}

type stubPool struct {
	entries []models.PrizeEntry
	err     error
}

func (s *stubPool) WithTx(tx *gorm.DB) pool.Repository { return s }

func (s *stubPool) ActiveEntries(ctx context.Context, containerTypeID uuid.UUID) ([]models.PrizeEntry, error) {
	return s.entries, s.err
}

func (s *stubPool) UpsertEntry(ctx context.Context, entry *models.PrizeEntry) error { return nil }

func (s *stubPool) FindEntry(ctx context.Context, id uuid.UUID) (*models.PrizeEntry, error) {
	return nil, gorm.ErrRecordNotFound
}

type stubOverrides struct {
	pending      *models.ProgrammedPrize
	consumeCalls int
	consumeOK    bool
}

func (s *stubOverrides) WithTx(tx *gorm.DB) overrides.Repository { return s }

func (s *stubOverrides) Create(ctx context.Context, prize *models.ProgrammedPrize) error { return nil }

func (s *stubOverrides) Find(ctx context.Context, id uuid.UUID) (*models.ProgrammedPrize, error) {
	return s.pending, nil
}

func (s *stubOverrides) NextPending(ctx context.Context, containerTypeID, userID uuid.UUID, now time.Time) (*models.ProgrammedPrize, error) {
	return s.pending, nil
}

func (s *stubOverrides) Consume(ctx context.Context, id uuid.UUID) (bool, error) {
	s.consumeCalls++
	return s.consumeOK, nil
}

func (s *stubOverrides) Revoke(ctx context.Context, id uuid.UUID) (bool, error) { return false, nil }

func (s *stubOverrides) ExpireDue(ctx context.Context, now time.Time) (int64, error) { return 0, nil }

type stubDecisions struct {
	existing  *models.DrawDecision
	created   *models.DrawDecision
	createErr error
	// replayAfterCreate is surfaced by FindByPurchaseID once Create has
	// failed, mimicking a concurrent insert winning the unique index race.
	replayAfterCreate *models.DrawDecision
}

func (s *stubDecisions) WithTx(tx *gorm.DB) DecisionRepository { return s }

func (s *stubDecisions) Create(ctx context.Context, decision *models.DrawDecision) error {
	if s.createErr != nil {
		s.existing = s.replayAfterCreate
		return s.createErr
	}
	s.created = decision
	return nil
}

func (s *stubDecisions) FindByPurchaseID(ctx context.Context, purchaseID string) (*models.DrawDecision, error) {
	return s.existing, nil
}

func (s *stubDecisions) ListByContainerSince(ctx context.Context, containerTypeID uuid.UUID, since time.Time, limit int) ([]models.DrawDecision, error) {
	return nil, nil
}

type stubOdds struct {
	decision probability.Decision
}

func (s *stubOdds) WinProbability(container *models.ContainerType, period *models.FinancialPeriod) probability.Decision {
	return s.decision
}

type stubMetrics struct {
	draws       []string
	undrawable  int
	contentions int
}

func (s *stubMetrics) ObserveDraw(decisionType string, _ time.Duration) {
	s.draws = append(s.draws, decisionType)
}

func (s *stubMetrics) IncUndrawablePool(string) { s.undrawable++ }
func (s *stubMetrics) IncContention(string)     { s.contentions++ }

type scriptRand struct {
	floats []float64
	rolls  []int64
	ints   []int
}

func (s *scriptRand) Float64() float64 {
	if len(s.floats) == 0 {
		return 0
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptRand) Int63n(n int64) int64 {
	if len(s.rolls) == 0 {
		return 0
	}
	v := s.rolls[0]
	s.rolls = s.rolls[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func (s *scriptRand) Intn(n int) int {
	if len(s.ints) == 0 {
		return 0
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

type engineFixture struct {
	tx         *stubTx
	containers *stubContainers
	ledger     *stubLedger
	pool       *stubPool
	overrides  *stubOverrides
	decisions  *stubDecisions
	odds       *stubOdds
	metrics    *stubMetrics
	rng        *scriptRand
	svc        Service
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	containerID := uuid.New()
	f := &engineFixture{
		tx: &stubTx{},
		containers: &stubContainers{container: &models.ContainerType{
			ID:         containerID,
			PriceCents: 1000,
			RTPTarget:  0.5,
			RTPEnabled: true,
			Active:     true,
		}},
		ledger: &stubLedger{period: &models.FinancialPeriod{
			ID:                   uuid.New(),
			ContainerTypeID:      containerID,
			DailyBudgetCents:     10000,
			RemainingBudgetCents: 10000,
		}},
		pool: &stubPool{entries: []models.PrizeEntry{{
			ID:             uuid.New(),
			ItemRef:        "item-emerald",
			ItemName:       "Emerald",
			ItemValueCents: 500,
			Weight:         10,
			MinQuantity:    1,
			MaxQuantity:    1,
			Active:         true,
		}}},
		overrides: &stubOverrides{consumeOK: true},
		decisions: &stubDecisions{},
		odds:      &stubOdds{decision: probability.Decision{Probability: 0.5}},
		metrics:   &stubMetrics{},
		rng:       &scriptRand{},
	}
	svc, err := NewService(
		f.tx, f.containers, f.ledger, f.pool, f.overrides, f.decisions,
		f.odds, f.metrics, nil,
		config.EngineConfig{MaxCommitAttempts: 3, MaxRedrawAttempts: 3},
		f.rng, func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) },
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *engineFixture) input() Input {
	return Input{
		ContainerTypeID: f.containers.container.ID,
		UserID:          uuid.New(),
		PurchaseID:      uuid.NewString(),
	}
}

func errCode(t *testing.T, err error) pkgerrors.Code {
	t.Helper()
	coded := pkgerrors.As(err)
	if coded == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	return coded.Code()
}

func TestDrawRejectsInvalidInput(t *testing.T) {
	f := newEngineFixture(t)
	cases := []Input{
		{UserID: uuid.New(), PurchaseID: "p-1"},
		{ContainerTypeID: uuid.New(), PurchaseID: "p-1"},
		{ContainerTypeID: uuid.New(), UserID: uuid.New()},
		{ContainerTypeID: uuid.New(), UserID: uuid.New(), PurchaseID: "p-1", PriceCents: -5},
	}
	for _, input := range cases {
		if _, err := f.svc.Draw(context.Background(), input); errCode(t, err) != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %+v", input)
		}
	}
	if f.tx.calls != 0 {
		t.Fatalf("no transaction expected, got %d", f.tx.calls)
	}
}

func TestDrawUnknownContainer(t *testing.T) {
	f := newEngineFixture(t)
	input := f.input()
	f.containers.container = nil

	_, err := f.svc.Draw(context.Background(), input)
	if errCode(t, err) != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDrawWeightedWinCommitsAtomically(t *testing.T) {
	f := newEngineFixture(t)
	f.rng.floats = []float64{0.25}

	result, err := f.svc.Draw(context.Background(), f.input())
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if !result.Won() || result.Replayed {
		t.Fatalf("expected fresh win, got %+v", result)
	}
	if result.Decision.DecisionType != enums.DecisionWeightedWin {
		t.Fatalf("decision type = %s", result.Decision.DecisionType)
	}
	if result.Item == nil || result.Item.Ref != "item-emerald" || result.Item.Quantity != 1 {
		t.Fatalf("unexpected item %+v", result.Item)
	}
	if f.tx.calls != 1 {
		t.Fatalf("expected one transaction, got %d", f.tx.calls)
	}
	if f.ledger.lastSale != 1000 || f.ledger.lastPayout != 500 {
		t.Fatalf("commit sale=%d payout=%d", f.ledger.lastSale, f.ledger.lastPayout)
	}
	if f.decisions.created == nil || f.decisions.created.ProbabilityUsed != 0.5 {
		t.Fatalf("decision not persisted: %+v", f.decisions.created)
	}
	if f.decisions.created.BudgetAvailableCents != 10000 {
		t.Fatalf("budget snapshot = %d", f.decisions.created.BudgetAvailableCents)
	}
}

func TestDrawLossStillDebitsSale(t *testing.T) {
	f := newEngineFixture(t)
	f.rng.floats = []float64{0.99}

	result, err := f.svc.Draw(context.Background(), f.input())
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.Won() || result.Item != nil {
		t.Fatalf("expected loss, got %+v", result)
	}
	if result.Decision.DecisionType != enums.DecisionWeightedLoss {
		t.Fatalf("decision type = %s", result.Decision.DecisionType)
	}
	if f.ledger.lastSale != 1000 || f.ledger.lastPayout != 0 {
		t.Fatalf("commit sale=%d payout=%d", f.ledger.lastSale, f.ledger.lastPayout)
	}
}

func TestDrawEmergencyStopRecordsBudgetBlock(t *testing.T) {
	f := newEngineFixture(t)
	f.odds.decision = probability.Decision{Probability: 0.001, BudgetBlocked: true}
	f.rng.floats = []float64{0.0001}

	result, err := f.svc.Draw(context.Background(), f.input())
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.Decision.DecisionType != enums.DecisionBudgetBlock {
		t.Fatalf("decision type = %s", result.Decision.DecisionType)
	}
	if result.Decision.Reason == nil || *result.Decision.Reason != ReasonEmergencyStop {
		t.Fatalf("reason = %v", result.Decision.Reason)
	}
	if f.ledger.lastPayout != 0 {
		t.Fatalf("blocked draw must not pay, payout=%d", f.ledger.lastPayout)
	}
}

func TestDrawProgrammedPrizeConsumedInTransaction(t *testing.T) {
	f := newEngineFixture(t)
	f.overrides.pending = &models.ProgrammedPrize{
		ID:              uuid.New(),
		ContainerTypeID: f.containers.container.ID,
		ItemRef:         "item-grand",
		ItemName:        "Grand Prize",
		ItemValueCents:  4000,
		Status:          enums.ProgrammedPrizePending,
		MaxUses:         1,
	}
	// The Bernoulli sample must never run for an override draw.
	f.rng.floats = []float64{0.9999}

	result, err := f.svc.Draw(context.Background(), f.input())
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.Decision.DecisionType != enums.DecisionProgrammedPrize {
		t.Fatalf("decision type = %s", result.Decision.DecisionType)
	}
	if result.Decision.ProbabilityUsed != 1 {
		t.Fatalf("probability = %f", result.Decision.ProbabilityUsed)
	}
	if f.overrides.consumeCalls != 1 {
		t.Fatalf("consume calls = %d", f.overrides.consumeCalls)
	}
	if f.ledger.lastPayout != 4000 {
		t.Fatalf("payout = %d", f.ledger.lastPayout)
	}
	if result.Decision.ProgrammedPrizeID == nil || *result.Decision.ProgrammedPrizeID != f.overrides.pending.ID {
		t.Fatalf("programmed prize id not recorded")
	}
}

func TestDrawUnaffordableProgrammedPrizeStaysPending(t *testing.T) {
	f := newEngineFixture(t)
	f.ledger.period.RemainingBudgetCents = 100
	f.overrides.pending = &models.ProgrammedPrize{
		ID:             uuid.New(),
		ItemRef:        "item-grand",
		ItemName:       "Grand Prize",
		ItemValueCents: 4000,
		Status:         enums.ProgrammedPrizePending,
		MaxUses:        1,
	}

	result, err := f.svc.Draw(context.Background(), f.input())
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.Decision.DecisionType != enums.DecisionBudgetBlock {
		t.Fatalf("decision type = %s", result.Decision.DecisionType)
	}
	if result.Decision.Reason == nil || *result.Decision.Reason != ReasonOverrideBudget {
		t.Fatalf("reason = %v", result.Decision.Reason)
	}
	if f.overrides.consumeCalls != 0 {
		t.Fatalf("override must not be consumed, calls=%d", f.overrides.consumeCalls)
	}
}

func TestDrawEmptyPoolDowngradesToLoss(t *testing.T) {
	f := newEngineFixture(t)
	f.pool.entries = nil
	f.rng.floats = []float64{0.1}

	result, err := f.svc.Draw(context.Background(), f.input())
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.Decision.DecisionType != enums.DecisionWeightedLoss {
		t.Fatalf("decision type = %s", result.Decision.DecisionType)
	}
	if result.Decision.Reason == nil || *result.Decision.Reason != ReasonEmptyPool {
		t.Fatalf("reason = %v", result.Decision.Reason)
	}
	if f.metrics.undrawable != 1 {
		t.Fatalf("undrawable metric = %d", f.metrics.undrawable)
	}
	if f.ledger.lastSale != 1000 {
		t.Fatalf("sale must still be recorded, got %d", f.ledger.lastSale)
	}
}

func TestDrawNoAffordablePrizeBlocks(t *testing.T) {
	f := newEngineFixture(t)
	f.ledger.period.RemainingBudgetCents = 100
	f.rng.floats = []float64{0.1}

	result, err := f.svc.Draw(context.Background(), f.input())
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.Decision.DecisionType != enums.DecisionBudgetBlock {
		t.Fatalf("decision type = %s", result.Decision.DecisionType)
	}
	if result.Decision.Reason == nil || *result.Decision.Reason != ReasonNoAffordablePrize {
		t.Fatalf("reason = %v", result.Decision.Reason)
	}
	if f.ledger.lastPayout != 0 {
		t.Fatalf("payout = %d", f.ledger.lastPayout)
	}
}

func TestDrawRedrawPicksAffordableEntry(t *testing.T) {
	f := newEngineFixture(t)
	f.ledger.period.RemainingBudgetCents = 600
	f.pool.entries = []models.PrizeEntry{
		{ID: uuid.New(), ItemRef: "item-gold", ItemName: "Gold", ItemValueCents: 5000, Weight: 10, MinQuantity: 1, MaxQuantity: 1, Active: true},
		{ID: uuid.New(), ItemRef: "item-bronze", ItemName: "Bronze", ItemValueCents: 200, Weight: 10, MinQuantity: 1, MaxQuantity: 1, Active: true},
	}
	// Every full-pool roll lands on the unaffordable first entry, forcing the
	// affordable-only fallback.
	f.rng.floats = []float64{0.1}
	f.rng.rolls = []int64{0, 0, 0, 0}

	result, err := f.svc.Draw(context.Background(), f.input())
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.Decision.DecisionType != enums.DecisionWeightedWin {
		t.Fatalf("decision type = %s", result.Decision.DecisionType)
	}
	if result.Item == nil || result.Item.Ref != "item-bronze" {
		t.Fatalf("expected affordable prize, got %+v", result.Item)
	}
}

func TestDrawQuantityFallsBackWhenBudgetTight(t *testing.T) {
	f := newEngineFixture(t)
	f.ledger.period.RemainingBudgetCents = 700
	f.pool.entries = []models.PrizeEntry{
		{ID: uuid.New(), ItemRef: "item-pack", ItemName: "Pack", ItemValueCents: 500, Weight: 10, MinQuantity: 1, MaxQuantity: 5, Active: true},
	}
	f.rng.floats = []float64{0.1}
	f.rng.ints = []int{4}

	result, err := f.svc.Draw(context.Background(), f.input())
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.Item == nil || result.Item.Quantity != 1 || result.Item.ValueCents != 500 {
		t.Fatalf("expected single unit grant, got %+v", result.Item)
	}
}

func TestDrawReplaysExistingPurchase(t *testing.T) {
	f := newEngineFixture(t)
	stored := &models.DrawDecision{
		ID:           uuid.New(),
		PurchaseID:   "purchase-1",
		DecisionType: enums.DecisionWeightedLoss,
	}
	f.decisions.existing = stored

	input := f.input()
	input.PurchaseID = stored.PurchaseID
	result, err := f.svc.Draw(context.Background(), input)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if !result.Replayed || result.Decision.ID != stored.ID {
		t.Fatalf("expected replay of stored decision, got %+v", result)
	}
	if f.tx.calls != 0 {
		t.Fatalf("replay must not open a transaction, got %d", f.tx.calls)
	}
}

func TestDrawReplaysWhenUniqueIndexRaceLoses(t *testing.T) {
	f := newEngineFixture(t)
	winner := &models.DrawDecision{
		ID:           uuid.New(),
		PurchaseID:   "purchase-raced",
		DecisionType: enums.DecisionWeightedWin,
	}
	f.decisions.createErr = errors.New(`ERROR: duplicate key value violates unique constraint "idx_draw_decisions_purchase_id"`)
	f.decisions.replayAfterCreate = winner

	input := f.input()
	input.PurchaseID = winner.PurchaseID
	result, err := f.svc.Draw(context.Background(), input)
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if !result.Replayed || result.Decision.ID != winner.ID {
		t.Fatalf("expected raced replay, got %+v", result)
	}
}

func TestDrawRetriesOnCommitContention(t *testing.T) {
	f := newEngineFixture(t)
	f.rng.floats = []float64{0.1, 0.1}
	f.ledger.commitResults = []bool{false, true}

	result, err := f.svc.Draw(context.Background(), f.input())
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.Decision.DecisionType != enums.DecisionWeightedWin {
		t.Fatalf("decision type = %s", result.Decision.DecisionType)
	}
	if f.ledger.commitCalls != 2 {
		t.Fatalf("commit calls = %d", f.ledger.commitCalls)
	}
	if f.metrics.contentions != 1 {
		t.Fatalf("contention metric = %d", f.metrics.contentions)
	}
}

func TestDrawFailsAfterExhaustedRetries(t *testing.T) {
	f := newEngineFixture(t)
	f.rng.floats = []float64{0.1, 0.1, 0.1}
	f.ledger.commitResults = []bool{false, false, false}

	_, err := f.svc.Draw(context.Background(), f.input())
	if errCode(t, err) != pkgerrors.CodeContention {
		t.Fatalf("expected contention error, got %v", err)
	}
	if f.ledger.commitCalls != 3 {
		t.Fatalf("commit calls = %d", f.ledger.commitCalls)
	}
}

func TestDrawFreezesContainerOnNegativeBudget(t *testing.T) {
	f := newEngineFixture(t)
	f.ledger.period.RemainingBudgetCents = -50

	_, err := f.svc.Draw(context.Background(), f.input())
	if errCode(t, err) != pkgerrors.CodeIntegrity {
		t.Fatalf("expected integrity error, got %v", err)
	}

	// Once frozen, draws fail fast without touching storage again.
	before := f.containers.calls
	_, err = f.svc.Draw(context.Background(), f.input())
	if errCode(t, err) != pkgerrors.CodeIntegrity {
		t.Fatalf("expected integrity error on frozen container, got %v", err)
	}
	if f.containers.calls != before {
		t.Fatalf("frozen container must not be reloaded")
	}
}
