package overrides

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mora-interactive/prizevault-backend/pkg/db/models"
	"github.com/mora-interactive/prizevault-backend/pkg/enums"
)

func setupOverridesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ddl := `
CREATE TABLE IF NOT EXISTS programmed_prizes (
  id TEXT PRIMARY KEY,
  container_type_id TEXT NOT NULL,
  item_ref TEXT NOT NULL,
  item_name TEXT NOT NULL,
  item_value_cents INTEGER NOT NULL,
  priority INTEGER NOT NULL DEFAULT 100,
  target_user_id TEXT,
  manual_release INTEGER NOT NULL DEFAULT 0,
  scheduled_for DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  current_uses INTEGER NOT NULL DEFAULT 0,
  max_uses INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func pendingPrize(containerID uuid.UUID, priority int, scheduledFor time.Time) *models.ProgrammedPrize {
	return &models.ProgrammedPrize{
		ID:              uuid.New(),
		ContainerTypeID: containerID,
		ItemRef:         fmt.Sprintf("item-p%d", priority),
		ItemName:        fmt.Sprintf("item-p%d", priority),
		ItemValueCents:  500,
		Priority:        priority,
		ScheduledFor:    scheduledFor,
		ExpiresAt:       scheduledFor.Add(24 * time.Hour),
		Status:          enums.ProgrammedPrizePending,
		MaxUses:         1,
	}
}

func TestNextPendingOrdersByPriorityThenSchedule(t *testing.T) {
	db := setupOverridesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	containerID := uuid.New()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	second := pendingPrize(containerID, 2, now.Add(-2*time.Hour))
	first := pendingPrize(containerID, 1, now.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))

	got, err := repo.NextPending(ctx, containerID, uuid.New(), now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID, "lowest priority value wins")

	// Same priority: earliest scheduled_for wins.
	early := pendingPrize(containerID, 1, now.Add(-3*time.Hour))
	require.NoError(t, repo.Create(ctx, early))

	got, err = repo.NextPending(ctx, containerID, uuid.New(), now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, early.ID, got.ID)
}

func TestNextPendingFiltersTargetUserAndExpiry(t *testing.T) {
	db := setupOverridesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	containerID := uuid.New()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	targetUser := uuid.New()

	targeted := pendingPrize(containerID, 1, now.Add(-time.Hour))
	targeted.TargetUserID = &targetUser
	require.NoError(t, repo.Create(ctx, targeted))

	expired := pendingPrize(containerID, 0, now.Add(-48*time.Hour))
	expired.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, repo.Create(ctx, expired))

	future := pendingPrize(containerID, 0, now.Add(time.Hour))
	require.NoError(t, repo.Create(ctx, future))

	// A different user sees nothing: the only live override is targeted.
	got, err := repo.NextPending(ctx, containerID, uuid.New(), now)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.NextPending(ctx, containerID, targetUser, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, targeted.ID, got.ID)
}

func TestConsumeBurnsUsesAndFlipsStatus(t *testing.T) {
	db := setupOverridesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	containerID := uuid.New()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	prize := pendingPrize(containerID, 1, now.Add(-time.Hour))
	prize.MaxUses = 2
	require.NoError(t, repo.Create(ctx, prize))

	ok, err := repo.Consume(ctx, prize.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.Find(ctx, prize.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentUses)
	assert.Equal(t, enums.ProgrammedPrizePending, got.Status)

	ok, err = repo.Consume(ctx, prize.ID)
	require.NoError(t, err)
	require.True(t, ok)

	got, err = repo.Find(ctx, prize.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentUses)
	assert.Equal(t, enums.ProgrammedPrizeConsumed, got.Status)

	// Exhausted: further consumption matches no rows.
	ok, err = repo.Consume(ctx, prize.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

// Two racing consumers of a max_uses=1 override: exactly one may win.
func TestConsumeSingleUseUnderConcurrency(t *testing.T) {
	db := setupOverridesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	containerID := uuid.New()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	prize := pendingPrize(containerID, 1, now.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, prize))

	const attempts = 16
	wins := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Consume(ctx, prize.ID)
			if err != nil {
				t.Error(err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for ok := range wins {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestExpireDueSweepsOnlyPastPending(t *testing.T) {
	db := setupOverridesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	containerID := uuid.New()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	past := pendingPrize(containerID, 1, now.Add(-48*time.Hour))
	past.ExpiresAt = now.Add(-time.Hour)
	live := pendingPrize(containerID, 2, now.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, past))
	require.NoError(t, repo.Create(ctx, live))

	swept, err := repo.ExpireDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	got, err := repo.Find(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ProgrammedPrizeExpired, got.Status)

	got, err = repo.Find(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ProgrammedPrizePending, got.Status)
}

func TestRevokeOnlyPending(t *testing.T) {
	db := setupOverridesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	containerID := uuid.New()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	prize := pendingPrize(containerID, 1, now.Add(-time.Hour))
	require.NoError(t, repo.Create(ctx, prize))

	ok, err := repo.Revoke(ctx, prize.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Revoke(ctx, prize.ID)
	require.NoError(t, err)
	assert.False(t, ok, "revoking a revoked prize is a no-op")
}
