package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bartek5186/woo2mag/internal/db/dbtest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dbForStates(t *testing.T) *gorm.DB { return dbtest.New(t) }

func redisForStates(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestStateRepositories(t *testing.T) {
	repos := map[string]func(t *testing.T) StateRepository{
		"memory": func(*testing.T) StateRepository { return NewMemoryStates() },
		"gorm":   func(t *testing.T) StateRepository { return NewGormStates(dbForStates(t)) },
		"redis": func(t *testing.T) StateRepository {
			_, client := redisForStates(t)
			return NewRedisStates(client, "", time.Hour)
		},
	}
	for name, mk := range repos {
		t.Run(name, func(t *testing.T) {
			repo := mk(t)
			ctx := context.Background()

			_, err := repo.Load(ctx, "s1")
			assert.ErrorIs(t, err, ErrStateNotFound)

			st := &SyncState{RunID: "run-1", Status: StatusInProgress, Page: 1, StartTime: time.Now().UTC()}
			st.Dedup.Seen = map[int64]int64{77: 1}
			require.NoError(t, repo.Save(ctx, "s1", st))
			assert.EqualValues(t, 1, st.Version)

			loaded, err := repo.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "run-1", loaded.RunID)
			assert.EqualValues(t, 1, loaded.Version)
			assert.Equal(t, int64(1), loaded.Dedup.Seen[77])

			// drugi "nowy" przebieg z wersją 0 przegrywa
			other := &SyncState{RunID: "run-2", Status: StatusInProgress, Page: 1}
			assert.ErrorIs(t, repo.Save(ctx, "s1", other), ErrVersionConflict)
			assert.EqualValues(t, 0, other.Version)

			loaded.Page = 2
			require.NoError(t, repo.Save(ctx, "s1", loaded))
			assert.EqualValues(t, 2, loaded.Version)

			// nieaktualna kopia
			st.Page = 5
			assert.ErrorIs(t, repo.Save(ctx, "s1", st), ErrVersionConflict)

			again, err := repo.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, 2, again.Page)

			require.NoError(t, repo.Delete(ctx, "s1"))
			_, err = repo.Load(ctx, "s1")
			assert.ErrorIs(t, err, ErrStateNotFound)
			require.NoError(t, repo.Delete(ctx, "s1"))
		})
	}
}

func TestRedisStates_TTLAndPrefix(t *testing.T) {
	mr, client := redisForStates(t)
	repo := NewRedisStates(client, "shop1:", 30*time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "s1", &SyncState{RunID: "run-1", Status: StatusInProgress, Page: 3}))
	assert.True(t, mr.Exists("shop1:s1"))
	assert.Equal(t, 30*time.Minute, mr.TTL("shop1:s1"))

	// porzucony przebieg wygasa razem z kluczem
	mr.FastForward(31 * time.Minute)
	_, err := repo.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRedisStates_CorruptPayload(t *testing.T) {
	mr, client := redisForStates(t)
	repo := NewRedisStates(client, "", time.Hour)
	require.NoError(t, mr.Set("woo2mag:sync:s1", "{not json"))

	_, err := repo.Load(context.Background(), "s1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStateNotFound)
}

func TestMemoryStatesReturnsCopies(t *testing.T) {
	repo := NewMemoryStates()
	ctx := context.Background()
	st := &SyncState{RunID: "r", Page: 1}
	require.NoError(t, repo.Save(ctx, "k", st))

	st.Page = 9
	loaded, err := repo.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Page)
}

func TestContinuationToken(t *testing.T) {
	tok := EncodeToken("run-1", 4)
	run, page, err := DecodeToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run)
	assert.Equal(t, 4, page)

	for _, bad := range []string{"", "%%%", "bm90LWpzb24=", EncodeToken("run-1", 0)} {
		_, _, err := DecodeToken(bad)
		assert.Error(t, err, "token %q", bad)
	}
}

func TestAddErrorIsCapped(t *testing.T) {
	st := &SyncState{}
	for i := 0; i < maxStateErrors+25; i++ {
		st.addError("boom")
	}
	assert.Len(t, st.Errors, maxStateErrors)
	assert.Equal(t, maxStateErrors+25, st.ErrorCount)
}

func TestPolicyEstimate(t *testing.T) {
	p := DefaultPolicy()
	p.UseReportedTotal = false

	assert.Equal(t, 5000, p.estimate(5000, 1, 100, 100, -1))
	assert.Equal(t, 6000, p.estimate(5000, 50, 100, 100, -1))
	assert.Equal(t, 237, p.estimate(5000, 3, 100, 37, -1))
	assert.Equal(t, 200, p.estimate(5000, 3, 100, 0, -1))

	p.UseReportedTotal = true
	// zgłoszony total mniejszy od szacunku nie obniża go
	assert.Equal(t, 5000, p.estimate(5000, 1, 100, 100, 150))
	assert.Equal(t, 5000, p.estimate(5000, 3, 100, 100, 150))
	assert.Equal(t, 8000, p.estimate(5000, 1, 100, 100, 8000))
	assert.Equal(t, 6000, p.estimate(5000, 50, 100, 100, 450))
	assert.Equal(t, 8000, p.estimate(8000, 50, 100, 100, 450))
	assert.Equal(t, 5000, p.estimate(5000, 1, 100, 100, -1))
	assert.Equal(t, 150, p.estimate(5000, 2, 100, 50, 150))
}

func TestPolicyStalled(t *testing.T) {
	p := DefaultPolicy()
	assert.False(t, p.stalled(&SyncState{StallPages: 10, ProcessedProducts: 950, EstimatedTotal: 1000}))
	assert.False(t, p.stalled(&SyncState{StallPages: 11, ProcessedProducts: 800, EstimatedTotal: 1000}))
	assert.True(t, p.stalled(&SyncState{StallPages: 11, ProcessedProducts: 950, EstimatedTotal: 1000}))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, percent(10, 0))
	assert.Equal(t, 2, percent(100, 5000))
	assert.Equal(t, 50, percent(5, 10))
	assert.Equal(t, 99, percent(237, 237))
}
