package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/cache"
	"github.com/ayo6706/concert-ticketing/internal/db"
	"github.com/ayo6706/concert-ticketing/internal/models"
	"github.com/ayo6706/concert-ticketing/internal/repository"
	"github.com/ayo6706/concert-ticketing/internal/testutil/dblock"
	"github.com/ayo6706/concert-ticketing/internal/ticketnumber"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
	release := dblock.Acquire()
	t.Cleanup(release)

	ctx := context.Background()
	pool, err := db.Connect(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(ctx, pool))

	_, err = pool.Exec(ctx, `TRUNCATE ticket_numbers, tickets, concerts, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func TestPostgresStore_ConcertLifecycle(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	store := repository.NewStore(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)
	repo := repository.NewConcertRepository(store, cache.NewMemoryStore(), ticketnumber.NewUUIDGenerator()).
		WithClock(func() time.Time { return now })
	defer repo.Close()

	c := &models.Concert{
		Title:     "Integration",
		Artist:    "Band",
		Location:  "Hall",
		Price:     decimal.RequireFromString("12.345678"),
		StartTime: now.Add(time.Hour),
		IsVisible: true,
		CreatedBy: "admin",
	}
	res, err := repo.CreateConcert(ctx, c)
	require.NoError(t, err)
	require.True(t, res.Success)

	got, err := repo.GetConcertByID(ctx, res.NewID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Price.Equal(c.Price))
	assert.True(t, got.StartTime.Equal(c.StartTime))

	upcoming, err := repo.GetUpcomingConcerts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, res.NewID, upcoming[0].ID)

	_, err = repo.CreateOrUpdateTicketNumbers(ctx, res.NewID, 20)
	require.NoError(t, err)
	n, err := store.Queries().CountTicketNumbers(ctx, res.NewID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)

	_, err = repo.CreateOrUpdateTicketNumbers(ctx, res.NewID, 5)
	require.NoError(t, err)
	n, err = store.Queries().CountTicketNumbers(ctx, res.NewID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = repo.CreateOrUpdateUser(ctx, &models.User{ID: "u-1", DisplayName: "User"})
	require.NoError(t, err)
	err = store.RunInTx(ctx, func(q repository.Querier) error {
		ticketID, err := q.CreateTicket(ctx, repository.CreateTicketParams{ConcertID: res.NewID, UserID: "u-1"})
		if err != nil {
			return err
		}
		unsold, err := q.ListUnsoldTicketNumbers(ctx, res.NewID)
		if err != nil {
			return err
		}
		_, err = q.AssignTicketNumber(ctx, repository.AssignTicketNumberParams{ID: unsold[0].ID, TicketID: ticketID})
		return err
	})
	require.NoError(t, err)

	page, err := repo.GetAllTickets(ctx, "u-1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Concert)
	assert.Equal(t, "Integration", page.Items[0].Concert.Title)

	_, err = repo.CreateOrUpdateTicketNumbers(ctx, res.NewID, 0)
	require.ErrorIs(t, err, models.ErrInsufficientUnsoldTicketNumbers)

	del, err := repo.DeleteConcert(ctx, res.NewID)
	require.NoError(t, err)
	assert.True(t, del.Success)
	gone, err := repo.GetConcertByID(ctx, res.NewID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestPostgresStore_ConcurrentResizesConverge(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	store := repository.NewStore(pool).WithRetryPolicy(repository.RetryPolicy{
		MaxAttempts:   20,
		InitialDelay:  5 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2,
	})
	repo := repository.NewConcertRepository(store, nil, ticketnumber.NewUUIDGenerator())
	defer repo.Close()

	res, err := repo.CreateConcert(ctx, &models.Concert{
		Title:     "Race",
		Artist:    "Band",
		Location:  "Hall",
		StartTime: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateOrUpdateTicketNumbers(ctx, res.NewID, 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := store.Queries().CountTicketNumbers(ctx, res.NewID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}
