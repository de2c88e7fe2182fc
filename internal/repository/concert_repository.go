package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/cache"
	"github.com/ayo6706/concert-ticketing/internal/domain"
	"github.com/ayo6706/concert-ticketing/internal/models"
	"github.com/ayo6706/concert-ticketing/internal/observability"
	"github.com/ayo6706/concert-ticketing/internal/ticketnumber"
)

// ConcertRepository is the data access layer for concerts, tickets, ticket numbers and users.
// It owns the upcoming-concerts cache entry and invalidates it on every concert write.
type ConcertRepository struct {
	store     TxStore
	cache     cache.Store
	generator ticketnumber.Generator
	cacheTTL  time.Duration
	now       func() time.Time

	// concertWrites is bumped after each committed concert write, before invalidation.
	concertWrites atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewConcertRepository takes ownership of store; Close releases it.
func NewConcertRepository(store TxStore, cacheStore cache.Store, generator ticketnumber.Generator) *ConcertRepository {
	return &ConcertRepository{
		store:     store,
		cache:     cacheStore,
		generator: generator,
		cacheTTL:  domain.UpcomingConcertsTTL,
		now:       time.Now,
	}
}

// WithClock replaces the time source used to decide which concerts are upcoming.
func (r *ConcertRepository) WithClock(now func() time.Time) *ConcertRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// WithCacheTTL overrides the upcoming-concerts cache lifetime.
func (r *ConcertRepository) WithCacheTTL(ttl time.Duration) *ConcertRepository {
	if ttl > 0 {
		r.cacheTTL = ttl
	}
	return r
}

// Close releases the store exactly once.
func (r *ConcertRepository) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.closeErr = r.store.Close()
	})
	return r.closeErr
}

// clampInt32 narrows a validated non-negative limit or offset for the query layer.
func clampInt32(n int) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}

func (r *ConcertRepository) ensureOpen() error {
	if r.closed.Load() {
		return models.ErrRepositoryClosed
	}
	return nil
}

// CreateConcert validates and inserts the concert, filling in its id and audit timestamps.
// Validation failures are reported in the result, not as an error.
func (r *ConcertRepository) CreateConcert(ctx context.Context, concert *models.Concert) (models.CreateResult, error) {
	if err := r.ensureOpen(); err != nil {
		return models.CreateResult{}, err
	}
	if errs := concert.Validate(); len(errs) > 0 {
		return models.FailedCreate(errs), nil
	}

	now := r.now().UTC()
	concert.StartTime = concert.StartTime.UTC()
	concert.CreatedOn = now
	concert.UpdatedOn = now
	if concert.UpdatedBy == "" {
		concert.UpdatedBy = concert.CreatedBy
	}

	var id int64
	err := r.store.RunInTx(ctx, func(q Querier) error {
		var err error
		id, err = q.CreateConcert(ctx, concert)
		return err
	})
	if err != nil {
		return models.CreateResult{}, fmt.Errorf("create concert: %w", err)
	}
	concert.ID = id

	r.invalidateUpcoming(ctx)
	return models.SuccessCreate(id), nil
}

// UpdateConcert replaces the stored concert with the same id; a missing id is ErrNotFound.
func (r *ConcertRepository) UpdateConcert(ctx context.Context, concert *models.Concert) (models.UpdateResult, error) {
	if err := r.ensureOpen(); err != nil {
		return models.UpdateResult{}, err
	}
	if concert.ID <= 0 {
		return models.UpdateResult{}, fmt.Errorf("update concert: id %d: %w", concert.ID, models.ErrInvalidArgument)
	}
	if errs := concert.Validate(); len(errs) > 0 {
		return models.FailedUpdate(errs), nil
	}

	concert.StartTime = concert.StartTime.UTC()
	concert.UpdatedOn = r.now().UTC()

	err := r.store.RunInTx(ctx, func(q Querier) error {
		rows, err := q.UpdateConcert(ctx, concert)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("concert %d: %w", concert.ID, models.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("update concert: %w", err)
	}

	r.invalidateUpcoming(ctx)
	return models.SuccessUpdate(), nil
}

// DeleteConcert succeeds whether or not the concert exists.
func (r *ConcertRepository) DeleteConcert(ctx context.Context, id int64) (models.DeleteResult, error) {
	if err := r.ensureOpen(); err != nil {
		return models.DeleteResult{}, err
	}

	err := r.store.RunInTx(ctx, func(q Querier) error {
		_, err := q.DeleteConcert(ctx, id)
		return err
	})
	if err != nil {
		return models.DeleteResult{}, fmt.Errorf("delete concert: %w", err)
	}

	r.invalidateUpcoming(ctx)
	return models.SuccessDelete(), nil
}

// GetConcertByID returns nil without error when the concert does not exist.
func (r *ConcertRepository) GetConcertByID(ctx context.Context, id int64) (*models.Concert, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	concert, err := r.store.Queries().GetConcert(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &concert, nil
}

// GetConcertsByID returns the concerts matching ids; unknown ids are skipped.
func (r *ConcertRepository) GetConcertsByID(ctx context.Context, ids []int64) ([]models.Concert, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return []models.Concert{}, nil
	}
	return r.store.Queries().ListConcertsByIDs(ctx, unique)
}

func (r *ConcertRepository) invalidateUpcoming(ctx context.Context) {
	r.concertWrites.Add(1)
	cache.Invalidate(ctx, r.cache, domain.CacheKeyUpcomingConcerts)
}

// upcomingEntry is the cached form of the upcoming-concerts view. Count records the limit the
// list was computed for, so a request with a different count recomputes the entry.
type upcomingEntry struct {
	Count    int              `json:"count"`
	Concerts []models.Concert `json:"concerts"`
}

// GetUpcomingConcerts returns up to count visible concerts starting after now, soonest first.
// Results may be served from the cache for up to the cache TTL.
func (r *ConcertRepository) GetUpcomingConcerts(ctx context.Context, count int) ([]models.Concert, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("upcoming concerts: count %d: %w", count, models.ErrInvalidArgument)
	}

	writes := r.concertWrites.Load()
	compute := func(ctx context.Context) (upcomingEntry, error) {
		concerts, err := r.store.Queries().ListUpcomingConcerts(ctx, r.now().UTC(), clampInt32(count))
		if err != nil {
			return upcomingEntry{}, fmt.Errorf("upcoming concerts: %w", err)
		}
		return upcomingEntry{Count: count, Concerts: concerts}, nil
	}

	entry, hit, err := cache.GetOrCompute(ctx, r.cache, domain.CacheKeyUpcomingConcerts, r.cacheTTL, compute)
	if err != nil {
		return nil, err
	}
	if hit && entry.Count != count {
		entry, err = compute(ctx)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			cache.Put(ctx, r.cache, domain.CacheKeyUpcomingConcerts, entry, r.cacheTTL)
		}
		hit = false
	}
	if !hit && r.concertWrites.Load() != writes {
		// a concert write committed while this list was read; drop what was just stored
		cache.Invalidate(ctx, r.cache, domain.CacheKeyUpcomingConcerts)
	}
	if entry.Concerts == nil {
		return []models.Concert{}, nil
	}
	return entry.Concerts, nil
}

// CreateOrUpdateUser inserts the user or, when the id exists, replaces its display name.
func (r *ConcertRepository) CreateOrUpdateUser(ctx context.Context, user *models.User) (models.UpdateResult, error) {
	if err := r.ensureOpen(); err != nil {
		return models.UpdateResult{}, err
	}
	if strings.TrimSpace(user.ID) == "" {
		return models.UpdateResult{}, fmt.Errorf("create or update user: empty id: %w", models.ErrInvalidArgument)
	}

	err := r.store.RunInTx(ctx, func(q Querier) error {
		return q.UpsertUser(ctx, *user)
	})
	if err != nil {
		return models.UpdateResult{}, fmt.Errorf("create or update user: %w", err)
	}
	return models.SuccessUpdate(), nil
}

// GetUserByID returns nil without error when the user does not exist.
func (r *ConcertRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	user, err := r.store.Queries().GetUser(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetCountForAllTickets returns the number of tickets owned by the user.
func (r *ConcertRepository) GetCountForAllTickets(ctx context.Context, userID string) (int, error) {
	if err := r.ensureOpen(); err != nil {
		return 0, err
	}
	n, err := r.store.Queries().CountTicketsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// GetAllTickets returns one page of the user's tickets, newest id first, with their concerts
// attached. TotalCount is the user's unpaged ticket count.
func (r *ConcertRepository) GetAllTickets(ctx context.Context, userID string, skip, take int) (models.PagedResult[models.Ticket], error) {
	if err := r.ensureOpen(); err != nil {
		return models.PagedResult[models.Ticket]{}, err
	}
	if skip < 0 || take < 0 {
		return models.PagedResult[models.Ticket]{}, fmt.Errorf("list tickets: skip %d take %d: %w", skip, take, models.ErrInvalidArgument)
	}

	var (
		tickets []models.Ticket
		total   int64
	)
	err := r.store.RunInTx(ctx, func(q Querier) error {
		var err error
		if total, err = q.CountTicketsByUser(ctx, userID); err != nil {
			return err
		}
		if take == 0 || int64(skip) >= total {
			tickets = nil
			return nil
		}
		tickets, err = q.ListTicketsByUser(ctx, ListTicketsByUserParams{
			UserID: userID,
			Limit:  clampInt32(take),
			Offset: clampInt32(skip),
		})
		return err
	})
	if err != nil {
		return models.PagedResult[models.Ticket]{}, fmt.Errorf("list tickets: %w", err)
	}
	return models.NewPagedResult(tickets, int(total)), nil
}

// GetTicketByID returns nil without error when the ticket does not exist.
func (r *ConcertRepository) GetTicketByID(ctx context.Context, id int64) (*models.Ticket, error) {
	if err := r.ensureOpen(); err != nil {
		return nil, err
	}
	ticket, err := r.store.Queries().GetTicket(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// CreateOrUpdateTicketNumbers resizes the concert's ticket-number pool to exactly
// numberOfTickets in one transaction. Shrinking only removes unsold numbers of this concert;
// if there are not enough of them the call fails with ErrInsufficientUnsoldTicketNumbers and
// nothing changes. Growing asks the generator for one value per new row.
func (r *ConcertRepository) CreateOrUpdateTicketNumbers(ctx context.Context, concertID int64, numberOfTickets int) (models.UpdateResult, error) {
	if err := r.ensureOpen(); err != nil {
		return models.UpdateResult{}, err
	}
	if numberOfTickets < 0 {
		return models.UpdateResult{}, fmt.Errorf("ticket numbers: count %d: %w", numberOfTickets, models.ErrInvalidArgument)
	}

	var (
		outcome string
		changed int
	)
	err := r.store.RunInTx(ctx, func(q Querier) error {
		// reset per attempt; a retried transaction starts from the committed state
		outcome, changed = domain.TicketNumbersUnchanged, 0

		existing, err := q.CountTicketNumbers(ctx, concertID)
		if err != nil {
			return err
		}
		target := int64(numberOfTickets)

		switch {
		case existing > target:
			excess := existing - target
			unsold, err := q.ListUnsoldTicketNumbers(ctx, concertID)
			if err != nil {
				return err
			}
			if int64(len(unsold)) < excess {
				return fmt.Errorf("concert %d: need to remove %d, only %d unsold: %w",
					concertID, excess, len(unsold), models.ErrInsufficientUnsoldTicketNumbers)
			}
			ids := make([]int64, 0, excess)
			for _, n := range unsold[:excess] {
				ids = append(ids, n.ID)
			}
			deleted, err := q.DeleteTicketNumbers(ctx, ids)
			if err != nil {
				return err
			}
			if deleted != excess {
				return fmt.Errorf("concert %d: deleted %d ticket numbers, expected %d", concertID, deleted, excess)
			}
			outcome, changed = domain.TicketNumbersRemoved, int(excess)

		case existing < target:
			deficit := target - existing
			if _, err := q.GetConcert(ctx, concertID); err != nil {
				return fmt.Errorf("concert %d: %w", concertID, err)
			}
			for i := int64(0); i < deficit; i++ {
				if _, err := q.CreateTicketNumber(ctx, CreateTicketNumberParams{
					ConcertID: concertID,
					Number:    r.generator.Generate(),
				}); err != nil {
					return err
				}
			}
			outcome, changed = domain.TicketNumbersAdded, int(deficit)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInsufficientUnsoldTicketNumbers) {
			observability.IncrementTicketNumberReconciliation(domain.TicketNumbersRejected, 0)
		}
		return models.UpdateResult{}, fmt.Errorf("ticket numbers: %w", err)
	}

	observability.IncrementTicketNumberReconciliation(outcome, changed)
	return models.SuccessUpdate(), nil
}
