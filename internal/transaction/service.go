package transaction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/cache"
	"github.com/frahmantamala/finance-tracker/internal/core/events"
	"github.com/frahmantamala/finance-tracker/internal/transport"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

// Repository interface defines the data access methods for transactions
type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	GetByID(ctx context.Context, id int64) (*Transaction, error)
	Update(ctx context.Context, t *Transaction) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ListFilter) ([]*Transaction, int64, error)
	CategoryKind(ctx context.Context, categoryID int64) (string, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// Service handles transaction business logic. Writes commit first, then
// publish a mutation event so cached reads of the owner are dropped.
type Service struct {
	repo      Repository
	cache     *cache.Orchestrator
	listTTL   time.Duration
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo Repository, orch *cache.Orchestrator, listTTL time.Duration, publisher events.Publisher, logger *slog.Logger) *Service {
	if orch == nil {
		orch = cache.NewOrchestrator(cache.NewNullStore())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		cache:     orch,
		listTTL:   listTTL,
		publisher: publisher,
		logger:    logger,
	}
}

// ListForUser returns one page of the user's own transactions.
func (s *Service) ListForUser(ctx context.Context, userID int64, f ListFilter) (*Page, bool, error) {
	f.UserID = &userID
	key, err := cache.TransactionListKey(userID, f)
	if err != nil {
		return nil, false, internal.NewInternalError("Internal server error", err)
	}

	return cache.GetOrCompute(ctx, s.cache, key, s.listTTL, func(ctx context.Context) (*Page, error) {
		return s.page(ctx, f)
	})
}

// ListAll pages over every user's transactions. It is not cached since no
// single owner's invalidation could cover it.
func (s *Service) ListAll(ctx context.Context, f ListFilter) (*Page, error) {
	return s.page(ctx, f)
}

func (s *Service) page(ctx context.Context, f ListFilter) (*Page, error) {
	rows, total, err := s.repo.List(ctx, f)
	if err != nil {
		s.log(ctx).Error("failed to list transactions", "error", err)
		return nil, internal.NewLedgerError("list transactions", err)
	}

	views := make([]View, 0, len(rows))
	for _, t := range rows {
		views = append(views, t.ToView())
	}
	return &Page{
		Transactions: views,
		Pagination:   transport.NewPagination(f.Page, f.Limit, total),
	}, nil
}

// Get returns a transaction. A non-nil ownerID restricts the lookup to that
// user's transactions; anything else reads as not found.
func (s *Service) Get(ctx context.Context, id int64, ownerID *int64) (*View, error) {
	t, err := s.load(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	v := t.ToView()
	return &v, nil
}

// Create records a transaction for ownerID on behalf of actorID.
func (s *Service) Create(ctx context.Context, ownerID, actorID int64, dto CreateTransactionDTO) (*View, error) {
	date, err := dto.Validate()
	if err != nil {
		return nil, err
	}

	if ownerID != actorID {
		exists, err := s.repo.UserExists(ctx, ownerID)
		if err != nil {
			return nil, internal.NewLedgerError("user lookup", err)
		}
		if !exists {
			return nil, internal.NewValidationFieldError("user_id", "Target user not found", internal.ErrCodeUserNotFound)
		}
	}

	if err := s.checkCategory(ctx, dto.CategoryID, dto.Type); err != nil {
		return nil, err
	}

	t := &Transaction{
		UserID:      ownerID,
		Type:        dto.Type,
		Amount:      *dto.Amount,
		Description: dto.Description,
		Date:        date,
		CategoryID:  dto.CategoryID,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		s.log(ctx).Error("failed to create transaction", "error", err, "user_id", ownerID)
		return nil, internal.NewLedgerError("create transaction", err)
	}

	s.log(ctx).Info("transaction created", "transaction_id", t.ID, "user_id", ownerID, "actor_id", actorID)
	s.publish(ctx, events.EventTypeTransactionCreated, t.ID, ownerID, actorID)

	return s.Get(ctx, t.ID, nil)
}

// Update applies a partial update. Kind and category are checked against the
// merged result. The owner never changes.
func (s *Service) Update(ctx context.Context, id int64, ownerID *int64, actorID int64, dto UpdateTransactionDTO) (*View, error) {
	date, err := dto.Validate()
	if err != nil {
		return nil, err
	}

	t, err := s.load(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if dto.Type != nil {
		t.Type = *dto.Type
	}
	if dto.Amount != nil {
		t.Amount = *dto.Amount
	}
	if dto.Description != nil {
		t.Description = dto.Description
	}
	if date != nil {
		t.Date = *date
	}
	if dto.CategoryID != nil {
		t.CategoryID = dto.CategoryID
	}

	if err := s.checkCategory(ctx, t.CategoryID, t.Type); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, internal.ErrTransactionNotFound) {
			return nil, err
		}
		s.log(ctx).Error("failed to update transaction", "error", err, "transaction_id", id)
		return nil, internal.NewLedgerError("update transaction", err)
	}

	s.log(ctx).Info("transaction updated", "transaction_id", id, "user_id", t.UserID, "actor_id", actorID)
	s.publish(ctx, events.EventTypeTransactionUpdated, id, t.UserID, actorID)

	return s.Get(ctx, id, nil)
}

func (s *Service) Delete(ctx context.Context, id int64, ownerID *int64, actorID int64) error {
	t, err := s.load(ctx, id, ownerID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, internal.ErrTransactionNotFound) {
			return err
		}
		s.log(ctx).Error("failed to delete transaction", "error", err, "transaction_id", id)
		return internal.NewLedgerError("delete transaction", err)
	}

	s.log(ctx).Info("transaction deleted", "transaction_id", id, "user_id", t.UserID, "actor_id", actorID)
	s.publish(ctx, events.EventTypeTransactionDeleted, id, t.UserID, actorID)
	return nil
}

func (s *Service) load(ctx context.Context, id int64, ownerID *int64) (*Transaction, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrTransactionNotFound) {
			return nil, err
		}
		return nil, internal.NewLedgerError("get transaction", err)
	}
	if ownerID != nil && t.UserID != *ownerID {
		return nil, internal.ErrTransactionNotFound
	}
	return t, nil
}

func (s *Service) checkCategory(ctx context.Context, categoryID *int64, kind string) error {
	if categoryID == nil {
		return nil
	}
	catKind, err := s.repo.CategoryKind(ctx, *categoryID)
	if err != nil {
		if errors.Is(err, internal.ErrCategoryNotFound) {
			return internal.NewValidationFieldError("category_id", "Invalid category", internal.ErrCodeInvalidCategory)
		}
		return internal.NewLedgerError("category lookup", err)
	}
	if catKind != kind {
		return internal.ErrCategoryKindMismatch
	}
	return nil
}

// publish runs after the commit. Handler failures are logged only: the
// write already succeeded and cache entries expire on their own.
func (s *Service) publish(ctx context.Context, eventType string, id, ownerID, actorID int64) {
	if s.publisher == nil {
		return
	}
	ev := events.NewTransactionMutatedEvent(eventType, id, ownerID, actorID)
	if err := s.publisher.PublishSync(ctx, ev); err != nil {
		s.log(ctx).Warn("transaction event handlers failed", "event", eventType, "transaction_id", id, "error", err)
	}
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.From(ctx, s.logger)
}
