package category

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/cache"
	categoryDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/category"
	"github.com/frahmantamala/finance-tracker/internal/core/events"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

type RepositoryAPI interface {
	// List returns categories ordered by type then name. An empty kind lists all.
	List(ctx context.Context, kind string) ([]*categoryDatamodel.Category, error)
	GetByID(ctx context.Context, id int64) (*categoryDatamodel.Category, error)
	ExistsByNameAndType(ctx context.Context, name, kind string, excludeID int64) (bool, error)
	Create(ctx context.Context, category *categoryDatamodel.Category) error
	Update(ctx context.Context, category *categoryDatamodel.Category) error
	Delete(ctx context.Context, id int64) error
	InUse(ctx context.Context, id int64) (bool, error)
}

type Service struct {
	repo      RepositoryAPI
	cache     *cache.Orchestrator
	ttl       time.Duration
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, orch *cache.Orchestrator, ttl time.Duration, publisher events.Publisher, logger *slog.Logger) *Service {
	if orch == nil {
		orch = cache.NewOrchestrator(cache.NewNullStore())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		cache:     orch,
		ttl:       ttl,
		publisher: publisher,
		logger:    logger,
	}
}

// List returns the catalogue, optionally narrowed to one kind.
func (s *Service) List(ctx context.Context, kind string) ([]Category, bool, error) {
	if kind != "" && kind != KindIncome && kind != KindExpense {
		return nil, false, internal.NewValidationFieldError("type", "type must be one of income, expense", internal.ErrCodeInvalidFilter)
	}

	return cache.GetOrCompute(ctx, s.cache, cache.CategoriesKey(kind), s.ttl, func(ctx context.Context) ([]Category, error) {
		rows, err := s.repo.List(ctx, kind)
		if err != nil {
			s.log(ctx).Error("failed to get categories from repository", "error", err)
			return nil, internal.NewLedgerError("list categories", err)
		}

		out := make([]Category, 0, len(rows))
		for _, row := range rows {
			out = append(out, *FromDataModel(row))
		}
		s.log(ctx).Debug("retrieved categories", "count", len(out), "type", kind)
		return out, nil
	})
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Category, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, internal.ErrCategoryNotFound) {
			return nil, err
		}
		return nil, internal.NewLedgerError("get category", err)
	}
	return FromDataModel(row), nil
}

func (s *Service) Create(ctx context.Context, dto CreateCategoryDTO) (*Category, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if err := s.checkUnique(ctx, dto.Name, dto.Type, 0); err != nil {
		return nil, err
	}

	c := NewCategory(dto.Name, dto.Type, dto.Color, dto.Icon)
	row := ToDataModel(c)
	if err := s.repo.Create(ctx, row); err != nil {
		s.log(ctx).Error("failed to create category", "error", err, "name", dto.Name)
		return nil, internal.NewLedgerError("create category", err)
	}
	c = FromDataModel(row)

	s.log(ctx).Info("category created", "category_id", c.ID, "name", c.Name, "type", c.Type)
	s.publish(ctx, events.EventTypeCategoryCreated, c.ID, false)
	return c, nil
}

func (s *Service) Update(ctx context.Context, id int64, dto UpdateCategoryDTO) (*Category, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if dto.Type != nil && *dto.Type != c.Type {
		// transactions must keep the kind of their category
		inUse, err := s.repo.InUse(ctx, id)
		if err != nil {
			return nil, internal.NewLedgerError("category usage", err)
		}
		if inUse {
			return nil, internal.ErrCategoryInUse
		}
	}

	presentationChanged := c.Apply(dto)
	if dto.Name != nil || dto.Type != nil {
		if err := s.checkUnique(ctx, c.Name, c.Type, c.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, ToDataModel(c)); err != nil {
		if errors.Is(err, internal.ErrCategoryNotFound) {
			return nil, err
		}
		s.log(ctx).Error("failed to update category", "error", err, "category_id", id)
		return nil, internal.NewLedgerError("update category", err)
	}

	s.log(ctx).Info("category updated", "category_id", id, "presentation_changed", presentationChanged)
	s.publish(ctx, events.EventTypeCategoryUpdated, id, presentationChanged)
	return c, nil
}

// Delete removes a category no transaction references.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	inUse, err := s.repo.InUse(ctx, id)
	if err != nil {
		return internal.NewLedgerError("category usage", err)
	}
	if inUse {
		return internal.ErrCategoryInUse
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, internal.ErrCategoryNotFound) || errors.Is(err, internal.ErrCategoryInUse) {
			return err
		}
		s.log(ctx).Error("failed to delete category", "error", err, "category_id", id)
		return internal.NewLedgerError("delete category", err)
	}

	s.log(ctx).Info("category deleted", "category_id", id)
	s.publish(ctx, events.EventTypeCategoryDeleted, id, false)
	return nil
}

func (s *Service) checkUnique(ctx context.Context, name, kind string, excludeID int64) error {
	exists, err := s.repo.ExistsByNameAndType(ctx, name, kind, excludeID)
	if err != nil {
		return internal.NewLedgerError("category lookup", err)
	}
	if exists {
		return internal.ErrDuplicateCategory
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, id int64, presentationChanged bool) {
	if s.publisher == nil {
		return
	}
	ev := events.NewCategoryMutatedEvent(eventType, id, presentationChanged)
	if err := s.publisher.PublishSync(ctx, ev); err != nil {
		s.log(ctx).Warn("category event handlers failed", "event", eventType, "category_id", id, "error", err)
	}
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.From(ctx, s.logger)
}
