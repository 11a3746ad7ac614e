package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/core/common/validation"
	"github.com/frahmantamala/finance-tracker/internal/core/events"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	UpdateNames(ctx context.Context, userID int64, firstName, lastName *string) error
	List(ctx context.Context) ([]User, error)
	UpdateRole(ctx context.Context, userID int64, role string) error
	// Delete removes the user together with their transactions.
	Delete(ctx context.Context, userID int64) error
	Stats(ctx context.Context) (*SystemStats, error)
}

type Service struct {
	repo      Repository
	publisher events.Publisher
	startedAt time.Time
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Service)

// WithPublisher sends user.deleted events after a deletion commits.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithStartTime sets the instant the uptime in system stats counts from.
func WithStartTime(t time.Time) Option {
	return func(s *Service) { s.startedAt = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		startedAt: time.Now(),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, dto UpdateProfileDTO) (*User, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}
	if dto.FirstName != nil || dto.LastName != nil {
		if err := s.repo.UpdateNames(ctx, userID, dto.FirstName, dto.LastName); err != nil {
			return nil, err
		}
	}
	return s.repo.GetByID(ctx, userID)
}

// List returns every user, newest first.
func (s *Service) List(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("Internal server error", err)
	}
	return users, nil
}

func (s *Service) UpdateRole(ctx context.Context, actorID, userID int64, dto UpdateRoleDTO) (*User, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRole(ctx, userID, dto.Role); err != nil {
		return nil, err
	}
	s.log(ctx).Info("user role changed", "target_user_id", userID, "actor_id", actorID, "role", dto.Role)
	return s.repo.GetByID(ctx, userID)
}

// Delete removes a user and their ledger. The caller cannot delete their own
// account. Cached analytics and lists of the user are dropped once the
// delete commits.
func (s *Service) Delete(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return internal.ErrSelfDelete
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.log(ctx).Info("user deleted", "target_user_id", userID, "actor_id", actorID)

	if s.publisher != nil {
		if err := s.publisher.PublishSync(ctx, events.NewUserDeletedEvent(userID, actorID)); err != nil {
			s.log(ctx).Warn("user event handlers failed", "target_user_id", userID, "error", err)
		}
	}
	return nil
}

func (s *Service) Stats(ctx context.Context) (*SystemStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, internal.NewInternalError("Internal server error", err)
	}
	stats.SystemUptime = FormatUptime(s.now().Sub(s.startedAt))
	return stats, nil
}

// FormatUptime renders d as "Xd Yh Zm".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int(d/time.Hour) % 24
	minutes := int(d/time.Minute) % 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.From(ctx, s.logger)
}
