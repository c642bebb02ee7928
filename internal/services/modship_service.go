package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/osvaldoandrade/leaderboards/pkg/domain"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"
)

var ErrUserNotFound = errors.New("user not found")

type ModshipService interface {
	Grant(ctx context.Context, userID, leaderboardID string) (*domain.Modship, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Modship, error)
}

type modshipService struct {
	users    persistence.UserStorage
	modships persistence.ModshipStorage
	logger   *slog.Logger
	now      func() time.Time
}

func NewModshipService(users persistence.UserStorage, modships persistence.ModshipStorage, logger *slog.Logger, now func() time.Time) ModshipService {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &modshipService{users: users, modships: modships, logger: logger, now: now}
}

// Grant makes userID a moderator of leaderboardID. Granting an existing
// modship returns the stored record unchanged.
func (s *modshipService) Grant(ctx context.Context, userID, leaderboardID string) (*domain.Modship, error) {
	userID = strings.TrimSpace(userID)
	leaderboardID = strings.TrimSpace(leaderboardID)
	if userID == "" || leaderboardID == "" {
		return nil, fmt.Errorf("%w: userId and leaderboardId are required", ErrInvalidInput)
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	m := &domain.Modship{UserID: userID, LeaderboardID: leaderboardID, CreatedAt: s.now().UTC()}
	if err := s.modships.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save modship: %w", err)
	}
	s.logger.InfoContext(ctx, "modship granted", "user_id", userID, "leaderboard_id", leaderboardID, "modship_id", m.ID)
	return m, nil
}

func (s *modshipService) ListForUser(ctx context.Context, userID string) ([]domain.Modship, error) {
	list, err := s.modships.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list modships: %w", err)
	}
	return list, nil
}
