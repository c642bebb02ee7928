package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/osvaldoandrade/leaderboards/pkg/domain"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"

	"github.com/google/uuid"
)

// Plugin implements PluginPersistence for in-memory storage
// This is primarily for testing and local development
type Plugin struct {
	mu       sync.RWMutex
	users    map[string]*domain.User
	byEmail  map[string]string
	modships map[string][]domain.Modship
	tz       *time.Location
}

// NewPlugin creates a new in-memory persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	tz := config.Timezone
	if tz == nil {
		tz = time.UTC
	}
	return &Plugin{
		users:    make(map[string]*domain.User),
		byEmail:  make(map[string]string),
		modships: make(map[string][]domain.Modship),
		tz:       tz,
	}, nil
}

// UserStorage returns the user storage implementation
func (p *Plugin) UserStorage() persistence.UserStorage {
	return &userStorage{plugin: p}
}

// ModshipStorage returns the modship storage implementation
func (p *Plugin) ModshipStorage() persistence.ModshipStorage {
	return &modshipStorage{plugin: p}
}

// Health always returns nil for in-memory storage
func (p *Plugin) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage
func (p *Plugin) Close() error {
	return nil
}

func init() {
	persistence.RegisterProvider("memory", NewPlugin)
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type userStorage struct {
	plugin *Plugin
}

func (s *userStorage) Save(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.plugin
	p.mu.Lock()
	defer p.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().In(p.tz)
	}
	key := emailKey(user.Email)
	if owner, ok := p.byEmail[key]; ok && owner != user.ID {
		return persistence.ErrAlreadyExists
	}
	if prev, ok := p.users[user.ID]; ok {
		delete(p.byEmail, emailKey(prev.Email))
	}
	cp := *user
	p.users[user.ID] = &cp
	p.byEmail[key] = user.ID
	return nil
}

func (s *userStorage) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.plugin
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStorage) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.plugin
	p.mu.RLock()
	id, ok := p.byEmail[emailKey(email)]
	p.mu.RUnlock()
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

type modshipStorage struct {
	plugin *Plugin
}

func (s *modshipStorage) Save(ctx context.Context, modship *domain.Modship) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.plugin
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range p.modships[modship.UserID] {
		if m.LeaderboardID == modship.LeaderboardID {
			*modship = m
			return nil
		}
	}
	if modship.ID == "" {
		modship.ID = uuid.NewString()
	}
	if modship.CreatedAt.IsZero() {
		modship.CreatedAt = time.Now().In(p.tz)
	}
	p.modships[modship.UserID] = append(p.modships[modship.UserID], *modship)
	return nil
}

func (s *modshipStorage) ListByUser(ctx context.Context, userID string) ([]domain.Modship, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := s.plugin
	p.mu.RLock()
	defer p.mu.RUnlock()

	list := p.modships[userID]
	out := make([]domain.Modship, len(list))
	copy(out, list)
	return out, nil
}
