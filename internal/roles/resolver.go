package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/osvaldoandrade/leaderboards/internal/metrics"
	"github.com/osvaldoandrade/leaderboards/pkg/auth"
	"github.com/osvaldoandrade/leaderboards/pkg/domain"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnknownSubject means the token names a user the store does not know.
var ErrUnknownSubject = errors.New("unknown subject")

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

type ModshipLister interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Modship, error)
}

type Resolver struct {
	users    UserFinder
	modships ModshipLister
	tracer   trace.Tracer
}

func NewResolver(users UserFinder, modships ModshipLister) *Resolver {
	return &Resolver{
		users:    users,
		modships: modships,
		tracer:   otel.Tracer("leaderboards/roles"),
	}
}

// Resolve looks the caller up and returns their roles. Admin wins over Mod;
// any modship at all grants Mod, whichever leaderboard it belongs to.
func (r *Resolver) Resolve(ctx context.Context, id auth.Identity) (Set, error) {
	ctx, span := r.tracer.Start(ctx, "roles.Resolve", trace.WithAttributes(attribute.String("user.id", id.UserID)))
	defer span.End()

	start := time.Now()
	set, err := r.resolve(ctx, id)
	result := "ok"
	switch {
	case errors.Is(err, ErrUnknownSubject):
		result = "unknown_subject"
	case err != nil:
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "role resolution failed")
	default:
		span.SetAttributes(attribute.String("user.role", string(set.Primary())))
	}
	metrics.RoleResolutionSeconds.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return set, err
}

func (r *Resolver) resolve(ctx context.Context, id auth.Identity) (Set, error) {
	user, err := r.users.FindByID(ctx, id.UserID)
	if errors.Is(err, persistence.ErrNotFound) || (err == nil && user == nil) {
		return Set{}, ErrUnknownSubject
	}
	if err != nil {
		return Set{}, fmt.Errorf("find user %s: %w", id.UserID, err)
	}
	if user.Admin {
		return NewSet(domain.RoleAdmin), nil
	}

	mods, err := r.modships.ListByUser(ctx, user.ID)
	if err != nil {
		return Set{}, fmt.Errorf("list modships for %s: %w", user.ID, err)
	}
	if len(mods) > 0 {
		return NewSet(domain.RoleMod), nil
	}
	return NewSet(), nil
}
