package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/osvaldoandrade/leaderboards/internal/roles"
	"github.com/osvaldoandrade/leaderboards/pkg/auth"
	"github.com/osvaldoandrade/leaderboards/pkg/domain"
)

// Reason says why an authorization attempt failed.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNoIdentity       Reason = "no-identity"
	ReasonInsufficientRole Reason = "insufficient-role"
)

// Outcome is the result of evaluating one Requirement for one request.
type Outcome struct {
	Reason Reason
}

func Succeeded() Outcome { return Outcome{} }

func Failed(reason Reason) Outcome { return Outcome{Reason: reason} }

func (o Outcome) Succeeded() bool { return o.Reason == ReasonNone }

// Label is the metrics label for the outcome.
func (o Outcome) Label() string {
	switch o.Reason {
	case ReasonNone:
		return "allowed"
	case ReasonInsufficientRole:
		return "forbidden"
	default:
		return "unauthenticated"
	}
}

// Requirement is the minimum role a route demands. Build one per route
// group at registration time and share it.
type Requirement struct {
	Role domain.Role
}

func NewRequirement(role domain.Role) Requirement {
	return Requirement{Role: role}
}

// Principal is a verified caller with their resolved roles.
type Principal struct {
	auth.Identity
	Roles roles.Set
}

type TokenValidator interface {
	Validate(token string) (auth.Identity, bool)
}

type RoleResolver interface {
	Resolve(ctx context.Context, id auth.Identity) (roles.Set, error)
}

type Evaluator struct {
	tokens   TokenValidator
	resolver RoleResolver
	logger   *slog.Logger
}

func NewEvaluator(tokens TokenValidator, resolver RoleResolver, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{tokens: tokens, resolver: resolver, logger: logger}
}

// Evaluate decides req for the request carrying authHeader. The principal is
// returned whenever the caller was identified, even if the role check failed.
func (e *Evaluator) Evaluate(ctx context.Context, req Requirement, authHeader string) (Outcome, *Principal) {
	token, ok := auth.TryExtract(authHeader)
	if !ok {
		return Failed(ReasonNoIdentity), nil
	}
	id, ok := e.tokens.Validate(token)
	if !ok {
		return Failed(ReasonNoIdentity), nil
	}

	set, err := e.resolver.Resolve(ctx, id)
	if err != nil {
		if !errors.Is(err, roles.ErrUnknownSubject) {
			e.logger.WarnContext(ctx, "role resolution failed", "user_id", id.UserID, "err", err)
		}
		return Failed(ReasonNoIdentity), nil
	}

	p := &Principal{Identity: id, Roles: set}
	if !set.Satisfies(req.Role) {
		return Failed(ReasonInsufficientRole), p
	}
	return Succeeded(), p
}
