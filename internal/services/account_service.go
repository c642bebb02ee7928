package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/osvaldoandrade/leaderboards/internal/metrics"
	"github.com/osvaldoandrade/leaderboards/pkg/auth"
	"github.com/osvaldoandrade/leaderboards/pkg/domain"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
)

type TokenIssuer interface {
	Issue(id auth.Identity) (string, error)
}

type AccountService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (string, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, username, email, password string, admin bool) (*domain.User, error)
}

type accountService struct {
	users  persistence.UserStorage
	tokens TokenIssuer
	logger *slog.Logger
	now    func() time.Time
	cost   int
	tracer trace.Tracer

	dummyOnce sync.Once
	dummy     []byte
}

func NewAccountService(users persistence.UserStorage, tokens TokenIssuer, logger *slog.Logger, now func() time.Time) AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &accountService{
		users:  users,
		tokens: tokens,
		logger: logger,
		now:    now,
		cost:   bcrypt.DefaultCost,
		tracer: otel.Tracer("leaderboards/accounts"),
	}
}

func (s *accountService) Register(ctx context.Context, username, email, password string) (*domain.User, string, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.Register")
	defer span.End()

	user, err := s.CreateUser(ctx, username, email, password, false)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, "", err
	}
	token, err := s.tokens.Issue(auth.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		span.RecordError(err)
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	metrics.TokensIssuedTotal.WithLabelValues("register").Inc()
	span.SetAttributes(attribute.String("user.id", user.ID))
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, token, nil
}

// CreateUser hashes the password and stores a new account. Only the CLI
// passes admin=true.
func (s *accountService) CreateUser(ctx context.Context, username, email, password string, admin bool) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password too long", ErrInvalidInput)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Admin:        admin,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, persistence.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

func (s *accountService) Login(ctx context.Context, email, password string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "accounts.Login")
	defer span.End()

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, persistence.ErrNotFound) {
		// Burn a comparison so unknown emails cost the same as wrong passwords.
		_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(password))
		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return "", ErrInvalidCredentials
	}
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return "", fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(auth.Identity{UserID: user.ID, Email: user.Email})
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("issue token: %w", err)
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	metrics.TokensIssuedTotal.WithLabelValues("login").Inc()
	span.SetAttributes(attribute.String("user.id", user.ID))
	return token, nil
}

func (s *accountService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *accountService) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummy, _ = bcrypt.GenerateFromPassword([]byte("leaderboards-dummy-password"), s.cost)
	})
	return s.dummy
}
