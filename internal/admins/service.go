package admins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"smarthub-backend/internal/auth"
	"smarthub-backend/internal/db"
	"smarthub-backend/internal/middleware"
	"smarthub-backend/internal/models"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account temporarily locked")
	ErrAlreadyInitialized  = errors.New("admin already initialized")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrInactive            = errors.New("account disabled")
	ErrNotFound            = errors.New("admin not found")
	ErrSetupNotConfigured  = errors.New("setup password not configured")
	ErrDatabaseUnavailable = db.ErrUnavailable
)

// SetupDefaults is the bootstrap account used when /auth/setup has no body.
type SetupDefaults struct {
	Email    string
	Password string
}

type Service struct {
	repo     Repository
	tokens   *auth.Manager
	pinger   db.Pinger
	defaults SetupDefaults
	location *time.Location

	readyTimeout  time.Duration
	readyInterval time.Duration
	now           func() time.Time
}

func NewService(repo Repository, tokens *auth.Manager, pinger db.Pinger, defaults SetupDefaults, location *time.Location) *Service {
	return &Service{
		repo:          repo,
		tokens:        tokens,
		pinger:        pinger,
		defaults:      defaults,
		location:      location,
		readyTimeout:  30 * time.Second,
		readyInterval: time.Second,
		now:           time.Now,
	}
}

func (s *Service) clock() time.Time {
	return s.now().In(s.location)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	email := normalizeEmail(req.Email)
	admin, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !admin.IsActive {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.clock()
	if admin.lockedAt(now) {
		return LoginResult{}, ErrAccountLocked
	}

	if err := auth.ComparePassword(admin.PasswordHash, req.Password); err != nil {
		restart := admin.LockUntil != nil
		attempts, err := s.repo.RecordFailedLogin(ctx, admin.ID, restart, now)
		if err != nil {
			return LoginResult{}, err
		}
		if attempts >= MaxLoginAttempts {
			if err := s.repo.Lock(ctx, admin.ID, now.Add(LockDuration)); err != nil {
				return LoginResult{}, err
			}
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := s.repo.RecordLogin(ctx, admin.ID, now); err != nil {
		return LoginResult{}, err
	}
	admin.LoginAttempts = 0
	admin.LockUntil = nil
	admin.LastLogin = &now

	token, expires, err := s.tokens.NewToken(admin.ID, admin.Role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: expires, Admin: admin}, nil
}

// Setup creates the first admin once the database answers.
func (s *Service) Setup(ctx context.Context, req SetupRequest) (Admin, error) {
	if s.pinger != nil {
		if err := db.WaitReady(ctx, s.pinger, s.readyTimeout, s.readyInterval); err != nil {
			return Admin{}, ErrDatabaseUnavailable
		}
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return Admin{}, err
	}
	if count > 0 {
		return Admin{}, ErrAlreadyInitialized
	}

	email := normalizeEmail(req.Email)
	if email == "" {
		email = normalizeEmail(s.defaults.Email)
	}
	password := req.Password
	if password == "" {
		password = s.defaults.Password
	}
	if password == "" {
		return Admin{}, ErrSetupNotConfigured
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Administrator"
	}

	admin, err := s.create(ctx, email, password, name, models.RoleAdmin)
	if errors.Is(err, ErrDuplicateEmail) {
		return Admin{}, ErrAlreadyInitialized
	}
	return admin, err
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (Admin, error) {
	return s.create(ctx, normalizeEmail(req.Email), req.Password, strings.TrimSpace(req.Name), normalizeRole(req.Role))
}

func (s *Service) create(ctx context.Context, email, password, name, role string) (Admin, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Admin{}, err
	}
	now := s.clock()
	admin := Admin{
		ID:           primitive.NewObjectID().Hex(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Admin{}, ErrDuplicateEmail
		}
		return Admin{}, err
	}
	return admin, nil
}

// Verify reloads the account behind a token.
func (s *Service) Verify(ctx context.Context, id string) (Admin, error) {
	admin, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Admin{}, ErrNotFound
		}
		return Admin{}, err
	}
	if !admin.IsActive {
		return Admin{}, ErrInactive
	}
	return admin, nil
}

// ActiveRole backs middleware.RequireActive on protected routes.
func (s *Service) ActiveRole(ctx context.Context, id string) (string, error) {
	admin, err := s.Verify(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInactive) {
			return "", fmt.Errorf("%w: %s", middleware.ErrAccountDisabled, err.Error())
		}
		return "", err
	}
	return admin.Role, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
