package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"patientdocs/internal/auth"
	"patientdocs/internal/config"
	"patientdocs/internal/model"
	"patientdocs/internal/repository"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrNameRequired       = errors.New("first and last name are required")
)

// RegisterInput carries a new account request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	User        *model.User `json:"user"`
}

// AuthService defines account registration and login use cases.
type AuthService interface {
	// Register creates a new account with a bcrypt password hash.
	Register(ctx context.Context, in RegisterInput) (*model.User, error)

	// Login verifies credentials and issues an access token.
	Login(ctx context.Context, email, password string) (*LoginResult, error)

	// CurrentUser resolves an authenticated user ID to its account.
	CurrentUser(ctx context.Context, id string) (*model.User, error)
}

type authService struct {
	repo repository.UserRepository
	cfg  config.AuthConfig
}

// NewAuthService constructs a new AuthService.
func NewAuthService(repo repository.UserRepository, cfg config.AuthConfig) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

// normalizeEmail lowercases and trims an address so lookups are stable.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(in.Password) < 8 {
		return nil, ErrWeakPassword
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, ErrNameRequired
	}

	// Pre-check for a friendlier error; the unique index is the real guard.
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check existing email: %w", err)
	}

	cost := s.cfg.BCryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	stored, err := s.repo.Create(ctx, user)
	if err != nil {
		// The pre-check above races with concurrent registrations; the unique
		// index on email is the real guard.
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return stored, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, []byte(s.cfg.JWTSecret), s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   int64(s.cfg.AccessTokenTTL.Seconds()),
		User:        user,
	}, nil
}

func (s *authService) CurrentUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
