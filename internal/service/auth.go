package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/errs"
)

// UserStore persists accounts.
type UserStore interface {
	// Create inserts u. A duplicate phone yields errs.KindConflict.
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Name     string
	Phone    string
	Password string
	Role     domain.Role
}

// AuthResult is a user paired with a freshly issued token.
type AuthResult struct {
	User  *domain.User
	Token string
}

type tokenClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService registers users and issues and verifies HS256 tokens.
type AuthService struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewAuthService creates an auth service.
func NewAuthService(users UserStore, cfg AuthConfig, now func() time.Time) (*AuthService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		users:  users,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		now:    now,
	}, nil
}

// Register creates an account and returns it with a token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	phone := strings.TrimSpace(in.Phone)
	if name == "" || phone == "" || in.Password == "" {
		return nil, errs.New(errs.KindValidation, "Please provide name, phone and password")
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, errs.Newf(errs.KindValidation, "invalid role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{Name: name, Phone: phone, PasswordHash: string(hash), Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		if errs.IsKind(err, errs.KindConflict) {
			return nil, errs.New(errs.KindConflict, "User already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Login checks credentials and returns a token.
func (s *AuthService) Login(ctx context.Context, phone, password string) (*AuthResult, error) {
	invalid := errs.New(errs.KindUnauthorized, "Invalid phone or password")

	user, err := s.users.GetByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate verifies a token and loads its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.New(errs.KindUnauthorized, "Not authorized, token expired")
		}
		return nil, errs.New(errs.KindUnauthorized, "Not authorized, token failed")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return nil, errs.New(errs.KindUnauthorized, "Not authorized, user not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
