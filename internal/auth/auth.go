package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/shambasmart/marketplace/internal/store"
	"github.com/shambasmart/marketplace/pkg/model"
)

var (
	// ErrInvalidCredentials hides whether the email or the password was
	// wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrInvalidRole  = errors.New("role must be FARMER or BUYER")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Service issues and verifies marketplace identities. Tokens are HS256 JWTs
// carrying the user id and role.
type Service struct {
	store    store.Store
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(st store.Store, secret []byte, tokenTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    st,
		secret:   secret,
		tokenTTL: tokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterParams carries a signup request.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Role     model.Role
	Location string
}

// Register creates a user with a bcrypt-hashed password. A duplicate email
// surfaces as store.ErrDuplicate.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*model.User, error) {
	if !p.Role.Valid() {
		return nil, ErrInvalidRole
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:             uuid.NewString(),
		Name:           p.Name,
		Email:          p.Email,
		Role:           p.Role,
		Location:       p.Location,
		HashedPassword: string(hashed),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.InsertUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("auth.user.registered",
		zap.String("user_id", u.ID),
		zap.String("role", string(u.Role)))
	return u, nil
}

// Login verifies credentials and returns a signed token plus the user.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) issueToken(u *model.User) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": string(u.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate parses a bearer token and loads the user it identifies.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}

	u, err := s.store.UserByID(ctx, sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return u, nil
}
