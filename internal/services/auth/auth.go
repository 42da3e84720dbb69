// Package auth provides trainer authentication services
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/findosh/shiller/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidToken       = errors.New("invalid token")
)

// DefaultTokenDuration is the lifetime of an issued token
const DefaultTokenDuration = time.Hour

// TrainerStore is the trainer persistence the service needs
type TrainerStore interface {
	Create(ctx context.Context, trainer *models.Trainer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trainer, error)
	GetByEmail(ctx context.Context, email string) (*models.Trainer, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// Claims are the JWT claims issued to a trainer
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Service handles authentication operations
type Service struct {
	trainers      TrainerStore
	secret        []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// NewService creates a new auth service
func NewService(trainers TrainerStore, secret string, tokenDuration time.Duration) *Service {
	if tokenDuration <= 0 {
		tokenDuration = DefaultTokenDuration
	}
	return &Service{
		trainers:      trainers,
		secret:        []byte(secret),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Register creates a new trainer account
func (s *Service) Register(ctx context.Context, email, password string) (*models.Trainer, error) {
	exists, err := s.trainers.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	trainer := models.NewTrainer(email, string(hash))
	if err := s.trainers.Create(ctx, trainer); err != nil {
		return nil, fmt.Errorf("failed to create trainer: %w", err)
	}

	return trainer, nil
}

// EnsureDemoTrainer creates the demo account unless it already exists
func (s *Service) EnsureDemoTrainer(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.Register(ctx, email, password)
	if errors.Is(err, ErrEmailExists) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("email", email).Msg("demo trainer created")
	return nil
}

// LoginResult contains the result of a successful login
type LoginResult struct {
	Trainer *models.Trainer
	Token   string
	Expires time.Time
}

// Login checks the credentials and issues a signed token
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	trainer, err := s.trainers.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find trainer: %w", err)
	}
	if trainer == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(trainer.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	expires := s.now().UTC().Add(s.tokenDuration)
	token, err := s.createToken(trainer, expires)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	return &LoginResult{
		Trainer: trainer,
		Token:   token,
		Expires: expires,
	}, nil
}

// ValidateToken verifies a token and returns the trainer it was issued to
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*models.Trainer, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}

	trainer, err := s.trainers.GetByID(ctx, id)
	if err != nil || trainer == nil {
		return nil, ErrInvalidToken
	}

	return trainer, nil
}

func (s *Service) createToken(trainer *models.Trainer, expires time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   trainer.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(s.now()),
			ID:        uuid.NewString(),
		},
		Email: trainer.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
