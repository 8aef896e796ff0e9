package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"imagetag/internal/config"
	"imagetag/internal/logger"
	"imagetag/internal/model"
	"imagetag/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email address is already registered")
	ErrInvalidInput       = errors.New("username, a valid email and a password are required")
	ErrInvalidToken       = errors.New("invalid session token")
)

const issuer = "imagetag"

// Principal is the authenticated user carried by a session token.
type Principal struct {
	UserID   int64
	Username string
}

type claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Service registers accounts and issues session tokens.
type Service struct {
	users  repository.UserRepository
	secret []byte
	ttl    time.Duration
	logger *logger.Logger
}

func NewService(config *config.Config, logger *logger.Logger, users repository.UserRepository) *Service {
	return &Service{
		users:  users,
		secret: []byte(config.SecretKey),
		ttl:    time.Duration(config.SessionTTLHours) * time.Hour,
		logger: logger,
	}
}

// TTLSeconds is how long an issued token stays valid, as a cookie max age.
func (s *Service) TTLSeconds() int {
	return int(s.ttl / time.Second)
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" || !isEmail(email) {
		return nil, ErrInvalidInput
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{Username: username, Email: email, PasswordHash: string(hash)}
	id, err := s.users.Insert(ctx, user)
	if err != nil {
		return nil, err
	}
	user.ID = id

	s.logger.Info("Registered user %d (%s)", id, username)
	return user, nil
}

// Login checks the credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", nil, err
	}
	if user == nil || !checkPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// IssueToken signs an HS256 token for user.
func (s *Service) IssueToken(user *model.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Name: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a session token and returns its principal.
func (s *Service) ParseToken(tokenStr string) (*Principal, error) {
	c := &claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrInvalidToken
	}
	return &Principal{UserID: id, Username: c.Name}, nil
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func isEmail(identity string) bool {
	addr, err := mail.ParseAddress(identity)
	return err == nil && addr.Address == identity
}
