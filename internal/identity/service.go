package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/muraturkgeldi/qrstock/internal/orders"
	"github.com/muraturkgeldi/qrstock/internal/platform/auth"
	"github.com/nats-io/nuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidUsername    = errors.New("username is required")
	ErrInvalidPassword    = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AuthResponse struct {
	Token       string `json:"token"`
	UID         string `json:"uid"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

type Service struct {
	Repo      Repository
	AuthToken auth.Manager
	NewUID    func() string
}

func NewService(repo Repository, tokenManager auth.Manager) *Service {
	return &Service{
		Repo:      repo,
		AuthToken: tokenManager,
		NewUID:    nuid.Next,
	}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateCredentials(username, password string) error {
	if normalizeUsername(username) == "" {
		return ErrInvalidUsername
	}
	if len(strings.TrimSpace(password)) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

func (s *Service) Register(ctx context.Context, username, password, displayName, email string) (AuthResponse, error) {
	if err := validateCredentials(username, password); err != nil {
		return AuthResponse{}, err
	}
	uname := normalizeUsername(username)
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = uname
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResponse{}, err
	}

	u := User{
		UID:          s.NewUID(),
		Username:     uname,
		DisplayName:  displayName,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
	}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		return AuthResponse{}, err
	}
	return s.issueToken(u)
}

func (s *Service) Login(ctx context.Context, username, password string) (AuthResponse, error) {
	uname := normalizeUsername(username)
	if uname == "" || strings.TrimSpace(password) == "" {
		return AuthResponse{}, ErrInvalidCredentials
	}

	u, err := s.Repo.FindUserByUsername(ctx, uname)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResponse{}, ErrInvalidCredentials
		}
		return AuthResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return AuthResponse{}, ErrInvalidCredentials
	}
	return s.issueToken(u)
}

// LookupByUID resolves an order actor from the user directory. An unknown uid
// is reported through found, not as an error.
func (s *Service) LookupByUID(ctx context.Context, uid string) (orders.Actor, bool, error) {
	u, err := s.Repo.FindUserByUID(ctx, strings.TrimSpace(uid))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return orders.Actor{}, false, nil
		}
		return orders.Actor{}, false, err
	}
	return orders.Actor{UID: u.UID, DisplayName: u.DisplayName, Email: u.Email}, true, nil
}

func (s *Service) issueToken(u User) (AuthResponse, error) {
	token, err := s.AuthToken.Sign(u.UID, u.DisplayName, u.Email)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{
		Token:       token,
		UID:         u.UID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
	}, nil
}

func NewTokenManager(secret string) auth.Manager {
	return auth.NewManager(secret, 15*time.Minute)
}
