package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

const minPasswordLength = 8

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(p auth.Principal) (string, error)
}

// Service handles registration, login and account administration.
type Service struct {
	repo     Repository
	issuer   TokenIssuer
	logger   *logging.Logger
	hashCost int
}

type Option func(*Service)

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func NewService(repo Repository, issuer TokenIssuer, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, issuer: issuer, logger: logger, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Credentials is a registration or account creation request.
type Credentials struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Session is returned by a successful login.
type Session struct {
	Token string `json:"access_token"`
	Type  string `json:"token_type"`
	User  *User  `json:"user"`
}

// Register creates a student account. The role field is ignored.
func (s *Service) Register(ctx context.Context, c Credentials) (*User, error) {
	return s.create(ctx, c, auth.RoleStudent)
}

// CreateUser lets an admin create an account with any role.
func (s *Service) CreateUser(ctx context.Context, actor auth.Principal, c Credentials) (*User, error) {
	if actor.Role != auth.RoleAdmin {
		return nil, ErrForbidden
	}
	role := auth.RoleStudent
	if c.Role != "" {
		var err error
		if role, err = auth.ParseRole(c.Role); err != nil {
			return nil, err
		}
	}
	u, err := s.create(ctx, c, role)
	if err == nil {
		s.logger.Info("account created by admin", "user_id", u.ID, "role", u.Role, "by", actor.UserID)
	}
	return u, err
}

func (s *Service) create(ctx context.Context, c Credentials, role auth.Role) (*User, error) {
	name := strings.TrimSpace(c.FullName)
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if name == "" || email == "" {
		return nil, ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("users: invalid email %q: %w", email, ErrMissingFields)
	}
	if len(c.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	u := &User{FullName: name, Email: email, Role: role, PasswordHash: string(hash)}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login checks the password and issues a bearer token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("login rejected", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	token, err := s.issuer.Issue(u.Principal())
	if err != nil {
		return nil, fmt.Errorf("users: issue token: %w", err)
	}
	return &Session{Token: token, Type: "bearer", User: u}, nil
}

// List returns accounts, optionally filtered by role. Admin only.
func (s *Service) List(ctx context.Context, actor auth.Principal, roles []auth.Role) ([]*User, error) {
	if actor.Role != auth.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.repo.List(ctx, roles)
}

// Delete removes an account. Admin only, and never the caller's own.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id int64) error {
	if actor.Role != auth.RoleAdmin {
		return ErrForbidden
	}
	if actor.UserID == id {
		return ErrSelfDelete
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("account deleted", "user_id", id, "by", actor.UserID)
	return nil
}

// EnsureAdmin creates the bootstrap admin account when no account uses email.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	if name == "" {
		name = "Clinic Admin"
	}
	_, err = s.create(ctx, Credentials{FullName: name, Email: email, Password: password}, auth.RoleAdmin)
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}
