// Package account manages user and administrator credentials.
package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/clock"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/page"
	"github.com/roach88/warranty/internal/store"
	"github.com/roach88/warranty/internal/validate"
)

// Default administrator created by SeedAdmin.
const (
	DefaultAdminName     = "Administrator"
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "admin123"
)

// Registration is the input to Register.
type Registration struct {
	FullName string `json:"full_name" validate:"notblank,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
}

type passwordChange struct {
	New     string `json:"new_password" validate:"min=6"`
	Confirm string `json:"confirm_password" validate:"eqfield=New"`
}

// Profile is the public view of a user.
type Profile struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Service authenticates users and admins.
type Service struct {
	store     *store.Store
	clock     clock.Clock
	logger    *slog.Logger
	cost      int
	secretKey string
}

// Option configures a Service.
type Option func(*Service)

// WithCost sets the bcrypt cost.
func WithCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithSecretKey sets the token required by SeedAdmin.
func WithSecretKey(key string) Option {
	return func(s *Service) { s.secretKey = key }
}

// NewService creates an account service.
func NewService(st *store.Store, c clock.Clock, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: st, clock: c, logger: logger, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user account. Emails are unique case-insensitively.
func (s *Service) Register(ctx context.Context, r Registration) (Profile, error) {
	const op = "account.register"
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	if err := validate.Struct(op, r); err != nil {
		return Profile{}, err
	}

	hash, err := s.hash(r.Password)
	if err != nil {
		return Profile{}, apperr.Persistence(op, err)
	}
	id, err := s.store.CreateUser(ctx, model.User{
		FullName:     r.FullName,
		Email:        r.Email,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	})
	if errors.Is(err, store.ErrConflict) {
		return Profile{}, apperr.Duplicate(op, "an account with this email already exists")
	}
	if err != nil {
		return Profile{}, apperr.Persistence(op, err)
	}
	s.logger.Info("user registered", "user_id", id)
	return Profile{ID: id, FullName: r.FullName, Email: r.Email}, nil
}

// Authenticate checks a user's credentials and returns the caller identity.
func (s *Service) Authenticate(ctx context.Context, email, password string) (model.Identity, error) {
	const op = "account.authenticate"
	u, err := s.store.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return model.Identity{}, apperr.Unauthorized(op, "invalid email or password")
	}
	if err != nil {
		return model.Identity{}, apperr.Persistence(op, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return model.Identity{}, apperr.Unauthorized(op, "invalid email or password")
	}
	return model.Identity{UserID: u.ID}, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, id model.Identity, current, next, confirm string) error {
	const op = "account.change_password"
	if next == "" || next != confirm {
		return apperr.Validation(op, "passwords do not match")
	}
	if err := validate.Struct(op, passwordChange{New: next, Confirm: confirm}); err != nil {
		return err
	}

	u, err := s.user(ctx, op, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return apperr.Unauthorized(op, "current password is incorrect")
	}

	hash, err := s.hash(next)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	if err := s.store.UpdateUserPassword(ctx, id.UserID, hash); err != nil {
		return apperr.Persistence(op, err)
	}
	s.logger.Info("password changed", "user_id", id.UserID)
	return nil
}

// Rename sets the caller's display name.
func (s *Service) Rename(ctx context.Context, id model.Identity, name string) error {
	const op = "account.rename"
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation(op, "full name is required")
	}
	err := s.store.UpdateUserName(ctx, id.UserID, name)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(op, "user not found")
	}
	if err != nil {
		return apperr.Persistence(op, err)
	}
	return nil
}

// Profile returns the caller's profile.
func (s *Service) Profile(ctx context.Context, id model.Identity) (Profile, error) {
	u, err := s.user(ctx, "account.profile", id)
	if err != nil {
		return Profile{}, err
	}
	return Profile{ID: u.ID, FullName: u.FullName, Email: u.Email}, nil
}

// AuthenticateAdmin checks administrator credentials.
func (s *Service) AuthenticateAdmin(ctx context.Context, email, password string) (model.AdminIdentity, error) {
	const op = "account.authenticate_admin"
	a, err := s.store.AdminByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return model.AdminIdentity{}, apperr.Unauthorized(op, "invalid admin email or password")
	}
	if err != nil {
		return model.AdminIdentity{}, apperr.Persistence(op, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return model.AdminIdentity{}, apperr.Unauthorized(op, "invalid admin email or password")
	}
	return model.AdminIdentity{AdminID: a.ID}, nil
}

// SeedAdmin creates the default administrator when no administrator exists.
// token must equal the configured secret key. It reports whether an admin
// was created.
func (s *Service) SeedAdmin(ctx context.Context, token string) (bool, error) {
	const op = "account.seed_admin"
	if s.secretKey == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.secretKey)) != 1 {
		return false, apperr.Unauthorized(op, "invalid seed token")
	}

	n, err := s.store.CountAdmins(ctx)
	if err != nil {
		return false, apperr.Persistence(op, err)
	}
	if n > 0 {
		return false, nil
	}

	hash, err := s.hash(DefaultAdminPassword)
	if err != nil {
		return false, apperr.Persistence(op, err)
	}
	_, err = s.store.CreateAdmin(ctx, model.Admin{
		FullName:     DefaultAdminName,
		Email:        DefaultAdminEmail,
		PasswordHash: hash,
	})
	if errors.Is(err, store.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Persistence(op, err)
	}
	s.logger.Warn("default administrator created; change its password", "email", DefaultAdminEmail)
	return true, nil
}

// ListUsers returns a page of users for the admin view.
func (s *Service) ListUsers(ctx context.Context, _ model.AdminIdentity, p page.Request) ([]Profile, error) {
	users, err := s.store.ListUsers(ctx, p.Limit(), p.Offset())
	if err != nil {
		return nil, apperr.Persistence("account.list_users", err)
	}
	profiles := make([]Profile, len(users))
	for i, u := range users {
		profiles[i] = Profile{ID: u.ID, FullName: u.FullName, Email: u.Email}
	}
	return profiles, nil
}

func (s *Service) user(ctx context.Context, op string, id model.Identity) (model.User, error) {
	u, err := s.store.UserByID(ctx, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, apperr.NotFound(op, "user not found")
	}
	if err != nil {
		return model.User{}, apperr.Persistence(op, err)
	}
	return u, nil
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
