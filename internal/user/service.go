package user

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/user/repo"
)

// BcryptHasher hashes and verifies passwords with bcrypt.
type BcryptHasher struct{ Cost int }

// HasherFromEnv reads BCRYPT_COST, falling back to 12.
func HasherFromEnv() BcryptHasher {
	cost := 12
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		if c, err := strconv.Atoi(v); err == nil && c >= bcrypt.MinCost && c <= bcrypt.MaxCost {
			cost = c
		}
	}
	return BcryptHasher{Cost: cost}
}

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Matches(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// NeedsRehash reports whether hash was made with a different cost than the
// one currently configured.
func (b BcryptHasher) NeedsRehash(hash string) bool {
	c, err := bcrypt.Cost([]byte(hash))
	return err != nil || c != b.cost()
}

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

// Service covers profile reads/updates and admin account management.
// Route-level role checks happen in middleware; Service enforces the
// self-or-admin rule for individual profiles.
type Service struct {
	repo *userrepo.UserRepo
}

func NewService(r *userrepo.UserRepo) *Service {
	return &Service{repo: r}
}

func canAccess(actor *entity.User, id int64) bool {
	return actor != nil && (actor.ID == id || actor.Role == entity.RoleAdmin)
}

// Get returns the user with id if actor is that user or an admin.
func (s *Service) Get(ctx context.Context, actor *entity.User, id int64) (*entity.User, error) {
	if !canAccess(actor, id) {
		return nil, ErrForbidden
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile changes first and last name. Email, password, role and
// enabled flag are never touched here.
func (s *Service) UpdateProfile(ctx context.Context, actor *entity.User, id int64, firstname, lastname string) (*entity.User, error) {
	if !canAccess(actor, id) {
		return nil, ErrForbidden
	}
	return s.repo.UpdateProfile(ctx, id, strings.TrimSpace(firstname), strings.TrimSpace(lastname))
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) SetEnabled(ctx context.Context, id int64, enabled bool) (*entity.User, error) {
	return s.repo.SetEnabled(ctx, id, enabled)
}

func (s *Service) SetRole(ctx context.Context, id int64, role string) (*entity.User, error) {
	r, err := entity.ParseRole(role)
	if err != nil {
		return nil, ErrInvalidInput
	}
	return s.repo.SetRole(ctx, id, r)
}

// SetEnabledByEmail and SetRoleByEmail serve admin tooling that addresses
// accounts by login email.
func (s *Service) SetEnabledByEmail(ctx context.Context, email string, enabled bool) (*entity.User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.repo.SetEnabled(ctx, u.ID, enabled)
}

func (s *Service) SetRoleByEmail(ctx context.Context, email, role string) (*entity.User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.SetRole(ctx, u.ID, role)
}
