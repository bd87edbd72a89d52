package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// PrincipalStore is the persistence the authentication flows need.
// Save must reject a duplicate email with userrepo.ErrEmailTaken.
type PrincipalStore interface {
	PrincipalLookup
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, u *entity.User) (*entity.User, error)
}

// CredentialVerifier hashes and checks passwords.
type CredentialVerifier interface {
	Hash(plaintext string) (string, error)
	Matches(plaintext, hash string) bool
}

// Hashers and stores that support it get stale hashes upgraded on login.
type rehasher interface {
	NeedsRehash(hash string) bool
}

type passwordUpdater interface {
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

type RegisterRequest struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Outcome is a successful authentication: a fresh token pair and the
// principal it was issued for.
type Outcome struct {
	Tokens token.Pair
	User   entity.PublicView
}

// Service runs the register, authenticate and refresh flows.
type Service struct {
	store  PrincipalStore
	hasher CredentialVerifier
	tokens *token.Service
	logger *zap.SugaredLogger
	newID  func() int64

	dummyOnce sync.Once
	dummyHash string
}

func NewService(store PrincipalStore, hasher CredentialVerifier, tokens *token.Service, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		newID:  utilities.NewSnowflakeID,
	}
}

// Register creates an enabled USER account and signs it in. The existence
// check and the insert are not atomic; a concurrent duplicate is caught by the
// unique index and reported as ErrEmailAlreadyExists as well.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Outcome, error) {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return nil, ErrInvalidRequest
	}

	exists, err := s.store.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.store.Save(ctx, &entity.User{
		ID:           s.newID(),
		Firstname:    strings.TrimSpace(req.Firstname),
		Lastname:     strings.TrimSpace(req.Lastname),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         entity.RoleUser,
		Enabled:      true,
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("save principal: %w", err)
	}
	s.logger.Infow("principal registered", "id", u.ID)
	return s.outcome(u)
}

// Authenticate checks email and password. Unknown email and wrong password
// both yield ErrInvalidCredentials and cost one bcrypt comparison.
func (s *Service) Authenticate(ctx context.Context, c Credentials) (*Outcome, error) {
	if c.Email == "" || c.Password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.store.FindByEmail(ctx, c.Email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			s.hasher.Matches(c.Password, s.fallbackHash())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load principal: %w", err)
	}
	if !s.hasher.Matches(c.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !u.Enabled {
		return nil, ErrPrincipalDisabled
	}
	s.upgradeHash(ctx, u, c.Password)
	return s.outcome(u)
}

// upgradeHash re-hashes the password when the hasher's cost has changed.
// Failures are logged; the login itself has already succeeded.
func (s *Service) upgradeHash(ctx context.Context, u *entity.User, password string) {
	rh, ok := s.hasher.(rehasher)
	if !ok || !rh.NeedsRehash(u.PasswordHash) {
		return
	}
	up, ok := s.store.(passwordUpdater)
	if !ok {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warnw("rehash password", "id", u.ID, "err", err)
		return
	}
	if err := up.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		s.logger.Warnw("store rehashed password", "id", u.ID, "err", err)
		return
	}
	s.logger.Infow("password hash upgraded", "id", u.ID)
}

// Refresh exchanges a refresh token for a new pair. The presented token is not
// recorded as used.
func (s *Service) Refresh(ctx context.Context, raw string) (*Outcome, error) {
	claims, err := s.tokens.Decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != token.KindRefresh {
		return nil, fmt.Errorf("%w: %s token presented for refresh", token.ErrInvalidToken, claims.Kind)
	}

	u, err := s.store.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("load principal: %w", err)
	}
	if !token.IsClaimsValid(claims, u) {
		if !u.Enabled {
			return nil, ErrPrincipalDisabled
		}
		return nil, token.ErrInvalidToken
	}
	return s.outcome(u)
}

func (s *Service) outcome(u *entity.User) (*Outcome, error) {
	pair, err := s.tokens.IssuePair(u)
	if err != nil {
		return nil, err
	}
	return &Outcome{Tokens: pair, User: u.View()}, nil
}

func (s *Service) fallbackHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("pitchfork-auth-unknown-principal")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
