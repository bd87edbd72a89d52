package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/token"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-auth-go/internal/user/repo"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type memStore struct {
	mu      sync.Mutex
	byEmail map[string]*entity.User
	// hideExisting makes ExistsByEmail report false so Save sees the conflict.
	hideExisting bool
	findErr      error
	updateErr    error
	// onFind runs before every lookup.
	onFind func()
}

func newMemStore() *memStore {
	return &memStore{byEmail: map[string]*entity.User{}}
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	if m.onFind != nil {
		m.onFind()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, userrepo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideExisting {
		return false, nil
	}
	_, ok := m.byEmail[email]
	return ok, nil
}

func (m *memStore) Save(_ context.Context, u *entity.User) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[u.Email]; ok {
		return nil, userrepo.ErrEmailTaken
	}
	cp := *u
	m.byEmail[u.Email] = &cp
	return u, nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, u := range m.byEmail {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return userrepo.ErrNotFound
}

func (m *memStore) put(u *entity.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byEmail[u.Email] = &cp
}

func (m *memStore) count(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.byEmail {
		if k == email {
			n++
		}
	}
	return n
}

// plainHasher keeps tests fast; bcrypt is covered in the user package.
// Hashes prefixed "legacy:" match but are reported as needing a rehash.
type plainHasher struct {
	mu      sync.Mutex
	matches int
}

func (p *plainHasher) Hash(pw string) (string, error) {
	if pw == "" {
		return "", errors.New("empty password")
	}
	return "hashed:" + pw, nil
}

func (p *plainHasher) Matches(pw, hash string) bool {
	p.mu.Lock()
	p.matches++
	p.mu.Unlock()
	for _, prefix := range []string{"hashed:", "legacy:"} {
		if strings.HasPrefix(hash, prefix) {
			return strings.TrimPrefix(hash, prefix) == pw
		}
	}
	return false
}

func (p *plainHasher) NeedsRehash(hash string) bool {
	return !strings.HasPrefix(hash, "hashed:")
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store  *memStore
	hasher *plainHasher
	tokens *token.Service
	svc    *Service
	clock  *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{t: time.Now().UTC().Truncate(time.Second)}
	tokens, err := token.NewService(token.Config{
		Secret:     testSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, token.WithClock(clk.now))
	require.NoError(t, err)

	store := newMemStore()
	hasher := &plainHasher{}
	svc := NewService(store, hasher, tokens, zap.NewNop().Sugar())
	next := int64(100)
	var mu sync.Mutex
	svc.newID = func() int64 {
		mu.Lock()
		defer mu.Unlock()
		next++
		return next
	}
	return &fixture{store: store, hasher: hasher, tokens: tokens, svc: svc, clock: clk}
}

func (f *fixture) seed(email, password string, role entity.Role, enabled bool) *entity.User {
	u := &entity.User{
		ID:           int64(len(email)),
		Firstname:    "Ada",
		Lastname:     "Lovelace",
		Email:        email,
		PasswordHash: "hashed:" + password,
		Role:         role,
		Enabled:      enabled,
	}
	f.store.put(u)
	return u
}
