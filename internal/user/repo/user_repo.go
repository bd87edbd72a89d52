package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/user/entity"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already taken")
)

const userColumns = `id, firstname, lastname, email, password_hash, role, enabled, created_at, updated_at`

// UserRepo provides data access for the users table using sqlx. Queries are
// written with ? placeholders and rebound for the active driver.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// FindByEmail returns the user with exactly this email or ErrNotFound.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, email); err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}

// GetByID fetches a user by primary key or ErrNotFound.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, id); err != nil {
		return nil, mapNotFound(err)
	}
	return &u, nil
}

// ExistsByEmail reports whether an account already uses this email.
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	q := r.db.Rebind(`SELECT COUNT(1) FROM users WHERE email = ?`)
	var n int
	if err := r.db.GetContext(ctx, &n, q, email); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Save inserts a new user. The unique index on email is the final arbiter for
// concurrent registrations; a conflict is reported as ErrEmailTaken.
func (r *UserRepo) Save(ctx context.Context, u *entity.User) (*entity.User, error) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	q := r.db.Rebind(`INSERT INTO users (id, firstname, lastname, email, password_hash, role, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Firstname, u.Lastname, u.Email, u.PasswordHash, string(u.Role), u.Enabled, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// List returns users ordered by creation time.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`)
	users := []*entity.User{}
	if err := r.db.SelectContext(ctx, &users, q, limit, offset); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateProfile changes the name fields only.
func (r *UserRepo) UpdateProfile(ctx context.Context, id int64, firstname, lastname string) (*entity.User, error) {
	q := `UPDATE users SET firstname = ?, lastname = ?, updated_at = ? WHERE id = ?`
	return r.updateAndGet(ctx, id, q, firstname, lastname, time.Now().UTC(), id)
}

// SetEnabled enables or disables an account.
func (r *UserRepo) SetEnabled(ctx context.Context, id int64, enabled bool) (*entity.User, error) {
	q := `UPDATE users SET enabled = ?, updated_at = ? WHERE id = ?`
	return r.updateAndGet(ctx, id, q, enabled, time.Now().UTC(), id)
}

// SetRole changes the role of an account.
func (r *UserRepo) SetRole(ctx context.Context, id int64, role entity.Role) (*entity.User, error) {
	q := `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`
	return r.updateAndGet(ctx, id, q, string(role), time.Now().UTC(), id)
}

// UpdatePasswordHash replaces the stored hash, e.g. after a bcrypt cost change.
func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	q := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), hash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) updateAndGet(ctx context.Context, id int64, q string, args ...any) (*entity.User, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation recognises unique constraint failures from both
// supported drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}
