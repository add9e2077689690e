package store

import (
	"context"
	"fmt"

	"github.com/roach88/warranty/internal/model"
)

// CreateUser inserts a user and returns its ID.
// Returns ErrConflict if the email (case-insensitive) is already registered.
func (s *Store) CreateUser(ctx context.Context, u model.User) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (full_name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, u.FullName, u.Email, u.PasswordHash, formatTimestamp(u.CreatedAt))
	if err != nil {
		return 0, classify("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user: last insert id: %w", err)
	}
	return id, nil
}

// UserByEmail looks up a user by email (case-insensitive).
func (s *Store) UserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, full_name, email, password_hash, created_at
		FROM users WHERE email = ?
	`, email)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, classify("user by email", err)
	}
	return u, nil
}

// UserByID looks up a user by ID.
func (s *Store) UserByID(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, full_name, email, password_hash, created_at
		FROM users WHERE user_id = ?
	`, id)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, classify("user by id", err)
	}
	return u, nil
}

// UpdateUserPassword replaces a user's password hash.
func (s *Store) UpdateUserPassword(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE user_id = ?`, hash, id)
	if err != nil {
		return classify("update password", err)
	}
	return requireAffected("update password", res)
}

// UpdateUserName replaces a user's display name.
func (s *Store) UpdateUserName(ctx context.Context, id int64, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET full_name = ? WHERE user_id = ?`, name, id)
	if err != nil {
		return classify("update name", err)
	}
	return requireAffected("update name", res)
}

// ListUsers returns users ordered by name.
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, full_name, email, password_hash, created_at
		FROM users
		ORDER BY full_name ASC, user_id ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(sc scanner) (model.User, error) {
	var (
		u       model.User
		created string
	)
	if err := sc.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &created); err != nil {
		return model.User{}, err
	}
	t, err := parseTimestamp("created_at", created)
	if err != nil {
		return model.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}

// CreateAdmin inserts an administrator and returns its ID.
func (s *Store) CreateAdmin(ctx context.Context, a model.Admin) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (full_name, email, password_hash) VALUES (?, ?, ?)
	`, a.FullName, a.Email, a.PasswordHash)
	if err != nil {
		return 0, classify("create admin", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create admin: last insert id: %w", err)
	}
	return id, nil
}

// AdminByEmail looks up an administrator by email (case-insensitive).
func (s *Store) AdminByEmail(ctx context.Context, email string) (model.Admin, error) {
	var a model.Admin
	err := s.db.QueryRowContext(ctx, `
		SELECT admin_id, full_name, email, password_hash FROM admins WHERE email = ?
	`, email).Scan(&a.ID, &a.FullName, &a.Email, &a.PasswordHash)
	if err != nil {
		return model.Admin{}, classify("admin by email", err)
	}
	return a, nil
}

// CountAdmins returns the number of administrators.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

