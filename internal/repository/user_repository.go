package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"contactbook/backend/internal/model"
)

var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrUserNotFound   = errors.New("user not found")
)

type CreateUserInput struct {
	Name         string
	Email        string
	PasswordHash string
	Role         model.Role
}

type UserStore interface {
	Create(ctx context.Context, input CreateUserInput) (uint64, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id uint64) (model.PublicUser, error)
	ListAll(ctx context.Context) ([]model.PublicUser, error)
	DeleteByID(ctx context.Context, id uint64) (bool, error)
	CountAdmins(ctx context.Context) (int, error)
	PromoteToAdmin(ctx context.Context, id uint64) error
}

type SQLUserStore struct {
	db *sql.DB
}

func NewSQLUserStore(db *sql.DB) *SQLUserStore {
	return &SQLUserStore{db: db}
}

const insertUserSQL = `
INSERT INTO users (name, email, password_hash, role)
VALUES (?, ?, ?, ?)
`

const findUserByEmailSQL = `
SELECT id, name, email, password_hash, role, created_at
FROM users
WHERE email = ?
LIMIT 1
`

const findUserByIDSQL = `
SELECT id, name, email, role, created_at
FROM users
WHERE id = ?
LIMIT 1
`

const listUsersSQL = `
SELECT id, name, email, role, created_at
FROM users
ORDER BY created_at DESC, id DESC
`

func (r *SQLUserStore) Create(ctx context.Context, input CreateUserInput) (uint64, error) {
	res, err := r.db.ExecContext(ctx, insertUserSQL, input.Name, input.Email, input.PasswordHash, string(input.Role))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			return 0, ErrDuplicateEmail
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (r *SQLUserStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	user := model.User{}
	err := r.db.QueryRowContext(ctx, findUserByEmailSQL, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return user, err
}

func (r *SQLUserStore) FindByID(ctx context.Context, id uint64) (model.PublicUser, error) {
	user := model.PublicUser{}
	err := r.db.QueryRowContext(ctx, findUserByIDSQL, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PublicUser{}, ErrUserNotFound
	}
	return user, err
}

func (r *SQLUserStore) ListAll(ctx context.Context) ([]model.PublicUser, error) {
	rows, err := r.db.QueryContext(ctx, listUsersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]model.PublicUser, 0)
	for rows.Next() {
		user := model.PublicUser{}
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteByID removes the user row. Owned contacts and refresh tokens go with
// it via ON DELETE CASCADE on their foreign keys.
func (r *SQLUserStore) DeleteByID(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SQLUserStore) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role = 'admin'`).Scan(&n)
	return n, err
}

func (r *SQLUserStore) PromoteToAdmin(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET role = 'admin' WHERE id = ?`, id)
	return err
}
