package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/database"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

type UserRepo struct {
	DB      *sql.DB
	Dialect database.Dialect
}

func NewUserRepo(s *database.Store) *UserRepo { return &UserRepo{DB: s.DB, Dialect: s.Dialect} }

var (
	ErrEmailExists  = errors.New("email already exists")
	ErrUserNotFound = errors.New("user not found")
)

// NewUser carries the registration fields; Password is plain text and is
// hashed before insert.
type NewUser struct {
	Name        string
	PhoneNumber string
	Email       string
	Password    string
	Role        string
}

// Create inserts user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, u NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(u.Password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, phone_number, email, password_hash, role) VALUES (?,?,?,?,?)",
		strings.TrimSpace(u.Name), strings.TrimSpace(u.PhoneNumber), email, hash, u.Role)
	if err != nil {
		if r.Dialect.IsUniqueViolation(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const userCols = "id,name,phone_number,email,password_hash,role,is_active,created_at,updated_at"

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.GetByIDTx(ctx, r.DB, id)
}

// GetByIDTx is GetByID on a caller-supplied transaction or pool.
func (r *UserRepo) GetByIDTx(ctx context.Context, q database.Querier, id uint64) (model.User, error) {
	return scanUser(q.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u        model.User
		created  database.Timestamp
		updated  database.Timestamp
	)
	err := row.Scan(&u.ID, &u.Name, &u.PhoneNumber, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.CreatedAt, u.UpdatedAt = created.Time, updated.Time
	return u, nil
}
