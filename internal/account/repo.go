package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"classattend/internal/store"
)

// User is a registered student or lecturer. RegNumber is set for
// students only, ClassYear for lecturers only.
type User struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	RegNumber    *string   `json:"reg_number,omitempty"`
	ClassYear    *string   `json:"class_year,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists users.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, role, email, password_hash, full_name, reg_number, class_year, created_at`

// GetByEmailAndRole returns the user or nil when absent.
func (r *Repository) GetByEmailAndRole(ctx context.Context, email, role string) (*User, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+userColumns+` FROM users WHERE email = ? AND role = ?`), email, role)
	var u User
	if err := row.Scan(&u.ID, &u.Role, &u.Email, &u.PasswordHash, &u.FullName, &u.RegNumber, &u.ClassYear, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// EmailExists reports whether any user claimed the email.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM users WHERE email = ?`), email).Scan(&n)
	return n > 0, err
}

// RegNumberExists reports whether any student claimed the
// registration number.
func (r *Repository) RegNumberExists(ctx context.Context, regNumber string) (bool, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM users WHERE reg_number = ?`), regNumber).Scan(&n)
	return n > 0, err
}

// Insert writes a new user row.
func (r *Repository) Insert(ctx context.Context, u User) error {
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users (id, role, email, password_hash, full_name, reg_number, class_year, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), u.ID, u.Role, u.Email, u.PasswordHash, u.FullName, u.RegNumber, u.ClassYear, u.CreatedAt)
	return err
}

// InsertStudentWithRegistration creates the student and their first
// module registration in one transaction, so a failed registration
// never leaves an account without the module it signed up through.
func (r *Repository) InsertStudentWithRegistration(ctx context.Context, u User, moduleID string) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users (id, role, email, password_hash, full_name, reg_number, class_year, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), u.ID, u.Role, u.Email, u.PasswordHash, u.FullName, u.RegNumber, u.ClassYear, u.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO module_registrations (student_id, module_id, created_at)
		VALUES (?, ?, ?)
	`), u.ID, moduleID, u.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}
