package roster

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"classattend/internal/store"
)

// Module is a taught course unit owned by exactly one lecturer.
type Module struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	InviteCode string    `json:"invite_code"`
	LecturerID string    `json:"lecturer_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository persists modules and student registrations.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

const moduleColumns = `id, code, name, invite_code, lecturer_id, created_at`

// Insert writes a new module row. Unique violations bubble up raw so
// the service can tell a code clash from an invite-code clash.
func (r *Repository) Insert(ctx context.Context, m Module) error {
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO modules (id, code, name, invite_code, lecturer_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), m.ID, m.Code, m.Name, m.InviteCode, m.LecturerID, m.CreatedAt)
	return err
}

func (r *Repository) scanModule(row *sql.Row) (*Module, error) {
	var m Module
	if err := row.Scan(&m.ID, &m.Code, &m.Name, &m.InviteCode, &m.LecturerID, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// GetByID returns a module or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*Module, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+moduleColumns+` FROM modules WHERE id = ?`), id)
	return r.scanModule(row)
}

// GetByCode returns a module or nil when absent.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Module, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+moduleColumns+` FROM modules WHERE code = ?`), code)
	return r.scanModule(row)
}

// GetByInviteCode returns a module or nil when absent.
func (r *Repository) GetByInviteCode(ctx context.Context, inviteCode string) (*Module, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+moduleColumns+` FROM modules WHERE invite_code = ?`), inviteCode)
	return r.scanModule(row)
}

// ListByLecturer returns the modules a lecturer owns.
func (r *Repository) ListByLecturer(ctx context.Context, lecturerID string) ([]Module, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(
		`SELECT `+moduleColumns+` FROM modules WHERE lecturer_id = ? ORDER BY created_at DESC`), lecturerID)
	if err != nil {
		return nil, err
	}
	return collectModules(rows)
}

// ListByStudent returns the modules a student is registered for.
func (r *Repository) ListByStudent(ctx context.Context, studentID string) ([]Module, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(`
		SELECT m.id, m.code, m.name, m.invite_code, m.lecturer_id, m.created_at
		FROM modules m
		JOIN module_registrations mr ON m.id = mr.module_id
		WHERE mr.student_id = ?
		ORDER BY m.created_at DESC
	`), studentID)
	if err != nil {
		return nil, err
	}
	return collectModules(rows)
}

func collectModules(rows *sql.Rows) ([]Module, error) {
	defer rows.Close()
	var res []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.InviteCode, &m.LecturerID, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// IsOwner reports whether the lecturer owns the module.
func (r *Repository) IsOwner(ctx context.Context, moduleID, lecturerID string) (bool, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM modules WHERE id = ? AND lecturer_id = ?`), moduleID, lecturerID).Scan(&n)
	return n > 0, err
}

// IsRegistered reports whether the student holds a registration for
// the module.
func (r *Repository) IsRegistered(ctx context.Context, studentID, moduleID string) (bool, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM module_registrations WHERE student_id = ? AND module_id = ?`), studentID, moduleID).Scan(&n)
	return n > 0, err
}

// InsertRegistration joins a student to a module. The primary key on
// (student_id, module_id) turns a lost race into ErrAlreadyRegistered.
func (r *Repository) InsertRegistration(ctx context.Context, studentID, moduleID string) error {
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO module_registrations (student_id, module_id, created_at)
		VALUES (?, ?, ?)
	`), studentID, moduleID, time.Now().UTC())
	if err != nil && store.IsUniqueViolation(err) {
		return ErrAlreadyRegistered
	}
	return err
}

// StudentCount returns how many students registered for the module.
func (r *Repository) StudentCount(ctx context.Context, moduleID string) (int, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM module_registrations WHERE module_id = ?`), moduleID).Scan(&n)
	return n, err
}
