package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"classattend/internal/store"
)

// SessionCode is a timed attendance code for a module. It is usable
// only while active is set AND expires_at lies in the future; the
// flag alone is never authoritative.
type SessionCode struct {
	ID        string    `json:"id"`
	ModuleID  string    `json:"module_id"`
	Code      string    `json:"code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AttendanceRecord marks one student signing one session. module_id
// is denormalized for reporting and always derived from the session.
type AttendanceRecord struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	SessionCodeID string    `json:"session_code_id"`
	ModuleID      string    `json:"module_id"`
	SignedAt      time.Time `json:"signed_at"`
}

// Repository persists session codes and attendance rows.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// CreateActive supersedes the module's current active code and
// inserts the new one in a single transaction, keeping the
// one-active-per-module invariant under concurrent calls.
func (r *Repository) CreateActive(ctx context.Context, sc SessionCode) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.db.Rebind(
		`UPDATE session_codes SET active = ? WHERE module_id = ? AND active = ?`),
		false, sc.ModuleID, true); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO session_codes (id, module_id, code, active, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), sc.ID, sc.ModuleID, sc.Code, sc.Active, sc.CreatedAt, sc.ExpiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

const sessionColumns = `id, module_id, code, active, created_at, expires_at`

func scanSession(row *sql.Row) (*SessionCode, error) {
	var sc SessionCode
	if err := row.Scan(&sc.ID, &sc.ModuleID, &sc.Code, &sc.Active, &sc.CreatedAt, &sc.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sc, nil
}

// GetUsableByCode returns the session for code if it is active and
// unexpired at now, else nil.
func (r *Repository) GetUsableByCode(ctx context.Context, code string, now time.Time) (*SessionCode, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT `+sessionColumns+` FROM session_codes WHERE code = ? AND active = ? AND expires_at > ?`),
		code, true, now)
	return scanSession(row)
}

// ActiveForModule returns the module's usable session, if any.
func (r *Repository) ActiveForModule(ctx context.Context, moduleID string, now time.Time) (*SessionCode, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(`
		SELECT `+sessionColumns+` FROM session_codes
		WHERE module_id = ? AND active = ? AND expires_at > ?
		ORDER BY created_at DESC LIMIT 1
	`), moduleID, true, now)
	return scanSession(row)
}

// CountActiveForModule exists for invariant checks and the health of
// the supersede transaction; normal flow never needs more than
// ActiveForModule.
func (r *Repository) CountActiveForModule(ctx context.Context, moduleID string) (int, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM session_codes WHERE module_id = ? AND active = ?`), moduleID, true).Scan(&n)
	return n, err
}

// HasAttendance reports whether the student already signed the session.
func (r *Repository) HasAttendance(ctx context.Context, studentID, sessionCodeID string) (bool, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM attendance WHERE student_id = ? AND session_code_id = ?`),
		studentID, sessionCodeID).Scan(&n)
	return n > 0, err
}

// InsertAttendance records a sign event. The unique constraint on
// (student_id, session_code_id) converts a lost race into
// ErrAlreadySigned.
func (r *Repository) InsertAttendance(ctx context.Context, rec AttendanceRecord) error {
	_, err := r.db.SQL.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attendance (id, student_id, session_code_id, module_id, signed_at)
		VALUES (?, ?, ?, ?, ?)
	`), rec.ID, rec.StudentID, rec.SessionCodeID, rec.ModuleID, rec.SignedAt)
	if err != nil && store.IsUniqueViolation(err) {
		return ErrAlreadySigned
	}
	return err
}

// ListByLecturer returns sessions of modules the lecturer owns.
func (r *Repository) ListByLecturer(ctx context.Context, lecturerID string) ([]SessionCode, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(`
		SELECT s.id, s.module_id, s.code, s.active, s.created_at, s.expires_at
		FROM session_codes s
		JOIN modules m ON s.module_id = m.id
		WHERE m.lecturer_id = ?
		ORDER BY s.created_at DESC
	`), lecturerID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListByStudent returns sessions of modules the student registered for.
func (r *Repository) ListByStudent(ctx context.Context, studentID string) ([]SessionCode, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(`
		SELECT s.id, s.module_id, s.code, s.active, s.created_at, s.expires_at
		FROM session_codes s
		JOIN module_registrations mr ON s.module_id = mr.module_id
		WHERE mr.student_id = ?
		ORDER BY s.created_at DESC
	`), studentID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]SessionCode, error) {
	defer rows.Close()
	var res []SessionCode
	for rows.Next() {
		var sc SessionCode
		if err := rows.Scan(&sc.ID, &sc.ModuleID, &sc.Code, &sc.Active, &sc.CreatedAt, &sc.ExpiresAt); err != nil {
			return nil, err
		}
		res = append(res, sc)
	}
	return res, rows.Err()
}
