package report

import (
	"context"
	"time"

	"classattend/internal/store"
)

// ModuleStats aggregates attendance over a whole module.
type ModuleStats struct {
	TotalStudents    int `json:"total_students"`
	TotalSessions    int `json:"total_sessions"`
	TotalAttendances int `json:"total_attendances"`
}

// StudentRow is one student's standing in a module report.
type StudentRow struct {
	ID              string  `json:"id"`
	RegNumber       *string `json:"reg_number"`
	FullName        string  `json:"full_name"`
	Email           string  `json:"email"`
	AttendanceCount int     `json:"attendance_count"`
	TotalSessions   int     `json:"total_sessions"`
}

// DateRow counts distinct signing students per session date.
type DateRow struct {
	Date         string `json:"date"`
	StudentCount int    `json:"student_count"`
}

// StudentStats is one student's attended-vs-held ratio for a module.
type StudentStats struct {
	Attended      int `json:"attended"`
	TotalSessions int `json:"total_sessions"`
}

// SignEvent is a single recorded sign, for the student's own view.
type SignEvent struct {
	SessionCode      string    `json:"session_code"`
	SignedAt         time.Time `json:"signed_at"`
	SessionCreatedAt time.Time `json:"session_created_at"`
}

// Repository runs the read-only report queries. It owns no invariants
// beyond correct joins; access control happens a layer up.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// ModuleStats aggregates the module's attendance rows.
func (r *Repository) ModuleStats(ctx context.Context, moduleID string) (ModuleStats, error) {
	var st ModuleStats
	err := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(`
		SELECT
			COUNT(DISTINCT student_id),
			COUNT(DISTINCT session_code_id),
			COUNT(*)
		FROM attendance
		WHERE module_id = ?
	`), moduleID).Scan(&st.TotalStudents, &st.TotalSessions, &st.TotalAttendances)
	return st, err
}

// StudentBreakdown lists every registered student with their
// attendance count against the module's total session count.
func (r *Repository) StudentBreakdown(ctx context.Context, moduleID string) ([]StudentRow, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(`
		SELECT
			u.id, u.reg_number, u.full_name, u.email,
			COUNT(a.id) AS attendance_count,
			(SELECT COUNT(*) FROM session_codes WHERE module_id = ?) AS total_sessions
		FROM users u
		JOIN module_registrations mr ON u.id = mr.student_id
		LEFT JOIN attendance a ON u.id = a.student_id AND a.module_id = ?
		WHERE mr.module_id = ?
		GROUP BY u.id, u.reg_number, u.full_name, u.email
		ORDER BY attendance_count DESC, u.full_name
	`), moduleID, moduleID, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []StudentRow
	for rows.Next() {
		var row StudentRow
		if err := rows.Scan(&row.ID, &row.RegNumber, &row.FullName, &row.Email, &row.AttendanceCount, &row.TotalSessions); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// AttendanceByDate groups distinct signing students on the date each
// session code was created.
func (r *Repository) AttendanceByDate(ctx context.Context, moduleID string) ([]DateRow, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(`
		SELECT
			CAST(DATE(sc.created_at) AS TEXT) AS day,
			COUNT(DISTINCT a.student_id)
		FROM session_codes sc
		LEFT JOIN attendance a ON sc.id = a.session_code_id
		WHERE sc.module_id = ?
		GROUP BY day
		ORDER BY day DESC
	`), moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []DateRow
	for rows.Next() {
		var row DateRow
		if err := rows.Scan(&row.Date, &row.StudentCount); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// StudentStats counts one student's signs against the module's
// session total.
func (r *Repository) StudentStats(ctx context.Context, studentID, moduleID string) (StudentStats, error) {
	var st StudentStats
	err := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(`
		SELECT
			COUNT(*),
			(SELECT COUNT(*) FROM session_codes WHERE module_id = ?)
		FROM attendance
		WHERE student_id = ? AND module_id = ?
	`), moduleID, studentID, moduleID).Scan(&st.Attended, &st.TotalSessions)
	return st, err
}

// SignEvents lists the student's individual signs, most recent first.
func (r *Repository) SignEvents(ctx context.Context, studentID, moduleID string) ([]SignEvent, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(`
		SELECT sc.code, a.signed_at, sc.created_at
		FROM attendance a
		JOIN session_codes sc ON a.session_code_id = sc.id
		WHERE a.student_id = ? AND a.module_id = ?
		ORDER BY a.signed_at DESC
	`), studentID, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []SignEvent
	for rows.Next() {
		var ev SignEvent
		if err := rows.Scan(&ev.SessionCode, &ev.SignedAt, &ev.SessionCreatedAt); err != nil {
			return nil, err
		}
		res = append(res, ev)
	}
	return res, rows.Err()
}
