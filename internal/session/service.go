package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"classattend/internal/auth"
	"classattend/internal/codegen"
	"classattend/internal/store"
)

// codeAttempts bounds the session-code regeneration loop on a unique
// collision.
const codeAttempts = 3

// RosterDirectory answers the membership questions the lifecycle
// needs; roster.Repository satisfies it.
type RosterDirectory interface {
	IsOwner(ctx context.Context, moduleID, lecturerID string) (bool, error)
	IsRegistered(ctx context.Context, studentID, moduleID string) (bool, error)
}

// Service drives the session-code lifecycle: creation with
// supersession, lazy expiry, and exactly-once signing.
type Service struct {
	repo   *Repository
	roster RosterDirectory
	now    func() time.Time
}

// NewService creates a service backed by a repository and a roster
// directory for ownership and registration checks.
func NewService(repo *Repository, roster RosterDirectory) *Service {
	return &Service{repo: repo, roster: roster, now: func() time.Time { return time.Now().UTC() }}
}

// CreateSession mints a fresh code for the module, superseding any
// currently-active one. Only the owning lecturer may call it.
func (s *Service) CreateSession(ctx context.Context, moduleID, lecturerID string, durationMinutes int) (*SessionCode, error) {
	if durationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	owner, err := s.roster.IsOwner(ctx, moduleID, lecturerID)
	if err != nil {
		return nil, err
	}
	if !owner {
		return nil, ErrNotOwner
	}

	now := s.now()
	var lastErr error
	for i := 0; i < codeAttempts; i++ {
		sc := SessionCode{
			ID:        uuid.NewString(),
			ModuleID:  moduleID,
			Code:      codegen.SessionCode(),
			Active:    true,
			CreatedAt: now,
			ExpiresAt: now.Add(time.Duration(durationMinutes) * time.Minute),
		}
		err := s.repo.CreateActive(ctx, sc)
		if err == nil {
			return &sc, nil
		}
		if !store.IsUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// SignAttendance records a student's sign for the session matching
// code. Each precondition is a distinct failure; a second sign with
// the same inputs fails with ErrAlreadySigned rather than silently
// succeeding.
func (s *Service) SignAttendance(ctx context.Context, code, studentID string) (*AttendanceRecord, error) {
	if code == "" {
		return nil, ErrInvalidOrExpiredCode
	}
	sc, err := s.repo.GetUsableByCode(ctx, code, s.now())
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, ErrInvalidOrExpiredCode
	}

	registered, err := s.roster.IsRegistered(ctx, studentID, sc.ModuleID)
	if err != nil {
		return nil, err
	}
	if !registered {
		return nil, ErrNotRegistered
	}

	signed, err := s.repo.HasAttendance(ctx, studentID, sc.ID)
	if err != nil {
		return nil, err
	}
	if signed {
		return nil, ErrAlreadySigned
	}

	rec := AttendanceRecord{
		ID:            uuid.NewString(),
		StudentID:     studentID,
		SessionCodeID: sc.ID,
		// Derived from the resolved session, never from caller input.
		ModuleID: sc.ModuleID,
		SignedAt: s.now(),
	}
	if err := s.repo.InsertAttendance(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ActiveSession returns the module's usable session, or nil when the
// last one expired or was superseded.
func (s *Service) ActiveSession(ctx context.Context, moduleID string) (*SessionCode, error) {
	return s.repo.ActiveForModule(ctx, moduleID, s.now())
}

// ListSessions returns the sessions visible to the caller, scoped the
// same way modules are.
func (s *Service) ListSessions(ctx context.Context, userID, role string) ([]SessionCode, error) {
	if role == auth.RoleLecturer {
		return s.repo.ListByLecturer(ctx, userID)
	}
	return s.repo.ListByStudent(ctx, userID)
}
