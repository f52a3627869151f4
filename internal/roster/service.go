package roster

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"classattend/internal/auth"
	"classattend/internal/codegen"
	"classattend/internal/store"
)

// inviteAttempts bounds the invite-code regeneration loop; with a
// 36^6 space more than one collision in a row means something is off.
const inviteAttempts = 3

// Service owns module records, invite codes and registrations.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// CreateModule registers a new module for a lecturer and mints its
// invite code.
func (s *Service) CreateModule(ctx context.Context, code, name, lecturerID string) (*Module, error) {
	if code == "" || name == "" {
		return nil, errors.New("module code and name are required")
	}

	existing, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateCode
	}

	var lastErr error
	for i := 0; i < inviteAttempts; i++ {
		m := Module{
			ID:         uuid.NewString(),
			Code:       code,
			Name:       name,
			InviteCode: codegen.InviteCode(),
			LecturerID: lecturerID,
			CreatedAt:  time.Now().UTC(),
		}
		err := s.repo.Insert(ctx, m)
		if err == nil {
			return &m, nil
		}
		if !store.IsUniqueViolation(err) {
			return nil, err
		}
		// A unique violation is either a concurrent insert of the
		// same module code or an invite-code collision; re-checking
		// the code tells them apart.
		if dup, checkErr := s.repo.GetByCode(ctx, code); checkErr == nil && dup != nil {
			return nil, ErrDuplicateCode
		}
		lastErr = err
	}
	return nil, lastErr
}

// JoinModule redeems an invite code for a student.
func (s *Service) JoinModule(ctx context.Context, inviteCode, studentID string) (*Module, error) {
	if inviteCode == "" {
		return nil, errors.New("invite code is required")
	}
	m, err := s.repo.GetByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrInvalidInviteCode
	}
	if err := s.repo.InsertRegistration(ctx, studentID, m.ID); err != nil {
		return nil, err
	}
	return m, nil
}

// ListModules returns the modules visible to the caller: owned ones
// for lecturers, registered ones for students.
func (s *Service) ListModules(ctx context.Context, userID, role string) ([]Module, error) {
	if role == auth.RoleLecturer {
		return s.repo.ListByLecturer(ctx, userID)
	}
	return s.repo.ListByStudent(ctx, userID)
}

// GetModule returns a module the caller may read. Missing modules and
// inaccessible ones are indistinguishable to the caller.
func (s *Service) GetModule(ctx context.Context, moduleID, userID, role string) (*Module, error) {
	m, err := s.repo.GetByID(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrModuleNotFound
	}
	ok, err := s.AccessCheck(ctx, moduleID, userID, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrModuleNotFound
	}
	return m, nil
}

// ResolveForUser looks a module up by its code and enforces the
// role-specific access rule, for the report endpoints.
func (s *Service) ResolveForUser(ctx context.Context, moduleCode, userID, role string) (*Module, error) {
	m, err := s.repo.GetByCode(ctx, moduleCode)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrModuleNotFound
	}
	ok, err := s.AccessCheck(ctx, m.ID, userID, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		if role == auth.RoleLecturer {
			return nil, ErrNotOwner
		}
		return nil, ErrNotRegistered
	}
	return m, nil
}

// AccessCheck gates module-scoped reads: lecturers must own the
// module, students must be registered.
func (s *Service) AccessCheck(ctx context.Context, moduleID, userID, role string) (bool, error) {
	if role == auth.RoleLecturer {
		return s.repo.IsOwner(ctx, moduleID, userID)
	}
	return s.repo.IsRegistered(ctx, userID, moduleID)
}

// StudentCount reports the registration count for a module.
func (s *Service) StudentCount(ctx context.Context, moduleID string) (int, error) {
	return s.repo.StudentCount(ctx, moduleID)
}
