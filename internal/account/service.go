package account

import (
	"context"
	"time"

	"github.com/google/uuid"

	"classattend/internal/auth"
	"classattend/internal/roster"
	"classattend/internal/store"
)

// ModuleDirectory resolves invite codes during student registration;
// roster.Repository satisfies it.
type ModuleDirectory interface {
	GetByInviteCode(ctx context.Context, inviteCode string) (*roster.Module, error)
}

// Service handles registration and login for both roles.
type Service struct {
	repo       *Repository
	modules    ModuleDirectory
	bcryptCost int
}

// NewService creates a service backed by a user repository and a
// module directory for invite redemption.
func NewService(repo *Repository, modules ModuleDirectory, bcryptCost int) *Service {
	return &Service{repo: repo, modules: modules, bcryptCost: bcryptCost}
}

// StudentSignup is the input for RegisterStudent.
type StudentSignup struct {
	RegNumber  string
	FullName   string
	Email      string
	Password   string
	InviteCode string
}

// RegisterStudent creates a student account and their registration
// for the invited module, atomically.
func (s *Service) RegisterStudent(ctx context.Context, in StudentSignup) (*User, error) {
	if taken, err := s.repo.EmailExists(ctx, in.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}
	if taken, err := s.repo.RegNumberExists(ctx, in.RegNumber); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrRegNumberTaken
	}

	m, err := s.modules.GetByInviteCode(ctx, in.InviteCode)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, roster.ErrInvalidInviteCode
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	regNumber := in.RegNumber
	u := User{
		ID:           uuid.NewString(),
		Role:         auth.RoleStudent,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		RegNumber:    &regNumber,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.InsertStudentWithRegistration(ctx, u, m.ID); err != nil {
		// The prechecks above can lose a race; the unique columns
		// catch it.
		if store.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &u, nil
}

// LecturerSignup is the input for RegisterLecturer.
type LecturerSignup struct {
	FullName  string
	Email     string
	Password  string
	ClassYear string
}

// RegisterLecturer creates a lecturer account.
func (s *Service) RegisterLecturer(ctx context.Context, in LecturerSignup) (*User, error) {
	if taken, err := s.repo.EmailExists(ctx, in.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	classYear := in.ClassYear
	u := User{
		ID:           uuid.NewString(),
		Role:         auth.RoleLecturer,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		ClassYear:    &classYear,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return &u, nil
}

// Login verifies credentials for the given role. Unknown email and
// wrong password return the same error.
func (s *Service) Login(ctx context.Context, email, password, role string) (*User, error) {
	u, err := s.repo.GetByEmailAndRole(ctx, email, role)
	if err != nil {
		return nil, err
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
