package report

import (
	"context"

	"classattend/internal/auth"
	"classattend/internal/roster"
)

// ModuleAccess resolves a module by code and enforces the caller's
// access to it; roster.Service satisfies it.
type ModuleAccess interface {
	ResolveForUser(ctx context.Context, moduleCode, userID, role string) (*roster.Module, error)
}

// ModuleReport is the lecturer-facing aggregation for one module.
type ModuleReport struct {
	Module           roster.Module `json:"module"`
	Statistics       ModuleStats   `json:"statistics"`
	Students         []StudentRow  `json:"students"`
	AttendanceByDate []DateRow     `json:"attendance_by_date"`
}

// StudentReport is a student's own view of one module.
type StudentReport struct {
	Module      roster.Module `json:"module"`
	Statistics  StudentStats  `json:"statistics"`
	Attendances []SignEvent   `json:"attendances"`
}

// Service composes the report queries behind the roster access check.
type Service struct {
	repo   *Repository
	roster ModuleAccess
}

// NewService creates a service.
func NewService(repo *Repository, roster ModuleAccess) *Service {
	return &Service{repo: repo, roster: roster}
}

// ModuleReport builds the lecturer report for a module they own.
func (s *Service) ModuleReport(ctx context.Context, moduleCode, lecturerID string) (*ModuleReport, error) {
	m, err := s.roster.ResolveForUser(ctx, moduleCode, lecturerID, auth.RoleLecturer)
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.ModuleStats(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	students, err := s.repo.StudentBreakdown(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	dates, err := s.repo.AttendanceByDate(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	return &ModuleReport{
		Module:           *m,
		Statistics:       stats,
		Students:         students,
		AttendanceByDate: dates,
	}, nil
}

// StudentReport builds a student's own attendance view for a module
// they are registered to.
func (s *Service) StudentReport(ctx context.Context, moduleCode, studentID string) (*StudentReport, error) {
	m, err := s.roster.ResolveForUser(ctx, moduleCode, studentID, auth.RoleStudent)
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.StudentStats(ctx, studentID, m.ID)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.SignEvents(ctx, studentID, m.ID)
	if err != nil {
		return nil, err
	}

	return &StudentReport{
		Module:      *m,
		Statistics:  stats,
		Attendances: events,
	}, nil
}
