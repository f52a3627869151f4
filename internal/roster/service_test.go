package roster_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"classattend/internal/account"
	"classattend/internal/auth"
	"classattend/internal/roster"
	"classattend/internal/store"
)

func newTestService(t *testing.T) (*roster.Service, *account.Repository) {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return roster.NewService(roster.NewRepository(db)), account.NewRepository(db)
}

func seedUser(t *testing.T, users *account.Repository, role, email string) string {
	t.Helper()
	id := uuid.NewString()
	if err := users.Insert(context.Background(), account.User{
		ID:           id,
		Role:         role,
		Email:        email,
		PasswordHash: "x",
		FullName:     "Test " + role,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return id
}

func TestCreateModuleMintsInviteCode(t *testing.T) {
	svc, users := newTestService(t)
	lecturer := seedUser(t, users, auth.RoleLecturer, "l@uni.edu")

	m, err := svc.CreateModule(context.Background(), "CS101", "Intro", lecturer)
	if err != nil {
		t.Fatalf("create module: %v", err)
	}
	if !strings.HasPrefix(m.InviteCode, "INV-") {
		t.Errorf("invite code %q missing INV- prefix", m.InviteCode)
	}
	if m.LecturerID != lecturer {
		t.Errorf("lecturer id = %q, want %q", m.LecturerID, lecturer)
	}
}

func TestCreateModuleRejectsDuplicateCode(t *testing.T) {
	svc, users := newTestService(t)
	lecturer := seedUser(t, users, auth.RoleLecturer, "l@uni.edu")
	ctx := context.Background()

	if _, err := svc.CreateModule(ctx, "CS101", "Intro", lecturer); err != nil {
		t.Fatalf("first create: %v", err)
	}
	// Same code fails regardless of a different name or owner.
	other := seedUser(t, users, auth.RoleLecturer, "o@uni.edu")
	if _, err := svc.CreateModule(ctx, "CS101", "Advanced", other); !errors.Is(err, roster.ErrDuplicateCode) {
		t.Errorf("duplicate code = %v, want roster.ErrDuplicateCode", err)
	}
}

func TestJoinModuleOnceOnly(t *testing.T) {
	svc, users := newTestService(t)
	lecturer := seedUser(t, users, auth.RoleLecturer, "l@uni.edu")
	student := seedUser(t, users, auth.RoleStudent, "s@uni.edu")
	ctx := context.Background()

	m, err := svc.CreateModule(ctx, "CS101", "Intro", lecturer)
	if err != nil {
		t.Fatalf("create module: %v", err)
	}

	joined, err := svc.JoinModule(ctx, m.InviteCode, student)
	if err != nil {
		t.Fatalf("first join: %v", err)
	}
	if joined.ID != m.ID {
		t.Errorf("joined module %q, want %q", joined.ID, m.ID)
	}

	if _, err := svc.JoinModule(ctx, m.InviteCode, student); !errors.Is(err, roster.ErrAlreadyRegistered) {
		t.Errorf("second join = %v, want roster.ErrAlreadyRegistered", err)
	}
}

func TestJoinModuleUnknownInvite(t *testing.T) {
	svc, users := newTestService(t)
	student := seedUser(t, users, auth.RoleStudent, "s@uni.edu")
	if _, err := svc.JoinModule(context.Background(), "INV-NOSUCH", student); !errors.Is(err, roster.ErrInvalidInviteCode) {
		t.Errorf("join with unknown invite = %v, want roster.ErrInvalidInviteCode", err)
	}
}

func TestListModulesIsRoleScoped(t *testing.T) {
	svc, users := newTestService(t)
	lecturer := seedUser(t, users, auth.RoleLecturer, "l@uni.edu")
	student := seedUser(t, users, auth.RoleStudent, "s@uni.edu")
	ctx := context.Background()

	m1, _ := svc.CreateModule(ctx, "CS101", "Intro", lecturer)
	if _, err := svc.CreateModule(ctx, "CS201", "Data Structures", lecturer); err != nil {
		t.Fatalf("create second module: %v", err)
	}
	if _, err := svc.JoinModule(ctx, m1.InviteCode, student); err != nil {
		t.Fatalf("join: %v", err)
	}

	owned, err := svc.ListModules(ctx, lecturer, auth.RoleLecturer)
	if err != nil {
		t.Fatalf("lecturer list: %v", err)
	}
	if len(owned) != 2 {
		t.Errorf("lecturer sees %d modules, want 2", len(owned))
	}

	joined, err := svc.ListModules(ctx, student, auth.RoleStudent)
	if err != nil {
		t.Fatalf("student list: %v", err)
	}
	if len(joined) != 1 || joined[0].ID != m1.ID {
		t.Errorf("student sees %+v, want only %q", joined, m1.ID)
	}
}

func TestGetModuleMasksInaccessible(t *testing.T) {
	svc, users := newTestService(t)
	lecturer := seedUser(t, users, auth.RoleLecturer, "l@uni.edu")
	stranger := seedUser(t, users, auth.RoleStudent, "x@uni.edu")
	ctx := context.Background()

	m, err := svc.CreateModule(ctx, "CS101", "Intro", lecturer)
	if err != nil {
		t.Fatalf("create module: %v", err)
	}

	if _, err := svc.GetModule(ctx, m.ID, lecturer, auth.RoleLecturer); err != nil {
		t.Errorf("owner read: %v", err)
	}
	// An unregistered student gets the same error as for a module
	// that does not exist.
	if _, err := svc.GetModule(ctx, m.ID, stranger, auth.RoleStudent); !errors.Is(err, roster.ErrModuleNotFound) {
		t.Errorf("stranger read = %v, want roster.ErrModuleNotFound", err)
	}
	if _, err := svc.GetModule(ctx, uuid.NewString(), lecturer, auth.RoleLecturer); !errors.Is(err, roster.ErrModuleNotFound) {
		t.Errorf("missing module = %v, want roster.ErrModuleNotFound", err)
	}
}

func TestResolveForUserAccessErrors(t *testing.T) {
	svc, users := newTestService(t)
	owner := seedUser(t, users, auth.RoleLecturer, "l@uni.edu")
	rival := seedUser(t, users, auth.RoleLecturer, "r@uni.edu")
	outsider := seedUser(t, users, auth.RoleStudent, "s@uni.edu")
	ctx := context.Background()

	if _, err := svc.CreateModule(ctx, "CS101", "Intro", owner); err != nil {
		t.Fatalf("create module: %v", err)
	}

	if _, err := svc.ResolveForUser(ctx, "CS101", owner, auth.RoleLecturer); err != nil {
		t.Errorf("owner resolve: %v", err)
	}
	if _, err := svc.ResolveForUser(ctx, "CS101", rival, auth.RoleLecturer); !errors.Is(err, roster.ErrNotOwner) {
		t.Errorf("rival resolve = %v, want roster.ErrNotOwner", err)
	}
	if _, err := svc.ResolveForUser(ctx, "CS101", outsider, auth.RoleStudent); !errors.Is(err, roster.ErrNotRegistered) {
		t.Errorf("outsider resolve = %v, want roster.ErrNotRegistered", err)
	}
	if _, err := svc.ResolveForUser(ctx, "NOPE", owner, auth.RoleLecturer); !errors.Is(err, roster.ErrModuleNotFound) {
		t.Errorf("unknown code = %v, want roster.ErrModuleNotFound", err)
	}
}
