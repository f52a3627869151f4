package account

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"classattend/internal/auth"
	"classattend/internal/roster"
	"classattend/internal/store"
)

type testEnv struct {
	svc        *Service
	rosterRepo *roster.Repository
	inviteCode string
	moduleID   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	rosterRepo := roster.NewRepository(db)
	// bcrypt cost 4 keeps the tests quick.
	svc := NewService(repo, rosterRepo, 4)

	ctx := context.Background()
	lecturerID := uuid.NewString()
	if err := repo.Insert(ctx, User{
		ID:           lecturerID,
		Role:         auth.RoleLecturer,
		Email:        "owner@uni.edu",
		PasswordHash: "x",
		FullName:     "Owner",
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed lecturer: %v", err)
	}

	moduleID := uuid.NewString()
	if err := rosterRepo.Insert(ctx, roster.Module{
		ID:         moduleID,
		Code:       "CS101",
		Name:       "Intro",
		InviteCode: "INV-AB12CD",
		LecturerID: lecturerID,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed module: %v", err)
	}

	return &testEnv{svc: svc, rosterRepo: rosterRepo, inviteCode: "INV-AB12CD", moduleID: moduleID}
}

func studentSignup(email, regNumber, invite string) StudentSignup {
	return StudentSignup{
		RegNumber:  regNumber,
		FullName:   "Student",
		Email:      email,
		Password:   "hunter22!",
		InviteCode: invite,
	}
}

func TestRegisterStudentCreatesRegistration(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.RegisterStudent(ctx, studentSignup("s@uni.edu", "R001", env.inviteCode))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != auth.RoleStudent || u.RegNumber == nil || *u.RegNumber != "R001" {
		t.Errorf("user = %+v", u)
	}
	if u.PasswordHash == "hunter22!" {
		t.Error("password stored in plaintext")
	}

	registered, err := env.rosterRepo.IsRegistered(ctx, u.ID, env.moduleID)
	if err != nil {
		t.Fatalf("registration check: %v", err)
	}
	if !registered {
		t.Error("registration for the invited module was not created")
	}
}

func TestRegisterStudentRejectsBadInvite(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.RegisterStudent(context.Background(), studentSignup("s@uni.edu", "R001", "INV-NOSUCH"))
	if !errors.Is(err, roster.ErrInvalidInviteCode) {
		t.Errorf("register with bad invite = %v, want ErrInvalidInviteCode", err)
	}
}

func TestRegisterStudentDuplicateEmailAndRegNumber(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.RegisterStudent(ctx, studentSignup("s@uni.edu", "R001", env.inviteCode)); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := env.svc.RegisterStudent(ctx, studentSignup("s@uni.edu", "R002", env.inviteCode)); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email = %v, want ErrEmailTaken", err)
	}
	if _, err := env.svc.RegisterStudent(ctx, studentSignup("s2@uni.edu", "R001", env.inviteCode)); !errors.Is(err, ErrRegNumberTaken) {
		t.Errorf("duplicate reg number = %v, want ErrRegNumberTaken", err)
	}
}

func TestRegisterLecturerAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u, err := env.svc.RegisterLecturer(ctx, LecturerSignup{
		FullName:  "Dr. Ada",
		Email:     "ada@uni.edu",
		Password:  "lovelace1",
		ClassYear: "2026",
	})
	if err != nil {
		t.Fatalf("register lecturer: %v", err)
	}
	if u.ClassYear == nil || *u.ClassYear != "2026" {
		t.Errorf("class year = %v", u.ClassYear)
	}

	got, err := env.svc.Login(ctx, "ada@uni.edu", "lovelace1", auth.RoleLecturer)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("login returned user %q, want %q", got.ID, u.ID)
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.RegisterLecturer(ctx, LecturerSignup{
		FullName: "Dr. Ada", Email: "ada@uni.edu", Password: "lovelace1", ClassYear: "2026",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := env.svc.Login(ctx, "ada@uni.edu", "wrong", auth.RoleLecturer); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password = %v, want ErrInvalidCredentials", err)
	}
	if _, err := env.svc.Login(ctx, "nobody@uni.edu", "lovelace1", auth.RoleLecturer); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email = %v, want ErrInvalidCredentials", err)
	}
	// A lecturer account cannot log in through the student door.
	if _, err := env.svc.Login(ctx, "ada@uni.edu", "lovelace1", auth.RoleStudent); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("role mismatch = %v, want ErrInvalidCredentials", err)
	}
}
