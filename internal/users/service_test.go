package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

var adminActor = auth.Principal{UserID: 900, Role: auth.RoleAdmin, Name: "Admin"}

func newTestService(t *testing.T) (*Service, *auth.Issuer) {
	t.Helper()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	return NewService(NewMemoryRepository(), issuer, logging.Discard(), WithHashCost(bcrypt.MinCost)), issuer
}

func TestRegisterAndLogin(t *testing.T) {
	svc, issuer := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, Credentials{FullName: " Ana Reyes ", Email: "Ana@Example.edu", Password: "correct horse", Role: "admin"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, u.Role, "self-registration is always a student")
	assert.Equal(t, "ana@example.edu", u.Email)
	assert.Equal(t, "Ana Reyes", u.FullName)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	sess, err := svc.Login(ctx, "ANA@example.edu", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "bearer", sess.Type)

	p, err := issuer.Verify(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, auth.RoleStudent, p.Role)
	assert.Equal(t, "ana@example.edu", p.Email)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, Credentials{FullName: "Ana", Email: "ana@example.edu", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ana@example.edu", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.edu", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Credentials{FullName: "Ana", Email: "ana@example.edu", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)
	_, err = svc.Register(ctx, Credentials{Email: "ana@example.edu", Password: "long enough"})
	assert.ErrorIs(t, err, ErrMissingFields)
	_, err = svc.Register(ctx, Credentials{FullName: "Ana", Email: "not-an-email", Password: "long enough"})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.Register(ctx, Credentials{FullName: "Ana", Email: "ana@example.edu", Password: "long enough"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, Credentials{FullName: "Ana 2", Email: "ANA@example.edu", Password: "long enough"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAdminAccountManagement(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	student := auth.Principal{UserID: 9, Role: auth.RoleStudent}

	_, err := svc.CreateUser(ctx, student, Credentials{FullName: "X", Email: "x@example.edu", Password: "long enough", Role: "nurse"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateUser(ctx, adminActor, Credentials{FullName: "X", Email: "x@example.edu", Password: "long enough", Role: "janitor"})
	assert.ErrorIs(t, err, auth.ErrUnknownRole)

	nurse, err := svc.CreateUser(ctx, adminActor, Credentials{FullName: "Nurse Joy", Email: "joy@example.edu", Password: "long enough", Role: "Nurse"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleNurse, nurse.Role)
	_, err = svc.CreateUser(ctx, adminActor, Credentials{FullName: "Dr. Santos", Email: "santos@example.edu", Password: "long enough", Role: "doctor"})
	require.NoError(t, err)

	staff, err := svc.List(ctx, adminActor, []auth.Role{auth.RoleNurse})
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "Nurse Joy", staff[0].FullName)

	all, err := svc.List(ctx, adminActor, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.List(ctx, student, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, svc.Delete(ctx, auth.Principal{UserID: nurse.ID, Role: auth.RoleAdmin}, nurse.ID), ErrSelfDelete)
	require.NoError(t, svc.Delete(ctx, adminActor, nurse.ID))
	assert.ErrorIs(t, svc.Delete(ctx, adminActor, nurse.ID), ErrNotFound)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "", "admin@example.edu", "bootstrap-pass"))
	require.NoError(t, svc.EnsureAdmin(ctx, "", "ADMIN@example.edu", "bootstrap-pass"))
	require.NoError(t, svc.EnsureAdmin(ctx, "", "", ""))

	all, err := svc.List(ctx, adminActor, []auth.Role{auth.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Clinic Admin", all[0].FullName)

	_, err = svc.Login(ctx, "admin@example.edu", "bootstrap-pass")
	assert.NoError(t, err)
}
