//go:build integration

package database_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/redmonkez12/lms-auth-api/internal/auth"
	"github.com/redmonkez12/lms-auth-api/internal/database"
	"github.com/redmonkez12/lms-auth-api/internal/user"
)

var sqlDB *sql.DB

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "lms",
				"POSTGRES_PASSWORD": "lms",
				"POSTGRES_DB":       "lms_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=lms password=lms dbname=lms_test sslmode=disable", host, port.Port())
	sqlDB, err = database.Open(ctx, dsn)
	if err != nil {
		panic(err)
	}
	if err := database.Migrate(ctx, sqlDB); err != nil {
		panic(err)
	}

	code := m.Run()
	_ = sqlDB.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func truncate(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = sqlDB.Exec("TRUNCATE users, pending_signups")
	})
}

func TestMigrationVersion(t *testing.T) {
	v, err := database.MigrationVersion(context.Background(), sqlDB)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestUserRepository_Lifecycle(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := user.NewRepository(database.NewBunDB(sqlDB))

	hash := "$2a$10$abcdefghijklmnopqrstuv"
	created, err := repo.Create(ctx, &user.User{Name: "Ana", Email: "ana@x.com", PasswordHash: &hash, Role: user.RoleStudent})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	_, err = repo.Create(ctx, &user.User{Name: "Ana 2", Email: "ana@x.com", PasswordHash: &hash, Role: user.RoleStudent})
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)

	_, err = repo.Create(ctx, &user.User{Name: "Ana 3", Email: "ANA@x.com", PasswordHash: &hash, Role: user.RoleStudent})
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)

	expires := time.Now().Add(5 * time.Minute)
	require.NoError(t, repo.SetResetOTP(ctx, created.ID, "0042", expires))

	got, err := repo.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	require.NotNil(t, got.ResetOTP)
	assert.Equal(t, "0042", *got.ResetOTP)
	assert.False(t, got.IsOTPVerified)

	require.NoError(t, repo.MarkOTPVerified(ctx, created.ID))
	got, err = repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ResetOTP)
	assert.True(t, got.IsOTPVerified)

	require.NoError(t, repo.UpdatePassword(ctx, created.ID, "$2a$10$newhashnewhashnewhash"))
	got, err = repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOTPVerified)
	assert.Equal(t, "$2a$10$newhashnewhashnewhash", *got.PasswordHash)
}

func TestUserRepository_ClearExpiredResetOTPs(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := user.NewRepository(database.NewBunDB(sqlDB))

	hash := "$2a$10$abcdefghijklmnopqrstuv"
	u, err := repo.Create(ctx, &user.User{Name: "Ana", Email: "ana@x.com", PasswordHash: &hash, Role: user.RoleStudent})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, repo.SetResetOTP(ctx, u.ID, "1234", now.Add(-time.Second)))

	n, err := repo.ClearExpiredResetOTPs(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPendingSignupRepository_Upsert(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := auth.NewRepository(database.NewBunDB(sqlDB))
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &auth.PendingSignup{
		Email: "bo@x.com", Name: "Bo", PasswordHash: "h1", Role: user.RoleStudent,
		OTP: "111111", OTPExpiresAt: now.Add(5 * time.Minute),
	}))
	require.NoError(t, repo.Create(ctx, &auth.PendingSignup{
		Email: "bo@x.com", Name: "Bo", PasswordHash: "h2", Role: user.RoleStudent,
		OTP: "222222", OTPExpiresAt: now.Add(5 * time.Minute),
	}))

	p, err := repo.GetByEmail(ctx, "bo@x.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", p.OTP)
	assert.Equal(t, "h2", p.PasswordHash)

	n, err := repo.DeleteExpired(ctx, now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetByEmail(ctx, "bo@x.com")
	assert.ErrorIs(t, err, auth.ErrPendingSignupNotFound)
}
