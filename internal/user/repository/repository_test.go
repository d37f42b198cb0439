package repository

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"testing"

	models "github.com/IsaacEduardo/chat-umn/internal/user/model"
	"github.com/IsaacEduardo/chat-umn/pkg/logger"
)

var testDB *bun.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("chat"),
		postgres.WithUsername("chat"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		return
	}

	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable", "application_name=test")
	if err != nil {
		log.Printf("failed to get connections string, %v", err)
	}

	connector := pgdriver.NewConnector(pgdriver.WithDSN(connStr))
	sqlDB := sql.OpenDB(connector)
	testDB = bun.NewDB(sqlDB, pgdialect.New())

	if err := sqlDB.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping db: %v", err)
	}

	if _, err := testDB.NewCreateTable().Model((*models.User)(nil)).IfNotExists().Exec(ctx); err != nil {
		testDB.Close()
		log.Fatalf("failed to create users table: %v", err)
	}

	code := m.Run()

	testDB.Close()

	os.Exit(code)
}

func newUser(username string) *models.User {
	return &models.User{
		Username:   username,
		PublicKey:  "pub-" + username,
		PrivateKey: "priv-" + username,
	}
}

func Test_CreateUser(t *testing.T) {
	t.Cleanup(func() {
		_, err := testDB.ExecContext(context.Background(), `TRUNCATE TABLE users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
	})

	repo := NewUserRepository(testDB, logger.Logger{})
	user := newUser("isaac")
	err := repo.CreateUser(context.Background(), user)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
}

func Test_GetUserByID(t *testing.T) {
	t.Cleanup(func() {
		_, err := testDB.ExecContext(context.Background(), `TRUNCATE TABLE users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
	})

	repo := NewUserRepository(testDB, logger.Logger{})
	user := newUser("isaac")
	require.NoError(t, repo.CreateUser(context.Background(), user))

	fetched, err := repo.GetUserByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, fetched.Username)
	assert.Equal(t, user.PublicKey, fetched.PublicKey)
	assert.False(t, fetched.IsOnline)
}

func Test_GetUserByID_NotFound(t *testing.T) {
	repo := NewUserRepository(testDB, logger.Logger{})

	_, err := repo.GetUserByID(t.Context(), uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func Test_GetUserByUsername(t *testing.T) {
	t.Cleanup(func() {
		_, err := testDB.ExecContext(context.Background(), `TRUNCATE TABLE users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
	})

	repo := NewUserRepository(testDB, logger.Logger{})
	user := newUser("isaac")
	require.NoError(t, repo.CreateUser(context.Background(), user))

	fetched, err := repo.GetUserByUsername(t.Context(), "isaac")
	require.NoError(t, err)
	assert.Equal(t, user.ID, fetched.ID)

	_, err = repo.GetUserByUsername(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func Test_SetOnline(t *testing.T) {
	t.Cleanup(func() {
		_, err := testDB.ExecContext(context.Background(), `TRUNCATE TABLE users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
	})

	repo := NewUserRepository(testDB, logger.Logger{})
	user := newUser("isaac")
	require.NoError(t, repo.CreateUser(context.Background(), user))

	require.NoError(t, repo.SetOnline(t.Context(), user.ID, true))

	fetched, err := repo.GetUserByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsOnline)
	assert.False(t, fetched.LastSeen.IsZero(), "last_seen should be stamped")

	require.NoError(t, repo.SetOnline(t.Context(), user.ID, false))

	fetched, err = repo.GetUserByID(t.Context(), user.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsOnline)
}

func Test_SearchByUsername(t *testing.T) {
	t.Cleanup(func() {
		_, err := testDB.ExecContext(context.Background(), `TRUNCATE TABLE users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
	})

	repo := NewUserRepository(testDB, logger.Logger{})
	for _, name := range []string{"alice", "albert", "bob"} {
		require.NoError(t, repo.CreateUser(context.Background(), newUser(name)))
	}

	users, err := repo.SearchByUsername(t.Context(), "al", 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "albert", users[0].Username)
	assert.Equal(t, "alice", users[1].Username)

	users, err = repo.SearchByUsername(t.Context(), "al", 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
}
