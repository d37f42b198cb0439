package repository

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"testing"

	"github.com/IsaacEduardo/chat-umn/internal/chat/model"
	userModel "github.com/IsaacEduardo/chat-umn/internal/user/model"
	userRepo "github.com/IsaacEduardo/chat-umn/internal/user/repository"
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

	tables := []any{
		(*userModel.User)(nil),
		(*model.Message)(nil),
	}
	for _, t := range tables {
		if _, err := testDB.NewCreateTable().Model(t).IfNotExists().Exec(ctx); err != nil {
			testDB.Close()
			log.Fatalf("failed to create table for %T: %v", t, err)
		}
	}

	code := m.Run()

	testDB.Close()

	os.Exit(code)
}

func cleanup(t *testing.T) {
	t.Cleanup(func() {
		_, err := testDB.ExecContext(context.Background(), `TRUNCATE TABLE messages RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		_, err = testDB.ExecContext(context.Background(), `TRUNCATE TABLE users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
	})
}

func makeUsers(t *testing.T) (uuid.UUID, uuid.UUID) {
	repo := userRepo.NewUserRepository(testDB, logger.Logger{})

	sender := &userModel.User{Username: "alice", PublicKey: "pk-a", PrivateKey: "sk-a"}
	receiver := &userModel.User{Username: "bob", PublicKey: "pk-b", PrivateKey: "sk-b"}
	require.NoError(t, repo.CreateUser(context.Background(), sender))
	require.NoError(t, repo.CreateUser(context.Background(), receiver))

	return sender.ID, receiver.ID
}

func makeMessage(sender, receiver uuid.UUID, content string) *model.Message {
	return &model.Message{
		SenderID:         sender,
		ReceiverID:       receiver,
		Content:          content,
		EncryptedContent: "enc:" + content,
		MessageHash:      "hash:" + content,
		Signature:        "sig:" + content,
	}
}

func Test_CreateMessage(t *testing.T) {
	cleanup(t)
	senderID, receiverID := makeUsers(t)
	repo := NewMessageRepository(testDB, logger.Logger{})

	msg := makeMessage(senderID, receiverID, "hello")
	err := repo.CreateMessage(t.Context(), msg)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero(), "created_at should be set by DB")
	assert.False(t, msg.IsDelivered)
	assert.False(t, msg.IsRead)
}

func Test_MarkDelivered(t *testing.T) {
	cleanup(t)
	senderID, receiverID := makeUsers(t)
	repo := NewMessageRepository(testDB, logger.Logger{})

	m1 := makeMessage(senderID, receiverID, "one")
	m2 := makeMessage(senderID, receiverID, "two")
	m3 := makeMessage(receiverID, senderID, "reply")
	for _, m := range []*model.Message{m1, m2, m3} {
		require.NoError(t, repo.CreateMessage(t.Context(), m))
	}

	// Flag only m1; receiver filter keeps m3 (addressed to the sender) out
	// even if its id were included.
	err := repo.MarkDelivered(t.Context(), receiverID, []uuid.UUID{m1.ID, m3.ID})
	require.NoError(t, err)

	msgs, err := repo.ListConversation(t.Context(), senderID, receiverID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	byID := map[uuid.UUID]*model.Message{}
	for _, m := range msgs {
		byID[m.ID] = m
	}
	assert.True(t, byID[m1.ID].IsDelivered)
	assert.False(t, byID[m2.ID].IsDelivered)
	assert.False(t, byID[m3.ID].IsDelivered)

	// Empty id list is a no-op, not an error.
	assert.NoError(t, repo.MarkDelivered(t.Context(), receiverID, nil))
}

func Test_MarkRead(t *testing.T) {
	cleanup(t)
	senderID, receiverID := makeUsers(t)
	repo := NewMessageRepository(testDB, logger.Logger{})

	m1 := makeMessage(senderID, receiverID, "one")
	m2 := makeMessage(senderID, receiverID, "two")
	require.NoError(t, repo.CreateMessage(t.Context(), m1))
	require.NoError(t, repo.CreateMessage(t.Context(), m2))

	err := repo.MarkRead(t.Context(), receiverID, []uuid.UUID{m1.ID, m2.ID})
	require.NoError(t, err)

	msgs, err := repo.ListConversation(t.Context(), senderID, receiverID, 10, 0)
	require.NoError(t, err)
	for _, m := range msgs {
		assert.True(t, m.IsRead)
	}
}

func Test_ListConversation(t *testing.T) {
	cleanup(t)
	senderID, receiverID := makeUsers(t)
	repo := NewMessageRepository(testDB, logger.Logger{})

	uRepo := userRepo.NewUserRepository(testDB, logger.Logger{})
	other := &userModel.User{Username: "carol", PublicKey: "pk-c", PrivateKey: "sk-c"}
	require.NoError(t, uRepo.CreateUser(context.Background(), other))

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		require.NoError(t, repo.CreateMessage(t.Context(), makeMessage(senderID, receiverID, c)))
		time.Sleep(5 * time.Millisecond) // distinct created_at ordering
	}
	require.NoError(t, repo.CreateMessage(t.Context(), makeMessage(receiverID, senderID, "reply")))
	require.NoError(t, repo.CreateMessage(t.Context(), makeMessage(senderID, other.ID, "unrelated")))

	t.Run("both directions, other conversations excluded", func(t *testing.T) {
		msgs, err := repo.ListConversation(t.Context(), senderID, receiverID, 10, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 4)
		assert.Equal(t, "first", msgs[0].Content)
		assert.Equal(t, "reply", msgs[3].Content)
	})

	t.Run("symmetric in argument order", func(t *testing.T) {
		msgs, err := repo.ListConversation(t.Context(), receiverID, senderID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 4)
	})

	t.Run("limit and offset page through", func(t *testing.T) {
		msgs, err := repo.ListConversation(t.Context(), senderID, receiverID, 2, 1)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "second", msgs[0].Content)
		assert.Equal(t, "third", msgs[1].Content)
	})
}
