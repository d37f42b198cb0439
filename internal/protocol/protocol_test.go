package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ConversationID(t *testing.T) {
	t.Run("commutative for any pair", func(t *testing.T) {
		pairs := [][2]string{
			{"alice", "bob"},
			{"b", "a"},
			{"507f1f77bcf86cd799439011", "507f191e810c19729de860ea"},
		}
		for _, p := range pairs {
			ab, err := ConversationID(p[0], p[1])
			require.NoError(t, err)
			ba, err := ConversationID(p[1], p[0])
			require.NoError(t, err)
			assert.Equal(t, ab, ba)
		}
	})

	t.Run("rejects empty ids", func(t *testing.T) {
		_, err := ConversationID("", "bob")
		require.Error(t, err)
		_, err = ConversationID("alice", "")
		require.Error(t, err)
	})
}

func Test_DecodeClientEvent(t *testing.T) {
	t.Run("sendMessage round trip", func(t *testing.T) {
		raw, err := Encode(EventSendMessage, SendMessagePayload{
			ReceiverID: "bob",
			Content:    "hello",
			TempID:     "temp_1",
		})
		require.NoError(t, err)

		ev, err := DecodeClientEvent(raw)
		require.NoError(t, err)
		require.NotNil(t, ev.Send)
		assert.Equal(t, EventSendMessage, ev.Kind)
		assert.Equal(t, "bob", ev.Send.ReceiverID)
		assert.Equal(t, "temp_1", ev.Send.TempID)
	})

	t.Run("unknown kind is an error, not a drop", func(t *testing.T) {
		_, err := DecodeClientEvent([]byte(`{"event":"selfDestruct","data":{}}`))
		require.Error(t, err)
	})

	t.Run("server events are not client events", func(t *testing.T) {
		raw, err := Encode(EventMessageSent, MessageSentPayload{TempID: "t1", Timestamp: time.Now()})
		require.NoError(t, err)
		_, err = DecodeClientEvent(raw)
		require.Error(t, err)
	})

	t.Run("missing payload rejected", func(t *testing.T) {
		_, err := DecodeClientEvent([]byte(`{"event":"sendMessage"}`))
		require.Error(t, err)
	})
}

func Test_DecodeServerEvent(t *testing.T) {
	t.Run("newMessage carries integrity fields", func(t *testing.T) {
		raw, err := Encode(EventNewMessage, NewMessagePayload{
			MessageID:   "m1",
			SenderID:    "alice",
			Content:     "hi",
			MessageHash: "abc",
			Signature:   "sig",
		})
		require.NoError(t, err)

		ev, err := DecodeServerEvent(raw)
		require.NoError(t, err)
		require.NotNil(t, ev.New)
		assert.Equal(t, "abc", ev.New.MessageHash)
		assert.Equal(t, "sig", ev.New.Signature)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		_, err := DecodeServerEvent([]byte(`{"event":"mystery","data":{}}`))
		require.Error(t, err)
	})
}
