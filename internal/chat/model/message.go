package model

import (
	"time"

	user "github.com/IsaacEduardo/chat-umn/internal/user/model"
	"github.com/google/uuid"
)

type Message struct {
	ID uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()"`

	SenderID uuid.UUID  `bun:",notnull,type:uuid"`
	Sender   *user.User `bun:"rel:belongs-to,join:sender_id=id"`

	ReceiverID uuid.UUID  `bun:",notnull,type:uuid"`
	Receiver   *user.User `bun:"rel:belongs-to,join:receiver_id=id"`

	// Content is kept alongside EncryptedContent so integrity fields can be
	// recomputed; EncryptedContent is sealed with the sender's session key.
	Content          string `bun:",notnull"`
	EncryptedContent string `bun:",notnull"`
	MessageHash      string `bun:",notnull"`
	Signature        string `bun:",notnull"`

	// Only these two flags mutate after insert.
	IsDelivered bool `bun:",default:false"`
	IsRead      bool `bun:",default:false"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
