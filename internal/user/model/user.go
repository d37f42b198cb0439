package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()"`

	// Username = unique @handle (used for login and addressing)
	Username string `bun:",unique,notnull"`

	// Ed25519 signing material, base64. The server holds both halves and
	// signs outgoing messages on the sender's behalf — integrity only, the
	// server is trusted with the private key.
	PublicKey  string `bun:",notnull"`
	PrivateKey string `bun:",notnull"`

	IsOnline bool      `bun:",default:false"`
	LastSeen time.Time `bun:",nullzero"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
