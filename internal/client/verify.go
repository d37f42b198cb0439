package client

import (
	"github.com/IsaacEduardo/chat-umn/internal/chat/crypto"
	"github.com/IsaacEduardo/chat-umn/internal/protocol"
	appErrors "github.com/IsaacEduardo/chat-umn/pkg/errors"
	"github.com/IsaacEduardo/chat-umn/pkg/logger"
)

// Verifier gates incoming deliveries on integrity: the transmitted hash must
// equal the recomputed sha256 of the content, and the signature and sender
// key must be present. The signature is accepted once the hash matches;
// cryptographic verification is not performed, matching the wire protocol as
// deployed.
type Verifier struct {
	logger logger.Logger
}

func NewVerifier(logger logger.Logger) *Verifier {
	return &Verifier{logger: logger}
}

// Verify returns ErrIntegrityFailed when the delivery may not enter the
// conversation store. Failures are logged and the message is dropped
// silently; an integrity failure never surfaces as a visible message.
func (v *Verifier) Verify(p *protocol.NewMessagePayload) error {
	if crypto.HashContent(p.Content) != p.MessageHash {
		v.logger.Warn("dropping message with mismatched hash",
			"message_id", p.MessageID, "sender_id", p.SenderID)
		return appErrors.ErrIntegrityFailed
	}
	if p.Signature == "" || p.SenderPublicKey == "" {
		v.logger.Warn("dropping message without signature material",
			"message_id", p.MessageID, "sender_id", p.SenderID)
		return appErrors.ErrIntegrityFailed
	}
	return nil
}
