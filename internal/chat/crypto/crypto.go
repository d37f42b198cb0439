// Package crypto holds the integrity and at-rest primitives of the message
// pipeline: per-session symmetric keys (nacl/secretbox), sha256 content
// hashes, and Ed25519 signatures produced with server-custodied keys.
//
// The signature scheme is integrity-only. The server stores both key halves
// and signs on the sender's behalf, so a compromised server can forge
// signatures; this mirrors the deployed wire protocol and is not a zero-trust
// design.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const SessionKeySize = 32

// NewSessionKey returns a fresh symmetric key for one transport session.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, SessionKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "crypto.NewSessionKey")
	}
	return key, nil
}

// Seal encrypts content with the session key. Output is
// base64(nonce || box).
func Seal(content string, sessionKey []byte) (string, error) {
	if len(sessionKey) != SessionKeySize {
		return "", errors.Errorf("session key must be %d bytes", SessionKeySize)
	}

	var key [SessionKeySize]byte
	copy(key[:], sessionKey)

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", errors.Wrap(err, "crypto.Seal.nonce")
	}

	box := secretbox.Seal(nonce[:], []byte(content), &nonce, &key)
	return base64.StdEncoding.EncodeToString(box), nil
}

// Open reverses Seal.
func Open(sealed string, sessionKey []byte) (string, error) {
	if len(sessionKey) != SessionKeySize {
		return "", errors.Errorf("session key must be %d bytes", SessionKeySize)
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.Wrap(err, "crypto.Open.base64")
	}
	if len(raw) < 24 {
		return "", errors.New("sealed content too short")
	}

	var key [SessionKeySize]byte
	copy(key[:], sessionKey)
	var nonce [24]byte
	copy(nonce[:], raw[:24])

	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &key)
	if !ok {
		return "", errors.New("sealed content did not authenticate")
	}
	return string(plain), nil
}

// HashContent returns the hex sha256 of the message content. Receivers
// recompute this and compare it to the transmitted hash.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// GenerateIdentityKeys returns a base64 Ed25519 key pair for a new user.
func GenerateIdentityKeys() (publicKey, privateKey string, err error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return "", "", errors.Wrap(err, "crypto.GenerateIdentityKeys")
	}
	return base64.StdEncoding.EncodeToString(pub),
		base64.StdEncoding.EncodeToString(priv), nil
}

// Sign produces a base64 signature over content with the user's custodied
// private key.
func Sign(content, privateKeyB64 string) (string, error) {
	priv, err := base64.StdEncoding.DecodeString(privateKeyB64)
	if err != nil {
		return "", errors.Wrap(err, "crypto.Sign.decodeKey")
	}
	if len(priv) != ed25519.PrivateKeySize {
		return "", errors.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}
	sig := ed25519.Sign(ed25519.PrivateKey(priv), []byte(content))
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a Sign output against the matching public key.
func Verify(content, signatureB64, publicKeyB64 string) bool {
	pub, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(content), sig)
}
