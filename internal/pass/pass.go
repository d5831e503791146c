// Package pass issues the QR entry pass for a confirmed registration and
// verifies scanned passes at the door.
package pass

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidPass = errors.New("invalid pass")

// Claims is what the QR code carries, sealed so it cannot be forged or edited.
type Claims struct {
	RegistrationID int64     `json:"registration_id"`
	EventID        int64     `json:"event_id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	IssuedAt       time.Time `json:"issued_at"`
}

type Generator struct {
	aead cipher.AEAD
	size int
}

func NewGenerator(secret string, size int) (*Generator, error) {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	block, err := aes.NewCipher(hashed[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	return &Generator{aead: aead, size: size}, nil
}

// Token seals the claims into a URL-safe string.
func (g *Generator) Token(c Claims) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, g.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := g.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// PNG renders the sealed claims as a QR code image.
func (g *Generator) PNG(c Claims) ([]byte, string, error) {
	token, err := g.Token(c)
	if err != nil {
		return nil, "", err
	}
	img, err := qrcode.Encode(token, qrcode.Medium, g.size)
	if err != nil {
		return nil, "", fmt.Errorf("encode qr: %w", err)
	}
	return img, token, nil
}

// Decode opens a scanned token. Any tampering yields ErrInvalidPass.
func (g *Generator) Decode(token string) (*Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidPass
	}
	n := g.aead.NonceSize()
	if len(raw) < n {
		return nil, ErrInvalidPass
	}
	data, err := g.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return nil, ErrInvalidPass
	}
	var c Claims
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, ErrInvalidPass
	}
	return &c, nil
}
