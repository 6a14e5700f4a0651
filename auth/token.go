package auth

import (
	"fmt"
	"time"

	"github.com/hako/branca"
	"github.com/mesahub/mesa/errs"
)

// Codec issues and verifies stateless bearer tokens
// carrying the authenticated user ID.
type Codec struct {
	codec    *branca.Branca
	lifespan time.Duration
}

func NewCodec(key string, lifespan time.Duration) (*Codec, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("branca key must be exactly 32 bytes long, got %d", len(key))
	}

	b := branca.NewBranca(key)
	b.SetTTL(uint32(lifespan.Seconds()))

	return &Codec{codec: b, lifespan: lifespan}, nil
}

func (c *Codec) IssueToken(userID string) (string, time.Time, error) {
	token, err := c.codec.EncodeToString(userID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("branca encode token: %w", err)
	}

	return token, time.Now().Add(c.lifespan), nil
}

func (c *Codec) VerifyToken(token string) (string, error) {
	userID, err := c.codec.DecodeToString(token)
	if err != nil {
		return "", errs.NewUnauthenticatedError("invalid or expired token")
	}

	return userID, nil
}
