// Package memory holds MFA challenges in process memory. Records are lost on
// restart, which only forces affected users to log in again.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
)

type Challenges struct {
	mu      sync.Mutex
	records map[string]domain.Challenge
}

var _ store.Challenges = (*Challenges)(nil)

func NewChallenges() *Challenges {
	return &Challenges{records: make(map[string]domain.Challenge)}
}

func (c *Challenges) CreateChallenge(_ context.Context, ch domain.Challenge) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.records[ch.TokenHash]; ok {
		return store.ErrAlreadyExists
	}
	c.records[ch.TokenHash] = ch.Clone()
	return nil
}

func (c *Challenges) ConsumeChallenge(_ context.Context, hash string, now time.Time) (domain.Challenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.records[hash]
	if !ok {
		return domain.Challenge{}, store.ErrNotFound
	}
	delete(c.records, hash)

	if ch.Expired(now) {
		return domain.Challenge{}, store.ErrNotFound
	}
	return ch, nil
}

func (c *Challenges) GetChallenge(_ context.Context, hash string, now time.Time) (domain.Challenge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.records[hash]
	if !ok || ch.Expired(now) {
		return domain.Challenge{}, store.ErrNotFound
	}
	return ch.Clone(), nil
}

func (c *Challenges) DeleteChallenge(_ context.Context, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.records, hash)
	return nil
}

func (c *Challenges) DeleteExpiredChallenges(_ context.Context, now time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for hash, ch := range c.records {
		if ch.Expired(now) {
			delete(c.records, hash)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (c *Challenges) Ping(context.Context) error { return nil }

// Len reports the number of records held, expired or not.
func (c *Challenges) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
