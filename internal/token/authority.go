package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Token is the shared punch secret encoded into the scannable QR image.
// At most one token is current at a time.
type Token struct {
	Value    string    `json:"value"`
	IssuedAt time.Time `json:"issued_at"`
}

// Store persists issued tokens. Latest returns nil when none was ever issued.
type Store interface {
	Insert(ctx context.Context, t Token) error
	Latest(ctx context.Context) (*Token, error)
}

// Authority tracks the current punch secret. Rotation invalidates the prior
// value immediately; there is no grace period.
type Authority struct {
	store Store

	mu  sync.RWMutex
	cur *Token
}

// NewAuthority creates an authority backed by the given store.
func NewAuthority(store Store) *Authority {
	return &Authority{store: store}
}

// Current returns the current token, issuing the initial one if none exists.
func (a *Authority) Current(ctx context.Context) (Token, error) {
	a.mu.RLock()
	if a.cur != nil {
		t := *a.cur
		a.mu.RUnlock()
		return t, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cur != nil {
		return *a.cur, nil
	}

	latest, err := a.store.Latest(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("load current token: %w", err)
	}
	if latest == nil {
		return a.issueLocked(ctx)
	}
	a.cur = latest
	return *latest, nil
}

// Rotate generates a new current token and returns it. Every scan presenting
// the previous value fails validation from this instant forward.
func (a *Authority) Rotate(ctx context.Context) (Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.issueLocked(ctx)
}

// Validate reports whether value matches a snapshot of the current token.
// Callers must validate against the returned snapshot once, not re-read
// mid-scan, so a concurrent rotation cannot split one scan's decision.
func (a *Authority) Validate(ctx context.Context, value string) (bool, error) {
	cur, err := a.Current(ctx)
	if err != nil {
		return false, err
	}
	return value != "" && value == cur.Value, nil
}

func (a *Authority) issueLocked(ctx context.Context) (Token, error) {
	t := Token{Value: uuid.NewString(), IssuedAt: time.Now().UTC()}
	if err := a.store.Insert(ctx, t); err != nil {
		return Token{}, fmt.Errorf("persist token: %w", err)
	}
	a.cur = &t
	return t, nil
}
