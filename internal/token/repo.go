package token

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// Repository persists punch tokens in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a newly issued token.
func (r *Repository) Insert(ctx context.Context, t Token) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO punch_tokens (value, issued_at)
		VALUES ($1, $2)
	`, t.Value, t.IssuedAt)
	return err
}

// Latest returns the most recently issued token, or nil when none exists.
func (r *Repository) Latest(ctx context.Context) (*Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT value, issued_at
		FROM punch_tokens
		ORDER BY issued_at DESC
		LIMIT 1
	`)
	var t Token
	if err := row.Scan(&t.Value, &t.IssuedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// MemoryStore is a store for dev and tests.
type MemoryStore struct {
	mu     sync.Mutex
	tokens []Token
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends a token.
func (m *MemoryStore) Insert(_ context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, t)
	return nil
}

// Latest returns the last inserted token.
func (m *MemoryStore) Latest(_ context.Context) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tokens) == 0 {
		return nil, nil
	}
	t := m.tokens[len(m.tokens)-1]
	return &t, nil
}
