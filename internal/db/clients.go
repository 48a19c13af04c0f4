package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"barberbot/internal/model"
)

// DefaultState is the conversation state of a client that never talked to the bot.
const DefaultState = "START"

// EnsureClient returns the id for key, creating the record on first contact.
func (db *DB) EnsureClient(ctx context.Context, key string) (int64, error) {
	now := utc(db.now())
	_, err := db.ExecContext(ctx, `
		INSERT INTO clients (client_key, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(client_key) DO NOTHING`, key, now, now)
	if err != nil {
		return 0, fmt.Errorf("ensure client: %w", err)
	}

	var id int64
	if err := db.QueryRowContext(ctx, `SELECT id FROM clients WHERE client_key = ?`, key).Scan(&id); err != nil {
		return 0, fmt.Errorf("ensure client: %w", err)
	}
	return id, nil
}

func (db *DB) FindClientByKey(ctx context.Context, key string) (model.Client, error) {
	return db.scanClient(db.QueryRowContext(ctx, `
		SELECT id, client_key, name, conversation_state, conversation_ctx_json, created_at, updated_at
		FROM clients WHERE client_key = ?`, key))
}

func (db *DB) FindClientByID(ctx context.Context, id int64) (model.Client, error) {
	return db.scanClient(db.QueryRowContext(ctx, `
		SELECT id, client_key, name, conversation_state, conversation_ctx_json, created_at, updated_at
		FROM clients WHERE id = ?`, id))
}

func (db *DB) scanClient(row *sql.Row) (model.Client, error) {
	var (
		c       model.Client
		ctxJSON string
	)
	err := row.Scan(&c.ID, &c.Key, &c.Name, &c.State, &ctxJSON, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Client{}, model.ErrNotFound
	}
	if err != nil {
		return model.Client{}, err
	}
	c.Context = []byte(ctxJSON)
	c.CreatedAt = db.local(c.CreatedAt)
	c.UpdatedAt = db.local(c.UpdatedAt)
	return c, nil
}

// GetStateAndContext returns the stored conversation, defaulting to the start state
// and an empty context for unknown keys.
func (db *DB) GetStateAndContext(ctx context.Context, key string) (string, []byte, error) {
	var state, ctxJSON string
	err := db.QueryRowContext(ctx, `
		SELECT conversation_state, conversation_ctx_json FROM clients WHERE client_key = ?`, key,
	).Scan(&state, &ctxJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultState, []byte("{}"), nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("get conversation: %w", err)
	}
	return state, []byte(ctxJSON), nil
}

// SetStateAndContext stores the conversation after a turn.
func (db *DB) SetStateAndContext(ctx context.Context, key, state string, ctxJSON []byte) error {
	if len(ctxJSON) == 0 {
		ctxJSON = []byte("{}")
	}
	now := utc(db.now())
	_, err := db.ExecContext(ctx, `
		INSERT INTO clients (client_key, conversation_state, conversation_ctx_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(client_key) DO UPDATE SET
			conversation_state = excluded.conversation_state,
			conversation_ctx_json = excluded.conversation_ctx_json,
			updated_at = excluded.updated_at`,
		key, state, string(ctxJSON), now, now)
	if err != nil {
		return fmt.Errorf("set conversation: %w", err)
	}
	return nil
}
