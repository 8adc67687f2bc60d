package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/communikein/keingate/gate"
)

// newSessionToken returns 128 bits of hex-encoded randomness, the state
// value round-tripped through the provider's OAuth redirect.
func newSessionToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateSession generates a fresh session token, persists the requester
// tuple and returns the token.
func CreateSession(ctx context.Context, dbx *sql.DB, requesterID, chatID int64, provider string) (string, error) {
	token, err := newSessionToken()
	if err != nil {
		return "", err
	}
	_, err = dbx.ExecContext(ctx,
		`INSERT INTO verification_sessions(session_token, telegram_user_id, telegram_chat_id, provider)
		 VALUES($1,$2,$3,$4)`, token, requesterID, chatID, provider)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// ResolveSession returns the requester tuple bound to token, or
// gate.ErrSessionNotFound for unknown/consumed tokens.
func ResolveSession(ctx context.Context, dbx *sql.DB, token string) (requesterID, chatID int64, provider string, err error) {
	row := dbx.QueryRowContext(ctx,
		`SELECT telegram_user_id, telegram_chat_id, provider
		 FROM verification_sessions WHERE session_token = $1`, token)
	err = row.Scan(&requesterID, &chatID, &provider)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, "", gate.ErrSessionNotFound
	}
	if err != nil {
		return 0, 0, "", fmt.Errorf("select session: %w", err)
	}
	return requesterID, chatID, provider, nil
}

// DeleteSession removes the session bound to token. Absence is not an error.
func DeleteSession(ctx context.Context, dbx *sql.DB, token string) error {
	if _, err := dbx.ExecContext(ctx,
		`DELETE FROM verification_sessions WHERE session_token = $1`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteSessionsFor removes every session opened by requesterID.
func DeleteSessionsFor(ctx context.Context, dbx *sql.DB, requesterID int64) error {
	if _, err := dbx.ExecContext(ctx,
		`DELETE FROM verification_sessions WHERE telegram_user_id = $1`, requesterID); err != nil {
		return fmt.Errorf("delete sessions for requester: %w", err)
	}
	return nil
}
