package db

import (
	"context"
	"database/sql"
	"fmt"
)

// StoreLink records a freshly minted invite link for its grantee. Exactly
// one of twitchUserID / patreonUserID should be non-empty; empty strings are
// stored as NULL so subscriber-id lookups never match them.
func StoreLink(ctx context.Context, dbx *sql.DB, inviteLink string, granteeID int64, twitchUserID, patreonUserID string) error {
	_, err := dbx.ExecContext(ctx,
		`INSERT INTO invite_links(invite_link, telegram_user_id, twitch_user_id, patreon_user_id)
		 VALUES($1,$2,NULLIF($3,''),NULLIF($4,''))`,
		inviteLink, granteeID, twitchUserID, patreonUserID)
	if err != nil {
		return fmt.Errorf("insert invite link: %w", err)
	}
	return nil
}

// LinksByGrantee returns every invite link currently held by granteeID.
func LinksByGrantee(ctx context.Context, dbx *sql.DB, granteeID int64) ([]string, error) {
	rows, err := dbx.QueryContext(ctx,
		`SELECT invite_link FROM invite_links WHERE telegram_user_id = $1`, granteeID)
	if err != nil {
		return nil, fmt.Errorf("select links by grantee: %w", err)
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scan invite link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// LinkRow is a full invite-link record as stored.
type LinkRow struct {
	InviteLink    string
	GranteeID     int64
	TwitchUserID  string
	PatreonUserID string
}

// LinksBySubscriberColumn returns every grant whose given provider column
// matches subscriberID. column must be a trusted identifier.
func linksBySubscriberColumn(ctx context.Context, dbx *sql.DB, column, subscriberID string) ([]LinkRow, error) {
	q := fmt.Sprintf(
		`SELECT invite_link, telegram_user_id, COALESCE(twitch_user_id,''), COALESCE(patreon_user_id,'')
		 FROM invite_links WHERE %s = $1`, column)
	rows, err := dbx.QueryContext(ctx, q, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("select links by subscriber: %w", err)
	}
	defer rows.Close()

	var out []LinkRow
	for rows.Next() {
		var r LinkRow
		if err := rows.Scan(&r.InviteLink, &r.GranteeID, &r.TwitchUserID, &r.PatreonUserID); err != nil {
			return nil, fmt.Errorf("scan invite link row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LinksByTwitchID returns grants earned through the given Twitch identity.
func LinksByTwitchID(ctx context.Context, dbx *sql.DB, twitchUserID string) ([]LinkRow, error) {
	return linksBySubscriberColumn(ctx, dbx, "twitch_user_id", twitchUserID)
}

// LinksByPatreonID returns grants earned through the given Patreon identity.
func LinksByPatreonID(ctx context.Context, dbx *sql.DB, patreonUserID string) ([]LinkRow, error) {
	return linksBySubscriberColumn(ctx, dbx, "patreon_user_id", patreonUserID)
}

// GranteeOwnsLink reports whether inviteLink was issued to granteeID.
func GranteeOwnsLink(ctx context.Context, dbx *sql.DB, granteeID int64, inviteLink string) (bool, error) {
	var n int
	err := dbx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invite_links WHERE telegram_user_id = $1 AND invite_link = $2`,
		granteeID, inviteLink).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("select link ownership: %w", err)
	}
	return n > 0, nil
}

// RemoveLink deletes the record for inviteLink. Absence is not an error.
func RemoveLink(ctx context.Context, dbx *sql.DB, inviteLink string) error {
	if _, err := dbx.ExecContext(ctx,
		`DELETE FROM invite_links WHERE invite_link = $1`, inviteLink); err != nil {
		return fmt.Errorf("delete invite link: %w", err)
	}
	return nil
}
