package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

const socialConnectionColumns = `
	id, user_id, platform, access_token, refresh_token, expires_at,
	profile_id, profile_name, page_id, page_access_token, page_name, auto_post
`

// SocialRepository provides access to per-user social platform connections.
type SocialRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewSocialRepository creates a new social connection repository.
func NewSocialRepository(pool *pgxpool.Pool, logger logging.Logger) *SocialRepository {
	return &SocialRepository{
		pool:   pool,
		logger: logger.With(logging.F("component", "social_repository")),
	}
}

// ListByUser returns all of the user's social connections.
func (r *SocialRepository) ListByUser(ctx context.Context, userID string) ([]*SocialConnection, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+socialConnectionColumns+` FROM social_connections WHERE user_id = $1 ORDER BY platform`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query social connections: %w", err)
	}
	defer rows.Close()

	var conns []*SocialConnection
	for rows.Next() {
		conn, err := scanSocialConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan social connection: %w", err)
		}
		conns = append(conns, conn)
	}

	return conns, rows.Err()
}

// GetByUserAndPlatform returns one connection, or ErrNotFound.
func (r *SocialRepository) GetByUserAndPlatform(ctx context.Context, userID, platform string) (*SocialConnection, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+socialConnectionColumns+` FROM social_connections WHERE user_id = $1 AND platform = $2`,
		userID, platform)

	conn, err := scanSocialConnection(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("connection %s/%s: %w", userID, platform, nterrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get social connection: %w", err)
	}

	return conn, nil
}

// Save upserts a connection keyed on (user_id, platform).
func (r *SocialRepository) Save(ctx context.Context, conn *SocialConnection) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO social_connections (
			user_id, platform, access_token, refresh_token, expires_at,
			profile_id, profile_name, page_id, page_access_token, page_name, auto_post
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			profile_id = EXCLUDED.profile_id,
			profile_name = EXCLUDED.profile_name,
			page_id = EXCLUDED.page_id,
			page_access_token = EXCLUDED.page_access_token,
			page_name = EXCLUDED.page_name,
			auto_post = EXCLUDED.auto_post
	`,
		conn.UserID, conn.Platform, conn.AccessToken, conn.RefreshToken, conn.ExpiresAt,
		conn.ProfileID, conn.ProfileName, conn.PageID, conn.PageAccessToken, conn.PageName,
		conn.AutoPost,
	)
	if err != nil {
		return fmt.Errorf("failed to save social connection: %w", err)
	}

	r.logger.Debug("Social connection saved",
		logging.F("user_id", conn.UserID),
		logging.F("platform", conn.Platform))

	return nil
}

// SetAutoPost toggles automatic publishing for one connection.
func (r *SocialRepository) SetAutoPost(ctx context.Context, userID, platform string, autoPost bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE social_connections SET auto_post = $3 WHERE user_id = $1 AND platform = $2`,
		userID, platform, autoPost)
	if err != nil {
		return fmt.Errorf("failed to set auto_post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s/%s: %w", userID, platform, nterrors.ErrNotFound)
	}
	return nil
}

// Delete removes a connection.
func (r *SocialRepository) Delete(ctx context.Context, userID, platform string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM social_connections WHERE user_id = $1 AND platform = $2`,
		userID, platform)
	if err != nil {
		return fmt.Errorf("failed to delete social connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("connection %s/%s: %w", userID, platform, nterrors.ErrNotFound)
	}
	return nil
}

func scanSocialConnection(row pgx.Row) (*SocialConnection, error) {
	var c SocialConnection
	err := row.Scan(
		&c.ID, &c.UserID, &c.Platform, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt,
		&c.ProfileID, &c.ProfileName, &c.PageID, &c.PageAccessToken, &c.PageName, &c.AutoPost,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
