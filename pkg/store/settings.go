package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

// SettingsRepository provides access to per-user bot preferences.
type SettingsRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(pool *pgxpool.Pool, logger logging.Logger) *SettingsRepository {
	return &SettingsRepository{
		pool:   pool,
		logger: logger.With(logging.F("component", "settings_repository")),
	}
}

// GetJoinMinutes returns how many minutes before meeting start the user's bot
// should join. Users without a settings row get the default.
func (r *SettingsRepository) GetJoinMinutes(ctx context.Context, userID string) (int, error) {
	var minutes int
	err := r.pool.QueryRow(ctx,
		`SELECT bot_join_minutes_before FROM user_settings WHERE user_id = $1`,
		userID).Scan(&minutes)
	if err == pgx.ErrNoRows {
		return DefaultJoinMinutesBefore, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get user settings: %w", err)
	}
	return minutes, nil
}

// SetJoinMinutes upserts the user's join lead time.
func (r *SettingsRepository) SetJoinMinutes(ctx context.Context, userID string, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("join minutes must be non-negative, got %d", minutes)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_settings (user_id, bot_join_minutes_before)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET bot_join_minutes_before = EXCLUDED.bot_join_minutes_before,
		    updated_at = NOW()
	`, userID, minutes)
	if err != nil {
		return fmt.Errorf("failed to set user settings: %w", err)
	}

	r.logger.Debug("User settings updated",
		logging.F("user_id", userID),
		logging.F("join_minutes", minutes))

	return nil
}
