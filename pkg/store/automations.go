package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otherjamesbrown/notetakerd/pkg/logging"
)

// AutomationRepository provides access to user-defined generation templates.
type AutomationRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewAutomationRepository creates a new automation repository.
func NewAutomationRepository(pool *pgxpool.Pool, logger logging.Logger) *AutomationRepository {
	return &AutomationRepository{
		pool:   pool,
		logger: logger.With(logging.F("component", "automation_repository")),
	}
}

// ListActiveByUser returns the user's active automations.
func (r *AutomationRepository) ListActiveByUser(ctx context.Context, userID string) ([]*Automation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, name, type, platform, description, example, is_active
		FROM automations
		WHERE user_id = $1 AND is_active
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}
	defer rows.Close()

	var automations []*Automation
	for rows.Next() {
		var a Automation
		err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Platform,
			&a.Description, &a.Example, &a.IsActive)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}
		automations = append(automations, &a)
	}

	return automations, rows.Err()
}

// Create inserts a new automation and returns its id.
func (r *AutomationRepository) Create(ctx context.Context, a *Automation) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO automations (user_id, name, type, platform, description, example, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, a.UserID, a.Name, a.Type, a.Platform, a.Description, a.Example, a.IsActive).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create automation: %w", err)
	}

	r.logger.Debug("Automation created",
		logging.F("automation_id", id),
		logging.F("user_id", a.UserID),
		logging.F("platform", a.Platform))

	return id, nil
}
