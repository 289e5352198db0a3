package pgx

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lborres/farewatch/core"
)

const alertPreferenceColumns = `id, user_id, min_discount_percentage, max_price_europe, max_price_international,
	preferred_routes, excluded_airlines, advance_days_min, advance_days_max, max_alerts_per_week, created_at, updated_at`

func (a *Adapter) GetAlertPreferences(ctx context.Context, userID string) (*core.AlertPreferences, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, core.ErrAlertPreferencesNotFound
	}

	p := &core.AlertPreferences{}
	err := a.pool.QueryRow(ctx, `SELECT `+alertPreferenceColumns+` FROM alert_preferences WHERE user_id = $1`, userID).Scan(
		&p.ID, &p.UserID, &p.MinDiscountPercentage, &p.MaxPriceEurope, &p.MaxPriceInternational,
		&p.PreferredRoutes, &p.ExcludedAirlines, &p.AdvanceDaysMin, &p.AdvanceDaysMax, &p.MaxAlertsPerWeek, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrAlertPreferencesNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SaveAlertPreferences upserts on user_id; an existing row keeps its id and created_at.
func (a *Adapter) SaveAlertPreferences(ctx context.Context, p *core.AlertPreferences) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	query := `INSERT INTO alert_preferences (id, user_id, min_discount_percentage, max_price_europe, max_price_international,
		preferred_routes, excluded_airlines, advance_days_min, advance_days_max, max_alerts_per_week)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			min_discount_percentage = EXCLUDED.min_discount_percentage,
			max_price_europe = EXCLUDED.max_price_europe,
			max_price_international = EXCLUDED.max_price_international,
			preferred_routes = EXCLUDED.preferred_routes,
			excluded_airlines = EXCLUDED.excluded_airlines,
			advance_days_min = EXCLUDED.advance_days_min,
			advance_days_max = EXCLUDED.advance_days_max,
			max_alerts_per_week = EXCLUDED.max_alerts_per_week,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err := a.pool.QueryRow(ctx, query,
		p.ID, p.UserID, p.MinDiscountPercentage, p.MaxPriceEurope, p.MaxPriceInternational,
		orEmpty(p.PreferredRoutes), orEmpty(p.ExcludedAirlines), p.AdvanceDaysMin, p.AdvanceDaysMax, p.MaxAlertsPerWeek,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.ErrUserNotFound
		}
		return err
	}
	return nil
}
