package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"widget-chat-service/internal/models"
)

var ErrWidgetNotFound = errors.New("widget not found")

const widgetColumns = `id, account_id, color, header_text, greeting_text, logo_url, created_at, updated_at`

// WidgetRepository abstracts widget persistence.
type WidgetRepository interface {
	GetOrCreateForAccount(ctx context.Context, accountID string) (models.Widget, error)
	GetWidget(ctx context.Context, widgetID string) (models.Widget, error)
	UpdateSettings(ctx context.Context, accountID string, settings models.WidgetSettings) (models.Widget, error)
}

// WidgetRepo is a sqlx implementation of WidgetRepository.
type WidgetRepo struct {
	db *sqlx.DB
}

// NewWidgetRepo constructs a WidgetRepo.
func NewWidgetRepo(db *sqlx.DB) *WidgetRepo {
	return &WidgetRepo{db: db}
}

// GetOrCreateForAccount returns the account's widget, creating it on first use.
func (r *WidgetRepo) GetOrCreateForAccount(ctx context.Context, accountID string) (models.Widget, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO widgets (id, account_id) VALUES ($1, $2) ON CONFLICT (account_id) DO NOTHING`, uuid.NewString(), accountID); err != nil {
		return models.Widget{}, err
	}

	var widget models.Widget
	err := r.db.GetContext(ctx, &widget, `SELECT `+widgetColumns+` FROM widgets WHERE account_id=$1`, accountID)
	return widget, err
}

// GetWidget fetches a widget by its external id.
func (r *WidgetRepo) GetWidget(ctx context.Context, widgetID string) (models.Widget, error) {
	if _, err := uuid.Parse(widgetID); err != nil {
		return models.Widget{}, ErrWidgetNotFound
	}
	var widget models.Widget
	err := r.db.GetContext(ctx, &widget, `SELECT `+widgetColumns+` FROM widgets WHERE id=$1`, widgetID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Widget{}, ErrWidgetNotFound
	}
	return widget, err
}

// UpdateSettings replaces the branding of the account's widget.
func (r *WidgetRepo) UpdateSettings(ctx context.Context, accountID string, settings models.WidgetSettings) (models.Widget, error) {
	var widget models.Widget
	err := r.db.GetContext(ctx, &widget, `UPDATE widgets SET color=$2, header_text=$3, greeting_text=$4, logo_url=$5, updated_at=NOW()
        WHERE account_id=$1 RETURNING `+widgetColumns,
		accountID, settings.Color, settings.HeaderText, settings.GreetingText, settings.LogoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Widget{}, ErrWidgetNotFound
	}
	return widget, err
}
