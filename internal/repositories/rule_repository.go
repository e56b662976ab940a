package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"widget-chat-service/internal/models"
)

var ErrRuleNotFound = errors.New("rule not found")

// RuleRepository abstracts auto-reply rule persistence.
type RuleRepository interface {
	ListRules(ctx context.Context, widgetID string) ([]models.AutoReplyRule, error)
	CreateRule(ctx context.Context, widgetID, accountID, keyword, response string) (models.AutoReplyRule, error)
	DeleteRule(ctx context.Context, accountID string, ruleID int64) (models.AutoReplyRule, error)
}

// RuleRepo is a sqlx-backed RuleRepository.
type RuleRepo struct {
	db *sqlx.DB
}

// NewRuleRepo constructs a RuleRepo.
func NewRuleRepo(db *sqlx.DB) *RuleRepo {
	return &RuleRepo{db: db}
}

// ListRules returns every rule of a widget in one statement, ordered by id.
func (r *RuleRepo) ListRules(ctx context.Context, widgetID string) ([]models.AutoReplyRule, error) {
	rules := []models.AutoReplyRule{}
	err := r.db.SelectContext(ctx, &rules, `SELECT id, widget_id, account_id, keyword, response, created_at
        FROM auto_reply_rules WHERE widget_id=$1 ORDER BY id ASC`, widgetID)
	return rules, err
}

// CreateRule stores a rule. Callers validate and trim keyword and response.
func (r *RuleRepo) CreateRule(ctx context.Context, widgetID, accountID, keyword, response string) (models.AutoReplyRule, error) {
	var rule models.AutoReplyRule
	err := r.db.GetContext(ctx, &rule, `INSERT INTO auto_reply_rules (widget_id, account_id, keyword, response) VALUES ($1, $2, $3, $4)
        RETURNING id, widget_id, account_id, keyword, response, created_at`, widgetID, accountID, keyword, response)
	return rule, err
}

// DeleteRule removes a rule owned by the account and returns the deleted row.
func (r *RuleRepo) DeleteRule(ctx context.Context, accountID string, ruleID int64) (models.AutoReplyRule, error) {
	var rules []models.AutoReplyRule
	err := r.db.SelectContext(ctx, &rules, `DELETE FROM auto_reply_rules WHERE id=$1 AND account_id=$2
        RETURNING id, widget_id, account_id, keyword, response, created_at`, ruleID, accountID)
	if err != nil {
		return models.AutoReplyRule{}, err
	}
	if len(rules) == 0 {
		return models.AutoReplyRule{}, ErrRuleNotFound
	}
	return rules[0], nil
}
