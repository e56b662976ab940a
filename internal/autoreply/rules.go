package autoreply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"widget-chat-service/internal/matcher"
	"widget-chat-service/internal/models"
	"widget-chat-service/internal/observability"
	"widget-chat-service/internal/realtime"
	"widget-chat-service/internal/repositories"
	"widget-chat-service/internal/telemetry"
)

var (
	ErrInvalidRule = errors.New("invalid rule")
	ErrEmptyText   = errors.New("text is required")
)

// RuleSource yields a consistent snapshot of a widget's rules. Callers must not
// modify the returned slice.
type RuleSource interface {
	Rules(ctx context.Context, widgetID string) ([]models.AutoReplyRule, error)
}

type cachedRules struct {
	rules    []models.AutoReplyRule
	loadedAt time.Time
}

// RuleCache keeps whole rule sets per widget in an LRU. An entry is replaced as a
// unit, never patched, so readers never see a partially written set.
type RuleCache struct {
	repo   repositories.RuleRepository
	cache  *lru.Cache
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
	gen    map[string]uint64
	epoch  uint64
	logger zerolog.Logger
}

// NewRuleCache wraps repo with an LRU of size entries that expire after ttl.
func NewRuleCache(repo repositories.RuleRepository, size int, ttl time.Duration, logger zerolog.Logger) (*RuleCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("rule cache: %w", err)
	}
	return &RuleCache{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
		gen:    make(map[string]uint64),
		logger: logger,
	}, nil
}

// Rules returns the cached snapshot or loads a fresh one with a single query.
func (c *RuleCache) Rules(ctx context.Context, widgetID string) ([]models.AutoReplyRule, error) {
	if val, ok := c.cache.Get(widgetID); ok {
		entry := val.(cachedRules)
		if c.ttl <= 0 || c.now().Sub(entry.loadedAt) < c.ttl {
			observability.IncRuleCache("hit")
			return entry.rules, nil
		}
	}
	observability.IncRuleCache("miss")

	c.mu.Lock()
	gen, epoch := c.gen[widgetID], c.epoch
	c.mu.Unlock()

	rules, err := c.repo.ListRules(ctx, widgetID)
	if err != nil {
		return nil, err
	}

	// Skip caching when an invalidation raced with the load.
	c.mu.Lock()
	if c.gen[widgetID] == gen && c.epoch == epoch {
		c.cache.Add(widgetID, cachedRules{rules: rules, loadedAt: c.now()})
	}
	c.mu.Unlock()
	return rules, nil
}

// Invalidate drops the widget's snapshot.
func (c *RuleCache) Invalidate(widgetID string) {
	c.mu.Lock()
	c.gen[widgetID]++
	c.cache.Remove(widgetID)
	c.mu.Unlock()
}

// InvalidateAll drops every snapshot.
func (c *RuleCache) InvalidateAll() {
	c.mu.Lock()
	c.epoch++
	c.cache.Purge()
	c.mu.Unlock()
}

// Watch invalidates entries when any instance announces a rule change. If the
// bus drops the feed, announcements may have been missed, so the whole cache is
// cleared and the feed is re-established.
func (c *RuleCache) Watch(channel *realtime.Channel) {
	channel.SubscribeRuleChanges(func(ev models.ChatEvent) {
		if ev.WidgetID != "" {
			c.Invalidate(ev.WidgetID)
			c.logger.Debug().Str("widget_id", ev.WidgetID).Msg("rule cache invalidated")
		}
	}, realtime.OnDrop(func() {
		c.InvalidateAll()
		c.logger.Warn().Msg("rule change feed dropped, rule cache cleared")
		c.Watch(channel)
	}))
}

// RuleService validates and stores rules for a widget owner.
type RuleService struct {
	repo      repositories.RuleRepository
	cache     *RuleCache
	channel   *realtime.Channel
	audit     *telemetry.AuditEmitter
	threshold float64
	logger    zerolog.Logger
}

// NewRuleService builds a RuleService. threshold applies to Preview.
func NewRuleService(repo repositories.RuleRepository, cache *RuleCache, channel *realtime.Channel, audit *telemetry.AuditEmitter, threshold float64, logger zerolog.Logger) *RuleService {
	return &RuleService{repo: repo, cache: cache, channel: channel, audit: audit, threshold: threshold, logger: logger}
}

// ListRules returns a widget's rules ordered by id.
func (s *RuleService) ListRules(ctx context.Context, widgetID string) ([]models.AutoReplyRule, error) {
	return s.repo.ListRules(ctx, widgetID)
}

// CreateRule trims and validates keyword and response before storing.
func (s *RuleService) CreateRule(ctx context.Context, widget models.Widget, keyword, response string) (models.AutoReplyRule, error) {
	keyword = strings.TrimSpace(keyword)
	response = strings.TrimSpace(response)
	if keyword == "" {
		return models.AutoReplyRule{}, fmt.Errorf("%w: keyword is required", ErrInvalidRule)
	}
	if response == "" {
		return models.AutoReplyRule{}, fmt.Errorf("%w: response is required", ErrInvalidRule)
	}

	rule, err := s.repo.CreateRule(ctx, widget.ID, widget.AccountID, keyword, response)
	if err != nil {
		return models.AutoReplyRule{}, err
	}
	s.changed(ctx, widget.ID)
	s.emit(ctx, widget.AccountID, widget.ID, "rule created", rule)
	return rule, nil
}

// DeleteRule removes a rule owned by accountID.
func (s *RuleService) DeleteRule(ctx context.Context, accountID string, ruleID int64) error {
	rule, err := s.repo.DeleteRule(ctx, accountID, ruleID)
	if err != nil {
		return err
	}
	s.changed(ctx, rule.WidgetID)
	s.emit(ctx, accountID, rule.WidgetID, "rule deleted", rule)
	return nil
}

// Preview runs the advisory fuzzy matcher against the widget's current rules.
func (s *RuleService) Preview(ctx context.Context, widgetID, text string) (matcher.PreviewResult, bool, error) {
	if strings.TrimSpace(text) == "" {
		return matcher.PreviewResult{}, false, ErrEmptyText
	}
	rules, err := s.repo.ListRules(ctx, widgetID)
	if err != nil {
		return matcher.PreviewResult{}, false, err
	}
	result, ok := matcher.Preview(text, rules, s.threshold)
	return result, ok, nil
}

func (s *RuleService) changed(ctx context.Context, widgetID string) {
	if s.cache != nil {
		s.cache.Invalidate(widgetID)
	}
	if s.channel != nil {
		if err := s.channel.RulesChanged(ctx, widgetID); err != nil {
			s.logger.Warn().Err(err).Str("widget_id", widgetID).Msg("failed to broadcast rule change")
		}
	}
}

func (s *RuleService) emit(ctx context.Context, accountID, widgetID, text string, rule models.AutoReplyRule) {
	s.audit.Emit(ctx, telemetry.AuditRecord{
		Level:     "INFO",
		Text:      text,
		AccountID: &accountID,
		WidgetID:  widgetID,
		Fields: map[string]string{
			"rule_id": fmt.Sprint(rule.ID),
			"keyword": rule.Keyword,
		},
	})
}
