// Package autoreply turns visitor messages into canned replies.
package autoreply

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"widget-chat-service/internal/matcher"
	"widget-chat-service/internal/models"
	"widget-chat-service/internal/observability"
	"widget-chat-service/internal/repositories"
	"widget-chat-service/internal/telemetry"
)

const resolveTimeout = 2 * time.Second

// Notifier announces committed messages to live subscribers.
type Notifier interface {
	MessageInserted(ctx context.Context, msg models.Message, chat models.Chat) error
}

// Dispatcher produces at most one auto-reply per visitor message.
type Dispatcher struct {
	rules    RuleSource
	messages repositories.MessageRepository
	outcomes repositories.OutcomeRepository
	notifier Notifier
	audit    *telemetry.AuditEmitter
	timeout  time.Duration
	tracer   trace.Tracer
	logger   zerolog.Logger
}

// NewDispatcher builds a Dispatcher. timeout bounds one dispatch.
func NewDispatcher(rules RuleSource, messages repositories.MessageRepository, outcomes repositories.OutcomeRepository, notifier Notifier, audit *telemetry.AuditEmitter, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		rules:    rules,
		messages: messages,
		outcomes: outcomes,
		notifier: notifier,
		audit:    audit,
		timeout:  timeout,
		tracer:   otel.Tracer("widget-chat-service/autoreply"),
		logger:   logger,
	}
}

// OnVisitorMessage runs once per committed visitor message and returns the stored
// reply, if any. Failures are recorded as a failed outcome and never reach the
// caller. Business messages and auto-replies are ignored.
func (d *Dispatcher) OnVisitorMessage(ctx context.Context, msg models.Message) *models.Message {
	if !msg.TriggersAutoReply() {
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	ctx, span := d.tracer.Start(ctx, "autoreply.dispatch", trace.WithAttributes(
		attribute.Int64("message.id", msg.ID),
		attribute.String("chat.id", msg.ChatID),
		attribute.String("widget.id", msg.WidgetID),
	))
	defer span.End()

	log := d.logger.With().Int64("message_id", msg.ID).Str("chat_id", msg.ChatID).Str("widget_id", msg.WidgetID).Logger()

	claimed, err := d.outcomes.Claim(ctx, msg.ID)
	if err != nil {
		d.failed(ctx, span, log, msg, fmt.Errorf("claim: %w", err), false)
		observability.ObserveAutoReply(string(models.OutcomeFailed), time.Since(start))
		return nil
	}
	if !claimed {
		log.Debug().Msg("auto-reply already dispatched")
		observability.ObserveAutoReply("duplicate", time.Since(start))
		return nil
	}

	reply, outcome, err := d.dispatch(ctx, msg)
	if err != nil {
		d.failed(ctx, span, log, msg, err, true)
		observability.ObserveAutoReply(string(models.OutcomeFailed), time.Since(start))
		return nil
	}

	var replyID *int64
	if reply != nil {
		replyID = &reply.ID
	}
	if err := d.resolve(ctx, msg.ID, outcome, replyID, nil); err != nil {
		log.Warn().Err(err).Msg("failed to record auto-reply outcome")
	}

	span.SetAttributes(attribute.String("autoreply.outcome", string(outcome)))
	observability.ObserveAutoReply(string(outcome), time.Since(start))
	if reply != nil {
		log.Info().Int64("reply_id", reply.ID).Str("keyword", *reply.MatchedKeyword).Msg("auto-reply sent")
		_ = observability.PublishEvent(ctx, "chat_events.auto_reply", observability.EventEnvelope{
			EventType: "chat_events",
			EventName: "auto_reply",
			TraceID:   span.SpanContext().TraceID().String(),
			Payload: map[string]interface{}{
				"message_id":      msg.ID,
				"reply_id":        reply.ID,
				"chat_id":         msg.ChatID,
				"widget_id":       msg.WidgetID,
				"matched_keyword": *reply.MatchedKeyword,
			},
		})
	}
	return reply
}

func (d *Dispatcher) dispatch(ctx context.Context, msg models.Message) (*models.Message, models.Outcome, error) {
	rules, err := d.rules.Rules(ctx, msg.WidgetID)
	if err != nil {
		return nil, "", fmt.Errorf("load rules: %w", err)
	}

	rule, ok := matcher.Match(msg.Content, rules)
	if !ok {
		return nil, models.OutcomeNoMatch, nil
	}

	keyword := rule.Keyword
	reply, chat, err := d.messages.InsertMessage(ctx, models.NewMessage{
		ChatID:         msg.ChatID,
		WidgetID:       msg.WidgetID,
		Content:        rule.Response,
		SenderKind:     models.SenderBusiness,
		IsAutoReply:    true,
		MatchedKeyword: &keyword,
	})
	if err != nil {
		return nil, "", fmt.Errorf("insert reply: %w", err)
	}

	// The reply is committed even when the broadcast fails.
	if err := d.notifier.MessageInserted(ctx, reply, chat); err != nil {
		d.logger.Warn().Err(err).Int64("reply_id", reply.ID).Msg("failed to broadcast auto-reply")
	}
	return &reply, models.OutcomeReplied, nil
}

func (d *Dispatcher) failed(ctx context.Context, span trace.Span, log zerolog.Logger, msg models.Message, err error, claimed bool) {
	ctx = context.WithoutCancel(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Error().Err(err).Msg("auto-reply failed")

	if claimed {
		text := err.Error()
		if rerr := d.resolve(ctx, msg.ID, models.OutcomeFailed, nil, &text); rerr != nil {
			log.Warn().Err(rerr).Msg("failed to record auto-reply outcome")
		}
	}

	d.audit.Emit(ctx, telemetry.AuditRecord{
		Level:    "ERROR",
		Text:     "auto-reply failed",
		WidgetID: msg.WidgetID,
		Fields: map[string]string{
			"message_id": fmt.Sprint(msg.ID),
			"chat_id":    msg.ChatID,
			"error":      err.Error(),
		},
	})
}

// resolve runs on its own deadline so a dispatch timeout can still be recorded.
func (d *Dispatcher) resolve(ctx context.Context, messageID int64, outcome models.Outcome, replyID *int64, errText *string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
	defer cancel()
	return d.outcomes.Resolve(ctx, messageID, outcome, replyID, errText)
}
