// Package notify routes triggered alerts to the configured delivery
// channels. Dispatch is best-effort per alert: a failing channel is logged
// and never blocks the other channel or sibling records.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sanju9645/sumo-insight-backend/internal/domain"
	"github.com/sanju9645/sumo-insight-backend/internal/service/content"
)

// EmailSender delivers one HTML message to a list of recipients.
type EmailSender interface {
	Send(ctx context.Context, recipients []string, subject, htmlBody string) error
}

// VoiceCaller places one voice call per number, speaking the message. It
// returns the identifiers of the calls it managed to create.
type VoiceCaller interface {
	Call(ctx context.Context, numbers []string, message string) ([]string, error)
}

// Dispatcher fans a triggered alert out to email and voice channels.
type Dispatcher struct {
	generator content.Generator
	email     EmailSender
	voice     VoiceCaller
	logger    *slog.Logger
}

// NewDispatcher returns a Dispatcher. A nil email sender or voice caller
// disables that channel.
func NewDispatcher(generator content.Generator, email EmailSender, voice VoiceCaller, logger *slog.Logger) *Dispatcher {
	if generator == nil {
		generator = content.Static{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{generator: generator, email: email, voice: voice, logger: logger}
}

// Dispatch delivers the alert to every channel its type selects. Content
// generation failures fall back to the static template; channel failures are
// logged and swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg *domain.AlertConfiguration, event domain.AlertEvent) {
	body, err := d.generator.AlertContent(ctx, event)
	if err != nil {
		d.logger.Warn("alert content generation failed, using fallback",
			"endpoint", event.Endpoint, "error", err)
		body = content.Fallback(event)
	}

	if wantsEmail(event.AlertType) && len(cfg.Emails) > 0 {
		d.sendEmail(ctx, cfg.Emails, event, body.HTML)
	}
	if wantsPhone(event.AlertType) && len(cfg.PhoneNumbers) > 0 {
		d.placeCalls(ctx, cfg.PhoneNumbers, event, body.Plain)
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, recipients []string, event domain.AlertEvent, htmlBody string) {
	if d.email == nil {
		d.logger.Warn("email channel not configured, dropping alert email", "endpoint", event.Endpoint)
		return
	}
	subject := fmt.Sprintf("Sumo Insight Alert: %s %s Threshold Exceeded",
		event.Endpoint, content.MetricDescription(event.MetricType))
	if err := d.email.Send(ctx, recipients, subject, htmlBody); err != nil {
		d.logger.Error("alert email send failed", "endpoint", event.Endpoint, "error", err)
		return
	}
	d.logger.Info("alert email sent", "endpoint", event.Endpoint, "recipients", len(recipients))
}

func (d *Dispatcher) placeCalls(ctx context.Context, numbers []string, event domain.AlertEvent, message string) {
	if d.voice == nil {
		d.logger.Warn("voice channel not configured, dropping alert call", "endpoint", event.Endpoint)
		return
	}
	callIDs, err := d.voice.Call(ctx, numbers, message)
	if err != nil {
		d.logger.Error("alert voice call failed", "endpoint", event.Endpoint, "error", err)
	}
	if len(callIDs) > 0 {
		d.logger.Info("alert voice calls placed", "endpoint", event.Endpoint, "calls", len(callIDs))
	}
}

func wantsEmail(alertType string) bool {
	return alertType == domain.AlertTypeEmail || alertType == domain.AlertTypeBoth
}

func wantsPhone(alertType string) bool {
	return alertType == domain.AlertTypePhone || alertType == domain.AlertTypeBoth
}
