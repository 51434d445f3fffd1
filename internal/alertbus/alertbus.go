// Package alertbus implements the alert dispatch path:
// Alert(subject, templateID, values) merges monitor identity into values,
// renders a body, hands it to the Notifier, and swallows/logs any failure
// so a broken transport can never break a probe cycle.
package alertbus

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skurt/geofence-monitor/internal/logging"
	"github.com/skurt/geofence-monitor/internal/notifier"
	"github.com/skurt/geofence-monitor/internal/render"
)

// transportTimeout bounds the Notifier hand-off.
const transportTimeout = 10 * time.Second

// recognizedSuffixes are templateId endings the Renderer already
// understands as alert variants; anything else gets "_alert" appended.
var recognizedSuffixes = []string{"_alert"}

// AlertBus is constructed once with the monitor's static identity and
// delivery configuration, then shared by the Scheduler and every probe.
type AlertBus struct {
	MonitorName string
	MonitorURL  string
	Sender      string
	Recipients  []string

	Notifier notifier.Notifier
	Renderer render.Renderer
	Logger   logging.Logger

	// OnAlert, if set, is invoked with the final templateId once the
	// Notifier has accepted the alert (not when rendering or sending
	// fails), letting callers (e.g. metrics) observe dispatch
	// without AlertBus depending on a metrics package directly.
	OnAlert func(templateID string)
}

// Alert renders and sends one alert. It never returns an error and never
// panics: every failure in rendering or transport is logged and dropped,
// so alerting can never take monitoring down with it.
func (b *AlertBus) Alert(subject, templateID string, values map[string]any) {
	correlationID := uuid.NewString()

	merged := make(map[string]any, len(values)+2)
	for k, v := range values {
		merged[k] = v
	}
	merged["monitor_name"] = b.MonitorName
	merged["monitor_url"] = b.MonitorURL

	resolvedID := normalizeTemplateID(templateID)

	body, err := b.Renderer.Render(resolvedID, merged)
	if err != nil {
		b.Logger.Error("failed to render alert body",
			"correlation_id", correlationID,
			"template", resolvedID,
			"error", err,
			"stack", string(debug.Stack()))
		return
	}

	b.Logger.Info("sending alert", "correlation_id", correlationID, "subject", subject, "template", resolvedID)

	ctx, cancel := context.WithTimeout(context.Background(), transportTimeout)
	defer cancel()

	msg := notifier.Message{
		From:     b.Sender,
		To:       b.Recipients,
		Subject:  subject,
		HTMLBody: body,
	}
	if err := b.Notifier.Send(ctx, msg); err != nil {
		b.Logger.Error("failed to send alert",
			"correlation_id", correlationID,
			"subject", subject,
			"error", err,
			"stack", string(debug.Stack()))
		return
	}

	if b.OnAlert != nil {
		b.OnAlert(resolvedID)
	}
}

func normalizeTemplateID(templateID string) string {
	for _, suffix := range recognizedSuffixes {
		if strings.HasSuffix(templateID, suffix) {
			return templateID
		}
	}
	return templateID + "_alert"
}
