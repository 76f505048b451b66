package notify

import (
	"context"
	"log/slog"

	"github.com/l3montree-dev/vulnfeed/database/models"
)

// LogMessenger writes payloads to the log instead of an external channel.
// Used when no messaging credentials are configured.
type LogMessenger struct{}

func NewLogMessenger() *LogMessenger {
	return &LogMessenger{}
}

func (l *LogMessenger) Send(_ context.Context, subscriber models.Subscriber, payload Payload) error {
	slog.Info("notification",
		"subscriber", subscriber.ID,
		"cve", payload.CVE,
		"severity", payload.Severity,
		"new", payload.New,
		"hasExploitEvidence", payload.HasExploitEvidence)
	return nil
}
