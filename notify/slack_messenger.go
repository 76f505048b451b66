package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/slack-go/slack"
)

// SlackMessenger posts payloads to the slack channel stored as the
// subscriber id.
type SlackMessenger struct {
	client *slack.Client
}

func NewSlackMessenger(token string) *SlackMessenger {
	return &SlackMessenger{
		client: slack.New(token),
	}
}

func (s *SlackMessenger) Send(ctx context.Context, subscriber models.Subscriber, payload Payload) error {
	_, _, err := s.client.PostMessageContext(ctx, subscriber.ID,
		slack.MsgOptionText(formatPayload(payload), false),
	)
	return err
}

func formatPayload(payload Payload) string {
	var b strings.Builder
	if payload.New {
		fmt.Fprintf(&b, ":rotating_light: New vulnerability %s", payload.CVE)
	} else {
		fmt.Fprintf(&b, ":warning: Vulnerability %s changed", payload.CVE)
	}
	fmt.Fprintf(&b, " (severity: %s)", payload.Severity)
	if payload.HasExploitEvidence {
		b.WriteString("\nProof-of-concept exploit code is publicly available.")
	}
	if payload.Description != "" {
		b.WriteString("\n> " + truncate(payload.Description, 280))
	}
	b.WriteString(fmt.Sprintf("\nhttps://nvd.nist.gov/vuln/detail/%s", payload.CVE))
	return b.String()
}

// truncate cuts on a rune boundary so multi-byte characters are never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
