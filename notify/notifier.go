// Copyright (C) 2026 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/shared"
	"gorm.io/datatypes"
)

// Payload is the subscriber-facing description of one material change. It
// intentionally carries no feed internals.
type Payload struct {
	CVE                string
	Description        string
	Severity           models.Severity
	HasExploitEvidence bool
	New                bool
}

// Messenger delivers a payload to one subscriber. Implementations own the
// transport, the notifier owns the decision and the at-most-once bookkeeping.
type Messenger interface {
	Send(ctx context.Context, subscriber models.Subscriber, payload Payload) error
}

// Notifier fans one upsert outcome out to all enabled subscribers. The
// delivery marker is written before the payload is handed to the messenger,
// so a crash in between drops at most that one payload and a redelivered
// change never reaches a subscriber twice.
type Notifier struct {
	messenger   Messenger
	subscribers shared.SubscriberRepository
	deliveries  shared.DeliveryRepository
	notifyOn    map[shared.ChangedField]bool
}

func NewNotifier(messenger Messenger, subscribers shared.SubscriberRepository, deliveries shared.DeliveryRepository, notifyOn []string) *Notifier {
	fields := make(map[shared.ChangedField]bool, len(notifyOn))
	for _, field := range notifyOn {
		fields[shared.ChangedField(field)] = true
	}
	return &Notifier{
		messenger:   messenger,
		subscribers: subscribers,
		deliveries:  deliveries,
		notifyOn:    fields,
	}
}

// worthy decides whether an outcome produces notifications at all: a newly
// inserted vulnerability always does, an update only when one of its changed
// fields is in the configured notify-on set, everything else never.
func (n *Notifier) worthy(outcome shared.UpsertOutcome) bool {
	switch outcome.Kind {
	case shared.OutcomeInserted:
		return true
	case shared.OutcomeUpdated:
		for _, field := range outcome.ChangedFields {
			if n.notifyOn[field] {
				return true
			}
		}
	}
	return false
}

// Notify delivers the change described by cve and outcome to every enabled
// subscriber that has not seen it yet. It returns the number of payloads
// actually handed to the messenger. Messenger failures are logged and
// swallowed: the marker already exists, so the change is considered handled.
func (n *Notifier) Notify(ctx context.Context, cve models.CVE, outcome shared.UpsertOutcome) (int, error) {
	if !n.worthy(outcome) {
		return 0, nil
	}

	subscribers, err := n.subscribers.FindEnabled(nil)
	if err != nil {
		return 0, err
	}
	if len(subscribers) == 0 {
		return 0, nil
	}

	changeHash := models.DeliveryChangeHash(cve.CVE, string(outcome.Kind), cve.DateLastModified)
	payload := Payload{
		CVE:                cve.CVE,
		Description:        cve.Description,
		Severity:           cve.Severity,
		HasExploitEvidence: cve.HasExploitEvidence,
		New:                outcome.Kind == shared.OutcomeInserted,
	}

	sent := 0
	for _, subscriber := range subscribers {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return sent, err
		}
		fresh, err := n.deliveries.MarkDelivered(nil, &models.NotificationDelivery{
			CVEID:        cve.CVE,
			SubscriberID: subscriber.ID,
			ChangeHash:   changeHash,
			Payload:      datatypes.JSON(payloadJSON),
		})
		if err != nil {
			return sent, err
		}
		if !fresh {
			continue
		}

		if err := n.messenger.Send(ctx, subscriber, payload); err != nil {
			slog.Warn("notification delivery failed", "cve", cve.CVE, "subscriber", subscriber.ID, "err", err)
			continue
		}
		sent++
	}
	return sent, nil
}
