// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package shared

import (
	"time"

	"github.com/l3montree-dev/vulnfeed/database/models"
)

type CveRepository interface {
	Apply(tx DB, cve *models.CVE, weaknesses []models.Weakness, components []models.AffectedComponent, refs []models.CVEReference) (UpsertOutcome, error)
	FindByID(tx DB, id string) (models.CVE, error)
	GetLastModDate() (time.Time, error)
	SetExploitEvidenceState(tx DB, cveID string, count int) (transitioned bool, err error)
	Transaction(fn func(tx DB) error) error
	GetDB(tx DB) DB
}

type CweRepository interface {
	SaveBatch(tx DB, cwes []models.CWE) error
	GetDB(tx DB) DB
}

type ExploitEvidenceRepository interface {
	UpsertByURL(tx DB, evidence *models.ExploitEvidence) error
	CountForCVE(tx DB, cveID string) (int64, error)
	GetDB(tx DB) DB
}

type AffectedProjectEvidenceRepository interface {
	UpsertByRepository(tx DB, evidence *models.AffectedProjectEvidence) error
	GetDB(tx DB) DB
}

type SubscriberRepository interface {
	FindEnabled(tx DB) ([]models.Subscriber, error)
	GetDB(tx DB) DB
}

type DeliveryRepository interface {
	// MarkDelivered records the delivery marker for the given
	// (vulnerability, subscriber, change) triple. It returns false without
	// touching the store if the marker already exists.
	MarkDelivered(tx DB, delivery *models.NotificationDelivery) (bool, error)
	GetDB(tx DB) DB
}

type ConfigService interface {
	GetJSONConfig(key string, v any) error
	SetJSONConfig(key string, v any) error
}
