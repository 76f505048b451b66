// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExploitEvidenceKind is a closed set: proof-of-concept code is either a
// whole repository or a single file inside one.
type ExploitEvidenceKind string

const (
	ExploitEvidenceRepository ExploitEvidenceKind = "repository"
	ExploitEvidenceFile       ExploitEvidenceKind = "file"
)

// ExploitEvidence is a proof-of-concept reference discovered by the evidence
// matcher. Rows are keyed by (cve, url): a re-discovery refreshes the
// popularity and recency signals in place instead of inserting a duplicate.
type ExploitEvidence struct {
	ID    uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;"`
	CVEID string    `json:"cve" gorm:"type:text;not null;uniqueIndex:idx_exploit_evidence_url,priority:1"`

	URL  string              `json:"url" gorm:"type:text;not null;uniqueIndex:idx_exploit_evidence_url,priority:2"`
	Kind ExploitEvidenceKind `json:"kind" gorm:"type:text;not null"`

	Stars      int        `json:"stars"`
	LastCommit *time.Time `json:"lastCommit"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m ExploitEvidence) TableName() string {
	return "exploit_evidences"
}

func (m *ExploitEvidence) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m ExploitEvidence) Validate() error {
	switch m.Kind {
	case ExploitEvidenceRepository:
		// star counts are a repository-level signal
		if m.Stars < 0 {
			return fmt.Errorf("repository evidence with negative star count: %d", m.Stars)
		}
	case ExploitEvidenceFile:
		if m.Stars != 0 {
			return fmt.Errorf("file evidence must not carry a star count")
		}
	default:
		return fmt.Errorf("unknown exploit evidence kind: %s", m.Kind)
	}
	if m.URL == "" {
		return fmt.Errorf("exploit evidence without url")
	}
	return nil
}

// AffectedProjectEvidence records an open-source repository whose declared
// dependency version falls inside a vulnerability's affected range. Rows are
// deduplicated by (cve, repository); a later, stronger match replaces the
// snippet and matched version rather than appending a second row.
type AffectedProjectEvidence struct {
	ID    uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;"`
	CVEID string    `json:"cve" gorm:"type:text;not null;uniqueIndex:idx_affected_project_repo,priority:1"`

	RepositoryID string `json:"repositoryId" gorm:"type:text;not null;uniqueIndex:idx_affected_project_repo,priority:2"`
	URL          string `json:"url" gorm:"type:text;not null"`
	Language     string `json:"language" gorm:"type:text;"`

	EvidenceSnippet string    `json:"evidenceSnippet" gorm:"type:text;"`
	MatchedVersion  string    `json:"matchedVersion" gorm:"type:text;"`
	DiscoveredAt    time.Time `json:"discoveredAt"`
}

func (m AffectedProjectEvidence) TableName() string {
	return "affected_project_evidences"
}

func (m *AffectedProjectEvidence) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
