// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WildcardVersion marks a component affected in every version the vendor
// ever shipped ("*" criteria in the feed).
const WildcardVersion = "*"

// AffectedComponent is a vendor/product/version triple naming software
// impacted by a vulnerability. The same triple may recur across many
// records; rows belong to exactly one CVE and are replaced together with
// their parent on update.
type AffectedComponent struct {
	ID    uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;"`
	CVEID string    `json:"cve" gorm:"type:text;not null;index:idx_affected_component_triple,priority:4"`

	Vendor  string `json:"vendor" gorm:"type:text;index:idx_affected_component_triple,priority:1"`
	Product string `json:"product" gorm:"type:text;index:idx_affected_component_triple,priority:2"`
	// Version is either an exact value, WildcardVersion, or "-" when the feed
	// expresses the affected set through the range fields below.
	Version string `json:"version" gorm:"type:text;index:idx_affected_component_triple,priority:3"`

	// open/half-open range bounds; nil means unbounded on that side
	VersionStartIncluding *string `json:"versionStartIncluding" gorm:"type:text;"`
	VersionEndIncluding   *string `json:"versionEndIncluding" gorm:"type:text;"`
	VersionEndExcluding   *string `json:"versionEndExcluding" gorm:"type:text;"`
}

func (m AffectedComponent) TableName() string {
	return "affected_components"
}

func (m *AffectedComponent) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Ranged reports whether the affected set is expressed as a version range
// rather than an exact version.
func (m AffectedComponent) Ranged() bool {
	return m.VersionStartIncluding != nil || m.VersionEndIncluding != nil || m.VersionEndExcluding != nil
}
