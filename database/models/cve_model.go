package models

import (
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityFromScore derives a severity band from a numeric CVSS score using
// the fixed CVSS v3 cutoffs. It is only used when the feed did not ship a
// band itself - feed-supplied bands are trusted verbatim.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// CVE is the canonical vulnerability record. The external identifier is the
// primary key: at most one row per identifier ever exists, rows are upserted
// by the upsert engine and never deleted.
type CVE struct {
	CVE string `json:"cve" gorm:"primaryKey;not null;type:text;"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// feed-authoritative timestamps, used for ordering and the watermark
	DatePublished    time.Time `json:"datePublished"`
	DateLastModified time.Time `json:"dateLastModified" gorm:"index"`

	Description string `json:"description" gorm:"type:text;"`

	// two independent scorings, both optional. No precedence or merge rule is
	// applied here - the query API decides how to present them.
	CVSS     *float64 `json:"cvss" gorm:"type:decimal(4,2);"`
	Severity Severity `json:"severity" gorm:"index"`
	Vector   string   `json:"vector" gorm:"type:text;"`

	CVSSV2     *float64 `json:"cvssV2" gorm:"column:cvss_v2;type:decimal(4,2);"`
	SeverityV2 Severity `json:"severityV2"`
	VectorV2   string   `json:"vectorV2" gorm:"type:text;"`

	// derived from the exploit evidence rows by the evidence matcher
	HasExploitEvidence   bool `json:"hasExploitEvidence"`
	ExploitEvidenceCount int  `json:"exploitEvidenceCount"`

	Weaknesses               []Weakness                `json:"weaknesses" gorm:"foreignKey:CVEID;constraint:OnDelete:CASCADE;"`
	AffectedComponents       []AffectedComponent       `json:"affectedComponents" gorm:"foreignKey:CVEID;constraint:OnDelete:CASCADE;"`
	References               []CVEReference            `json:"references" gorm:"foreignKey:CVEID;constraint:OnDelete:CASCADE;"`
	ExploitEvidences         []ExploitEvidence         `json:"exploitEvidences" gorm:"foreignKey:CVEID;constraint:OnDelete:CASCADE;"`
	AffectedProjectEvidences []AffectedProjectEvidence `json:"affectedProjectEvidences" gorm:"foreignKey:CVEID;constraint:OnDelete:CASCADE;"`
}

// Weakness is the join row between a CVE and a CWE. Join rows only reference
// existing parents and are cascade-deleted with either one.
type Weakness struct {
	CVEID  string `json:"cve" gorm:"primaryKey;not null;type:text;"`
	CVE    CVE    `json:"-"`
	CWEID  string `json:"cwe" gorm:"primaryKey;not null;type:text;"`
	CWE    CWE    `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	Source string `json:"source" gorm:"type:text;"`
}

func (m Weakness) TableName() string {
	return "weaknesses"
}

func (m CVE) TableName() string {
	return "cves"
}
