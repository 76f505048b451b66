package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CVEReference is an external link shipped by the feed for a vulnerability,
// e.g. a patch, an exploit writeup or a vendor advisory.
type CVEReference struct {
	ID    uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;"`
	CVEID string    `json:"cve" gorm:"type:text;not null;index"`

	URL    string         `json:"url" gorm:"type:text;not null"`
	Source string         `json:"source" gorm:"type:text;"`
	Tags   pq.StringArray `json:"tags" gorm:"type:text[]"`
}

func (m CVEReference) TableName() string {
	return "cve_references"
}

func (m *CVEReference) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
