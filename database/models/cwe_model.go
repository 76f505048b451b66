package models

import (
	"time"
)

type CWE struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	CWE string `json:"cwe" gorm:"primaryKey;not null;"`

	Name string `json:"name" gorm:"type:text;"`
}

func (m CWE) TableName() string {
	return "cwes"
}
