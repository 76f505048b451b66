package models

import (
	"time"
)

type Config struct {
	Key string `json:"key" gorm:"primaryKey;type:text;"`
	Val string `json:"val" gorm:"type:text;"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m Config) TableName() string {
	return "config"
}
