package models

import (
	"time"
)

// Subscriber rows are owned by the external messaging collaborator. The core
// only reads the notifications-enabled flag at notification time and never
// writes it.
type Subscriber struct {
	ID string `json:"id" gorm:"primaryKey;type:text;"`

	DisplayName          string `json:"displayName" gorm:"type:text;"`
	NotificationsEnabled bool   `json:"notificationsEnabled" gorm:"index"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m Subscriber) TableName() string {
	return "subscribers"
}
