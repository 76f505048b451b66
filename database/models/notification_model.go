package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationDelivery is the delivery marker written before handing a
// payload to the messaging collaborator. The unique index over
// (cve, subscriber, change hash) is what makes redelivery of the same change
// a no-op: a crash between marking and delivering loses at most that one
// payload, it never spams a subscriber twice.
type NotificationDelivery struct {
	ID uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;"`

	CVEID        string `json:"cve" gorm:"type:text;not null;uniqueIndex:idx_delivery_change,priority:1"`
	SubscriberID string `json:"subscriberId" gorm:"type:text;not null;uniqueIndex:idx_delivery_change,priority:2"`
	ChangeHash   string `json:"changeHash" gorm:"type:text;not null;uniqueIndex:idx_delivery_change,priority:3"`

	// the payload as handed to the messenger, kept for auditing deliveries
	Payload datatypes.JSON `json:"payload" gorm:"type:jsonb;default:'{}';not null"`

	CreatedAt time.Time `json:"createdAt"`
}

func (m NotificationDelivery) TableName() string {
	return "notification_deliveries"
}

func (m *NotificationDelivery) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// DeliveryChangeHash identifies one material change of one vulnerability:
// the same feed revision always hashes to the same value, so crash-recovery
// replays collide with the existing marker.
func DeliveryChangeHash(cveID string, outcomeKind string, dateLastModified time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s/%d", cveID, outcomeKind, dateLastModified.UnixNano())))
	return hex.EncodeToString(sum[:])[:16]
}
