package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/vulnfeed/database"
	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/shared"
	"gorm.io/gorm/clause"
)

type deliveryRepository struct {
	db shared.DB
	*database.GormRepository[uuid.UUID, models.NotificationDelivery]
}

func NewDeliveryRepository(db shared.DB) *deliveryRepository {
	if err := db.AutoMigrate(&models.NotificationDelivery{}); err != nil {
		panic(err)
	}
	return &deliveryRepository{
		db:             db,
		GormRepository: database.NewGormRepository[uuid.UUID, models.NotificationDelivery](db),
	}
}

// MarkDelivered inserts the delivery marker and reports whether it was new.
// A replayed change collides with the unique (cve, subscriber, change hash)
// index and returns false, which is what keeps delivery exactly-once per
// material change.
func (g *deliveryRepository) MarkDelivered(tx shared.DB, delivery *models.NotificationDelivery) (bool, error) {
	res := g.GetDB(tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cve_id"}, {Name: "subscriber_id"}, {Name: "change_hash"}},
		DoNothing: true,
	}).Create(delivery)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
