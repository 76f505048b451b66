package repositories

import (
	"github.com/l3montree-dev/vulnfeed/database"
	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/shared"
)

type subscriberRepository struct {
	db shared.DB
	*database.GormRepository[string, models.Subscriber]
}

func NewSubscriberRepository(db shared.DB) *subscriberRepository {
	if err := db.AutoMigrate(&models.Subscriber{}); err != nil {
		panic(err)
	}
	return &subscriberRepository{
		db:             db,
		GormRepository: database.NewGormRepository[string, models.Subscriber](db),
	}
}

// FindEnabled lists the subscribers that opted into notifications. The flag
// is owned by the messaging collaborator; this core only ever reads it.
func (g *subscriberRepository) FindEnabled(tx shared.DB) ([]models.Subscriber, error) {
	var subscribers []models.Subscriber
	err := g.GetDB(tx).Where("notifications_enabled = ?", true).Find(&subscribers).Error
	return subscribers, err
}
