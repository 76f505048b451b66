package repositories

import (
	"github.com/l3montree-dev/vulnfeed/database"
	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/shared"
)

type configRepository struct {
	db shared.DB
	*database.GormRepository[string, models.Config]
}

func NewConfigRepository(db shared.DB) *configRepository {
	if err := db.AutoMigrate(&models.Config{}); err != nil {
		panic(err)
	}
	return &configRepository{
		db:             db,
		GormRepository: database.NewGormRepository[string, models.Config](db),
	}
}
