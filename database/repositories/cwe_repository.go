package repositories

import (
	"github.com/l3montree-dev/vulnfeed/database"
	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/shared"
	"github.com/l3montree-dev/vulnfeed/utils"
	"gorm.io/gorm/clause"
)

type cweRepository struct {
	db shared.DB
	*database.GormRepository[string, models.CWE]
}

func NewCWERepository(db shared.DB) *cweRepository {
	if err := db.AutoMigrate(&models.CWE{}); err != nil {
		panic(err)
	}
	return &cweRepository{
		db:             db,
		GormRepository: database.NewGormRepository[string, models.CWE](db),
	}
}

// SaveBatch keeps the weakness catalog current. Already-known classifications
// are refreshed rather than duplicated.
func (g *cweRepository) SaveBatch(tx shared.DB, cwes []models.CWE) error {
	// a single statement must not touch the same key twice
	cwes = utils.DeduplicateSlice(cwes, func(c models.CWE) string { return c.CWE })
	if len(cwes) == 0 {
		return nil
	}
	return g.GetDB(tx).Clauses(clause.OnConflict{
		UpdateAll: true,
	}).CreateInBatches(&cwes, 100).Error
}
