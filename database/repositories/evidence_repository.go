// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package repositories

import (
	"github.com/google/uuid"
	"github.com/l3montree-dev/vulnfeed/database"
	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/shared"
	"gorm.io/gorm/clause"
)

type exploitEvidenceRepository struct {
	db shared.DB
	*database.GormRepository[uuid.UUID, models.ExploitEvidence]
}

func NewExploitEvidenceRepository(db shared.DB) *exploitEvidenceRepository {
	if err := db.AutoMigrate(&models.ExploitEvidence{}); err != nil {
		panic(err)
	}
	return &exploitEvidenceRepository{
		db:             db,
		GormRepository: database.NewGormRepository[uuid.UUID, models.ExploitEvidence](db),
	}
}

// UpsertByURL inserts new proof-of-concept evidence or refreshes the
// popularity and recency signals when the same URL was seen before. The
// conflict target is the (cve, url) unique index, so concurrent matcher
// workers never race on the same key.
func (g *exploitEvidenceRepository) UpsertByURL(tx shared.DB, evidence *models.ExploitEvidence) error {
	if err := evidence.Validate(); err != nil {
		return err
	}
	return g.GetDB(tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cve_id"}, {Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stars", "last_commit", "updated_at",
		}),
	}).Create(evidence).Error
}

func (g *exploitEvidenceRepository) CountForCVE(tx shared.DB, cveID string) (int64, error) {
	var count int64
	err := g.GetDB(tx).Model(&models.ExploitEvidence{}).Where("cve_id = ?", cveID).Count(&count).Error
	return count, err
}

type affectedProjectEvidenceRepository struct {
	db shared.DB
	*database.GormRepository[uuid.UUID, models.AffectedProjectEvidence]
}

func NewAffectedProjectEvidenceRepository(db shared.DB) *affectedProjectEvidenceRepository {
	if err := db.AutoMigrate(&models.AffectedProjectEvidence{}); err != nil {
		panic(err)
	}
	return &affectedProjectEvidenceRepository{
		db:             db,
		GormRepository: database.NewGormRepository[uuid.UUID, models.AffectedProjectEvidence](db),
	}
}

// UpsertByRepository suppresses duplicate matches for the same
// (vulnerability, repository) pair. A later search that found stronger
// evidence replaces the snippet and matched version instead of appending.
func (g *affectedProjectEvidenceRepository) UpsertByRepository(tx shared.DB, evidence *models.AffectedProjectEvidence) error {
	return g.GetDB(tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cve_id"}, {Name: "repository_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"evidence_snippet", "matched_version", "language", "discovered_at",
		}),
	}).Create(evidence).Error
}
