// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package repositories

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/l3montree-dev/vulnfeed/database"
	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/shared"
	"github.com/l3montree-dev/vulnfeed/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// storeConflictRetries bounds how often an apply is retried when two writers
// race on the same identifier. The primary key constraint serializes them;
// the loser simply re-reads and re-applies.
const storeConflictRetries = 3

type cveRepository struct {
	db shared.DB
	*database.GormRepository[string, models.CVE]
}

func NewCVERepository(db shared.DB) *cveRepository {
	// the CWE catalog must exist before the weakness join table references it
	if err := db.AutoMigrate(
		&models.CVE{},
		&models.CWE{},
		&models.Weakness{},
		&models.AffectedComponent{},
		&models.CVEReference{},
	); err != nil {
		panic(err)
	}

	return &cveRepository{
		db:             db,
		GormRepository: database.NewGormRepository[string, models.CVE](db),
	}
}

func (g *cveRepository) FindByID(tx shared.DB, id string) (models.CVE, error) {
	var cve models.CVE
	err := g.GetDB(tx).
		Preload("AffectedComponents").
		Preload("References").
		First(&cve, "cve = ?", id).Error
	return cve, err
}

// GetLastModDate returns the maximum feed modification timestamp in the
// store. It seeds the watermark when no persisted one exists yet.
func (g *cveRepository) GetLastModDate() (time.Time, error) {
	var cve models.CVE
	err := g.db.Order("date_last_modified desc").First(&cve).Error
	return cve.DateLastModified, err
}

// Apply writes one normalized feed record under the single-writer-per-
// identifier discipline. It returns whether the record was inserted, updated
// (with the set of changed fields) or a no-op because the feed replayed a
// revision we already hold.
func (g *cveRepository) Apply(tx shared.DB, cve *models.CVE, weaknesses []models.Weakness, components []models.AffectedComponent, refs []models.CVEReference) (shared.UpsertOutcome, error) {
	var outcome shared.UpsertOutcome
	var err error

	for attempt := 0; attempt <= storeConflictRetries; attempt++ {
		outcome, err = g.applyOnce(tx, cve, weaknesses, components, refs)
		if err == nil {
			return outcome, nil
		}
		if !database.IsDuplicateKeyError(err) {
			return outcome, err
		}
		slog.Debug("store conflict while applying record, retrying", "cve", cve.CVE, "attempt", attempt+1)
	}

	return outcome, errors.Wrapf(err, "store conflict on %s not resolved after %d retries", cve.CVE, storeConflictRetries)
}

func (g *cveRepository) applyOnce(tx shared.DB, cve *models.CVE, weaknesses []models.Weakness, components []models.AffectedComponent, refs []models.CVEReference) (shared.UpsertOutcome, error) {
	outcome := shared.UpsertOutcome{Kind: shared.OutcomeUnchanged}

	err := g.GetDB(tx).Transaction(func(tx *gorm.DB) error {
		var existing models.CVE
		err := tx.First(&existing, "cve = ?", cve.CVE).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(cve).Error; err != nil {
				return err
			}
			if err := insertChildren(tx, weaknesses, components, refs); err != nil {
				return err
			}
			outcome = shared.UpsertOutcome{Kind: shared.OutcomeInserted}
			return nil
		}
		if err != nil {
			return err
		}

		// feed replays must be cheap no-ops
		if !cve.DateLastModified.After(existing.DateLastModified) {
			return nil
		}

		var existingRefs []models.CVEReference
		if err := tx.Find(&existingRefs, "cve_id = ?", cve.CVE).Error; err != nil {
			return err
		}

		changed := diffChangedFields(existing, *cve, existingRefs, refs)

		// the timestamp guard keeps a concurrent writer that already applied
		// a newer revision from being overwritten with our older one
		res := tx.Model(&models.CVE{}).
			Where("cve = ? AND date_last_modified < ?", cve.CVE, cve.DateLastModified).
			Updates(map[string]any{
				"date_published":     cve.DatePublished,
				"date_last_modified": cve.DateLastModified,
				"description":        cve.Description,
				"cvss":               cve.CVSS,
				"severity":           cve.Severity,
				"vector":             cve.Vector,
				"cvss_v2":            cve.CVSSV2,
				"severity_v2":        cve.SeverityV2,
				"vector_v2":          cve.VectorV2,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// a concurrent writer won with an equal or newer revision
			return nil
		}

		// child rows are never independently durable: replace the whole set
		// under the same transaction as the parent update
		if err := deleteChildren(tx, cve.CVE); err != nil {
			return err
		}
		if err := insertChildren(tx, weaknesses, components, refs); err != nil {
			return err
		}

		outcome = shared.UpsertOutcome{Kind: shared.OutcomeUpdated, ChangedFields: changed}
		return nil
	})

	return outcome, err
}

func insertChildren(tx *gorm.DB, weaknesses []models.Weakness, components []models.AffectedComponent, refs []models.CVEReference) error {
	weaknesses = utils.DeduplicateSlice(weaknesses, func(w models.Weakness) string { return w.CWEID })
	if len(weaknesses) > 0 {
		if err := tx.CreateInBatches(&weaknesses, 100).Error; err != nil {
			return err
		}
	}
	if len(components) > 0 {
		if err := tx.CreateInBatches(&components, 100).Error; err != nil {
			return err
		}
	}
	if len(refs) > 0 {
		if err := tx.CreateInBatches(&refs, 100).Error; err != nil {
			return err
		}
	}
	return nil
}

func deleteChildren(tx *gorm.DB, cveID string) error {
	if err := tx.Delete(&models.Weakness{}, "cve_id = ?", cveID).Error; err != nil {
		return err
	}
	if err := tx.Delete(&models.AffectedComponent{}, "cve_id = ?", cveID).Error; err != nil {
		return err
	}
	return tx.Delete(&models.CVEReference{}, "cve_id = ?", cveID).Error
}

// diffChangedFields compares the stored revision against the incoming one
// and names the notification-relevant fields that differ.
func diffChangedFields(old, updated models.CVE, oldRefs, newRefs []models.CVEReference) []shared.ChangedField {
	changed := []shared.ChangedField{}

	if !floatPtrEqual(old.CVSS, updated.CVSS) || !floatPtrEqual(old.CVSSV2, updated.CVSSV2) {
		changed = append(changed, shared.ChangedFieldScore)
	}
	if old.Severity != updated.Severity || old.SeverityV2 != updated.SeverityV2 {
		changed = append(changed, shared.ChangedFieldSeverity)
	}
	if old.Description != updated.Description {
		changed = append(changed, shared.ChangedFieldDescription)
	}
	if referenceFingerprint(oldRefs) != referenceFingerprint(newRefs) {
		changed = append(changed, shared.ChangedFieldReferences)
	}

	return changed
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// referenceFingerprint canonicalizes a reference set so that ordering does
// not matter for the comparison.
func referenceFingerprint(refs []models.CVEReference) string {
	entries := make([]string, 0, len(refs))
	for _, ref := range refs {
		tags := make([]string, len(ref.Tags))
		copy(tags, ref.Tags)
		sort.Strings(tags)
		entries = append(entries, ref.URL+"|"+ref.Source+"|"+strings.Join(tags, ","))
	}
	sort.Strings(entries)
	return strings.Join(entries, "\n")
}

// SetExploitEvidenceState persists the derived exploit evidence flag and
// count. It reports whether the vulnerability just transitioned from no
// known evidence to some, which is the notification-worthy event.
func (g *cveRepository) SetExploitEvidenceState(tx shared.DB, cveID string, count int) (bool, error) {
	var existing models.CVE
	if err := g.GetDB(tx).Select("cve", "has_exploit_evidence").First(&existing, "cve = ?", cveID).Error; err != nil {
		return false, err
	}

	transitioned := !existing.HasExploitEvidence && count > 0

	err := g.GetDB(tx).Model(&models.CVE{}).Where("cve = ?", cveID).Updates(map[string]any{
		"has_exploit_evidence":   count > 0,
		"exploit_evidence_count": count,
	}).Error

	return transitioned, err
}
