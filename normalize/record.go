// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/utils"
	"github.com/l3montree-dev/vulnfeed/vulndb"
	gocvss31 "github.com/pandatix/go-cvss/31"
)

// ErrRecordInvalid marks a raw record that cannot be normalized (missing
// identifier, unparseable timestamp). Permanent for that record: it is
// logged with the offending identifier and skipped, never aborting a cycle.
var ErrRecordInvalid = errors.New("record invalid")

// NormalizedRecord is the canonical shape of one feed record, ready for the
// upsert engine. Child rows carry the parent identifier already.
type NormalizedRecord struct {
	CVE        models.CVE
	CWEs       []models.CWE
	Weaknesses []models.Weakness
	Components []models.AffectedComponent
	References []models.CVEReference
}

// Record maps a raw feed record into the canonical vulnerability shape. It
// is a pure function: no I/O, no clock besides parsing the feed's own
// timestamps.
func Record(raw vulndb.FeedVulnerability) (NormalizedRecord, error) {
	if raw.ID == "" {
		return NormalizedRecord{}, fmt.Errorf("%w: missing identifier", ErrRecordInvalid)
	}

	published, err := parseFeedTime(raw.Published)
	if err != nil {
		return NormalizedRecord{}, fmt.Errorf("%w: %s has unparseable published timestamp %q", ErrRecordInvalid, raw.ID, raw.Published)
	}
	lastModified, err := parseFeedTime(raw.LastModified)
	if err != nil {
		return NormalizedRecord{}, fmt.Errorf("%w: %s has unparseable lastModified timestamp %q", ErrRecordInvalid, raw.ID, raw.LastModified)
	}

	description := ""
	for _, d := range raw.Descriptions {
		if d.Lang == "en" {
			description = d.Value
			break
		}
	}

	cve := models.CVE{
		CVE:              raw.ID,
		DatePublished:    published,
		DateLastModified: lastModified,
		Description:      description,
	}
	applyScorings(&cve, raw)

	cwes, weaknesses := weaknessesFromRaw(raw)
	components := componentsFromRaw(raw)
	references := referencesFromRaw(raw)

	return NormalizedRecord{
		CVE:        cve,
		CWEs:       cwes,
		Weaknesses: weaknesses,
		Components: components,
		References: references,
	}, nil
}

func parseFeedTime(s string) (time.Time, error) {
	return time.Parse(utils.ISO8601Format, s)
}

// applyScorings copies both optional scorings verbatim. The severity band is
// only derived from the numeric score when the feed did not supply one, and
// a missing numeric score is re-derived from the vector when possible.
func applyScorings(cve *models.CVE, raw vulndb.FeedVulnerability) {
	if len(raw.Metrics.CvssMetricV31) > 0 {
		m := raw.Metrics.CvssMetricV31[0]
		cve.Vector = m.CvssData.VectorString
		cve.CVSS = m.CvssData.BaseScore
		if cve.CVSS == nil && m.CvssData.VectorString != "" {
			if parsed, err := gocvss31.ParseVector(m.CvssData.VectorString); err == nil {
				cve.CVSS = utils.Ptr(parsed.BaseScore())
			}
		}
		if m.CvssData.BaseSeverity != "" {
			cve.Severity = models.Severity(strings.ToLower(m.CvssData.BaseSeverity))
		} else if cve.CVSS != nil {
			cve.Severity = models.SeverityFromScore(*cve.CVSS)
		}
	}

	if len(raw.Metrics.CvssMetricV2) > 0 {
		m := raw.Metrics.CvssMetricV2[0]
		cve.VectorV2 = m.CvssData.VectorString
		cve.CVSSV2 = m.CvssData.BaseScore
		if m.BaseSeverity != "" {
			cve.SeverityV2 = models.Severity(strings.ToLower(m.BaseSeverity))
		} else if cve.CVSSV2 != nil {
			cve.SeverityV2 = models.SeverityFromScore(*cve.CVSSV2)
		}
	}
}

func weaknessesFromRaw(raw vulndb.FeedVulnerability) ([]models.CWE, []models.Weakness) {
	cwes := []models.CWE{}
	weaknesses := []models.Weakness{}

	for _, w := range raw.Weaknesses {
		for _, d := range w.Description {
			// the feed ships other weakness taxonomies too, only CWEs are kept
			if d.Lang != "en" || !strings.HasPrefix(d.Value, "CWE-") {
				continue
			}
			cwes = append(cwes, models.CWE{CWE: d.Value})
			weaknesses = append(weaknesses, models.Weakness{
				CVEID:  raw.ID,
				CWEID:  d.Value,
				Source: w.Source,
			})
		}
	}

	return cwes, weaknesses
}

func componentsFromRaw(raw vulndb.FeedVulnerability) []models.AffectedComponent {
	components := []models.AffectedComponent{}

	for _, configuration := range raw.Configurations {
		for _, node := range configuration.Nodes {
			if node.Negate {
				continue
			}
			for _, match := range node.CpeMatch {
				if !match.Vulnerable {
					continue
				}
				vendor, product, version, ok := ParseCPE(match.Criteria)
				if !ok {
					continue
				}
				components = append(components, models.AffectedComponent{
					CVEID:                 raw.ID,
					Vendor:                vendor,
					Product:               product,
					Version:               version,
					VersionStartIncluding: utils.EmptyThenNil(match.VersionStartIncluding),
					VersionEndIncluding:   utils.EmptyThenNil(match.VersionEndIncluding),
					VersionEndExcluding:   utils.EmptyThenNil(match.VersionEndExcluding),
				})
			}
		}
	}

	return components
}

func referencesFromRaw(raw vulndb.FeedVulnerability) []models.CVEReference {
	refs := make([]models.CVEReference, 0, len(raw.References))
	for _, r := range raw.References {
		refs = append(refs, models.CVEReference{
			CVEID:  raw.ID,
			URL:    r.URL,
			Source: r.Source,
			Tags:   r.Tags,
		})
	}
	return refs
}
