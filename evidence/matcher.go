// Copyright 2026 l3montree GmbH.
// SPDX-License-Identifier: 	AGPL-3.0-or-later

package evidence

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/normalize"
	"github.com/l3montree-dev/vulnfeed/shared"
)

// Result summarizes a single vulnerability's enrichment step.
type Result struct {
	ExploitMatches int
	ProjectMatches int
	// Transitioned is true when this step moved the vulnerability from zero
	// exploit evidence to some. The caller raises it as a changed field so
	// the notifier can react to it.
	Transitioned bool
}

// Matcher enriches vulnerabilities with exploit and affected-project
// evidence from an external code search source. Enrichment is best effort:
// a search failure skips the vulnerability for the current cycle and never
// aborts the pipeline.
type Matcher struct {
	client            SearchClient
	cveRepository     shared.CveRepository
	exploitRepository shared.ExploitEvidenceRepository
	projectRepository shared.AffectedProjectEvidenceRepository
	maxCandidates     int
}

func NewMatcher(client SearchClient, cveRepository shared.CveRepository, exploitRepository shared.ExploitEvidenceRepository, projectRepository shared.AffectedProjectEvidenceRepository, maxCandidates int) *Matcher {
	if maxCandidates <= 0 {
		maxCandidates = 10
	}
	return &Matcher{
		client:            client,
		cveRepository:     cveRepository,
		exploitRepository: exploitRepository,
		projectRepository: projectRepository,
		maxCandidates:     maxCandidates,
	}
}

// Enrich searches the code hosting source for proof-of-concept code and for
// repositories depending on an affected component version, and persists what
// it finds. Re-discovered evidence refreshes its signals in place. The
// context is checked between candidates so shutdown stays prompt.
func (m *Matcher) Enrich(ctx context.Context, cve models.CVE, components []models.AffectedComponent) (Result, error) {
	result := Result{}

	// without affected components there is nothing to match search results
	// against, so no query is issued at all
	if len(components) == 0 {
		return result, nil
	}

	exploitMatches, err := m.enrichExploits(ctx, cve)
	if err != nil {
		return result, err
	}
	result.ExploitMatches = exploitMatches

	count, err := m.exploitRepository.CountForCVE(nil, cve.CVE)
	if err != nil {
		return result, err
	}
	transitioned, err := m.cveRepository.SetExploitEvidenceState(nil, cve.CVE, int(count))
	if err != nil {
		return result, err
	}
	result.Transitioned = transitioned

	projectMatches, err := m.enrichAffectedProjects(ctx, cve, components)
	if err != nil {
		return result, err
	}
	result.ProjectMatches = projectMatches

	return result, nil
}

func (m *Matcher) enrichExploits(ctx context.Context, cve models.CVE) (int, error) {
	candidates, err := m.client.SearchPoC(ctx, cve.CVE)
	if err != nil {
		return 0, err
	}

	rankPoCCandidates(candidates)
	if len(candidates) > m.maxCandidates {
		candidates = candidates[:m.maxCandidates]
	}

	matches := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return matches, err
		}
		evidence := models.ExploitEvidence{
			CVEID:      cve.CVE,
			URL:        candidate.URL,
			Kind:       candidate.Kind,
			Stars:      candidate.Stars,
			LastCommit: candidate.LastCommit,
		}
		if err := m.exploitRepository.UpsertByURL(nil, &evidence); err != nil {
			slog.Warn("could not persist exploit evidence", "cve", cve.CVE, "url", candidate.URL, "err", err)
			continue
		}
		matches++
	}
	return matches, nil
}

func (m *Matcher) enrichAffectedProjects(ctx context.Context, cve models.CVE, components []models.AffectedComponent) (int, error) {
	matches := 0
	for vendorProduct, group := range groupByProduct(components) {
		if err := ctx.Err(); err != nil {
			return matches, err
		}
		candidates, err := m.client.SearchDependents(ctx, vendorProduct.vendor, vendorProduct.product)
		if err != nil {
			return matches, err
		}
		if len(candidates) > m.maxCandidates {
			candidates = candidates[:m.maxCandidates]
		}

		for _, candidate := range candidates {
			if err := ctx.Err(); err != nil {
				return matches, err
			}
			if !matchesAnyRange(candidate.DeclaredVersion, group) {
				continue
			}
			evidence := models.AffectedProjectEvidence{
				CVEID:           cve.CVE,
				RepositoryID:    candidate.RepositoryID,
				URL:             candidate.URL,
				Language:        candidate.Language,
				EvidenceSnippet: candidate.Snippet,
				MatchedVersion:  candidate.DeclaredVersion,
				DiscoveredAt:    time.Now(),
			}
			if err := m.projectRepository.UpsertByRepository(nil, &evidence); err != nil {
				slog.Warn("could not persist affected project evidence", "cve", cve.CVE, "repository", candidate.RepositoryID, "err", err)
				continue
			}
			matches++
		}
	}
	return matches, nil
}

// rankPoCCandidates orders repository candidates by popularity, then
// recency. File candidates carry neither signal and sort last.
func rankPoCCandidates(candidates []PoCCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Stars != candidates[j].Stars {
			return candidates[i].Stars > candidates[j].Stars
		}
		iCommit, jCommit := candidates[i].LastCommit, candidates[j].LastCommit
		if iCommit == nil || jCommit == nil {
			return jCommit == nil && iCommit != nil
		}
		return iCommit.After(*jCommit)
	})
}

type productKey struct {
	vendor  string
	product string
}

func groupByProduct(components []models.AffectedComponent) map[productKey][]models.AffectedComponent {
	grouped := map[productKey][]models.AffectedComponent{}
	for _, component := range components {
		key := productKey{vendor: component.Vendor, product: component.Product}
		grouped[key] = append(grouped[key], component)
	}
	return grouped
}

// matchesAnyRange reports whether the declared version falls into any of the
// affected ranges declared for a single product.
func matchesAnyRange(declared string, components []models.AffectedComponent) bool {
	for _, component := range components {
		if normalize.VersionInRange(declared, component) {
			return true
		}
	}
	return false
}
