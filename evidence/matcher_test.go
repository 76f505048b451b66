package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/l3montree-dev/vulnfeed/database/models"
	"github.com/l3montree-dev/vulnfeed/shared"
	"github.com/l3montree-dev/vulnfeed/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearchClient struct {
	pocs       []PoCCandidate
	pocErr     error
	dependents []ProjectCandidate
	depErr     error
	searches   int
}

func (f *fakeSearchClient) SearchPoC(ctx context.Context, cveID string) ([]PoCCandidate, error) {
	f.searches++
	return f.pocs, f.pocErr
}

func (f *fakeSearchClient) SearchDependents(ctx context.Context, vendor, product string) ([]ProjectCandidate, error) {
	f.searches++
	return f.dependents, f.depErr
}

type fakeCveRepository struct {
	shared.CveRepository
	hasEvidence bool
}

func (f *fakeCveRepository) SetExploitEvidenceState(tx shared.DB, cveID string, count int) (bool, error) {
	transitioned := !f.hasEvidence && count > 0
	f.hasEvidence = f.hasEvidence || count > 0
	return transitioned, nil
}

type fakeExploitRepository struct {
	upserts []models.ExploitEvidence
}

func (f *fakeExploitRepository) UpsertByURL(tx shared.DB, evidence *models.ExploitEvidence) error {
	f.upserts = append(f.upserts, *evidence)
	return nil
}

func (f *fakeExploitRepository) CountForCVE(tx shared.DB, cveID string) (int64, error) {
	return int64(len(f.upserts)), nil
}

func (f *fakeExploitRepository) GetDB(tx shared.DB) shared.DB { return nil }

type fakeProjectRepository struct {
	upserts []models.AffectedProjectEvidence
}

func (f *fakeProjectRepository) UpsertByRepository(tx shared.DB, evidence *models.AffectedProjectEvidence) error {
	f.upserts = append(f.upserts, *evidence)
	return nil
}

func (f *fakeProjectRepository) GetDB(tx shared.DB) shared.DB { return nil }

func testCVE() models.CVE {
	return models.CVE{CVE: "CVE-2026-1234"}
}

func rangedComponent() models.AffectedComponent {
	return models.AffectedComponent{
		CVEID:               "CVE-2026-1234",
		Vendor:              "acme",
		Product:             "widget",
		Version:             "-",
		VersionEndExcluding: utils.Ptr("1.4.2"),
	}
}

func TestEnrich(t *testing.T) {
	t.Run("should keep the best ranked candidates up to the cap", func(t *testing.T) {
		now := time.Now()
		client := &fakeSearchClient{pocs: []PoCCandidate{
			{URL: "https://github.com/a/poc", Kind: models.ExploitEvidenceRepository, Stars: 5},
			{URL: "https://github.com/b/poc", Kind: models.ExploitEvidenceRepository, Stars: 120, LastCommit: &now},
			{URL: "https://github.com/c/poc", Kind: models.ExploitEvidenceRepository, Stars: 30},
		}}
		exploits := &fakeExploitRepository{}
		cves := &fakeCveRepository{}
		matcher := NewMatcher(client, cves, exploits, &fakeProjectRepository{}, 2)

		result, err := matcher.Enrich(context.Background(), testCVE(), []models.AffectedComponent{rangedComponent()})
		require.NoError(t, err)

		assert.Equal(t, 2, result.ExploitMatches)
		require.Len(t, exploits.upserts, 2)
		assert.Equal(t, "https://github.com/b/poc", exploits.upserts[0].URL)
		assert.Equal(t, "https://github.com/c/poc", exploits.upserts[1].URL)
	})

	t.Run("should report the transition from no evidence to some", func(t *testing.T) {
		client := &fakeSearchClient{pocs: []PoCCandidate{
			{URL: "https://github.com/a/poc", Kind: models.ExploitEvidenceRepository, Stars: 1},
		}}
		cves := &fakeCveRepository{}
		matcher := NewMatcher(client, cves, &fakeExploitRepository{}, &fakeProjectRepository{}, 10)

		result, err := matcher.Enrich(context.Background(), testCVE(), []models.AffectedComponent{rangedComponent()})
		require.NoError(t, err)
		assert.True(t, result.Transitioned)

		// second discovery of the same evidence is not a transition anymore
		result, err = matcher.Enrich(context.Background(), testCVE(), []models.AffectedComponent{rangedComponent()})
		require.NoError(t, err)
		assert.False(t, result.Transitioned)
	})

	t.Run("should propagate search failures without touching the store", func(t *testing.T) {
		client := &fakeSearchClient{pocErr: ErrSearchRateLimited}
		exploits := &fakeExploitRepository{}
		matcher := NewMatcher(client, &fakeCveRepository{}, exploits, &fakeProjectRepository{}, 10)

		_, err := matcher.Enrich(context.Background(), testCVE(), []models.AffectedComponent{rangedComponent()})
		assert.ErrorIs(t, err, ErrSearchRateLimited)
		assert.Empty(t, exploits.upserts)
	})

	t.Run("should only persist dependents inside the affected range", func(t *testing.T) {
		client := &fakeSearchClient{dependents: []ProjectCandidate{
			{RepositoryID: "org/safe", URL: "https://github.com/org/safe", DeclaredVersion: "2.0.0", Snippet: `widget@2.0.0`},
			{RepositoryID: "org/affected", URL: "https://github.com/org/affected", DeclaredVersion: "1.3.0", Snippet: `widget@1.3.0`},
		}}
		projects := &fakeProjectRepository{}
		matcher := NewMatcher(client, &fakeCveRepository{}, &fakeExploitRepository{}, projects, 10)

		result, err := matcher.Enrich(context.Background(), testCVE(), []models.AffectedComponent{rangedComponent()})
		require.NoError(t, err)

		assert.Equal(t, 1, result.ProjectMatches)
		require.Len(t, projects.upserts, 1)
		assert.Equal(t, "org/affected", projects.upserts[0].RepositoryID)
		assert.Equal(t, "1.3.0", projects.upserts[0].MatchedVersion)
		assert.Equal(t, "widget@1.3.0", projects.upserts[0].EvidenceSnippet)
		assert.False(t, projects.upserts[0].DiscoveredAt.IsZero())
	})

	t.Run("should stop between candidates when canceled", func(t *testing.T) {
		client := &fakeSearchClient{pocs: []PoCCandidate{
			{URL: "https://github.com/a/poc", Kind: models.ExploitEvidenceRepository},
			{URL: "https://github.com/b/poc", Kind: models.ExploitEvidenceRepository},
		}}
		exploits := &fakeExploitRepository{}
		matcher := NewMatcher(client, &fakeCveRepository{}, exploits, &fakeProjectRepository{}, 10)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := matcher.Enrich(ctx, testCVE(), []models.AffectedComponent{rangedComponent()})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, exploits.upserts)
	})

	t.Run("should not search at all without affected components", func(t *testing.T) {
		client := &fakeSearchClient{pocs: []PoCCandidate{
			{URL: "https://github.com/a/poc", Kind: models.ExploitEvidenceRepository, Stars: 1},
		}}
		exploits := &fakeExploitRepository{}
		matcher := NewMatcher(client, &fakeCveRepository{}, exploits, &fakeProjectRepository{}, 10)

		result, err := matcher.Enrich(context.Background(), testCVE(), nil)
		require.NoError(t, err)

		assert.Equal(t, 0, client.searches)
		assert.Empty(t, exploits.upserts)
		assert.Zero(t, result)
	})
}

func TestRankPoCCandidates(t *testing.T) {
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	candidates := []PoCCandidate{
		{URL: "file", Kind: models.ExploitEvidenceFile},
		{URL: "stale", Stars: 10, LastCommit: &older},
		{URL: "fresh", Stars: 10, LastCommit: &newer},
		{URL: "popular", Stars: 50},
	}

	rankPoCCandidates(candidates)

	assert.Equal(t, "popular", candidates[0].URL)
	assert.Equal(t, "fresh", candidates[1].URL)
	assert.Equal(t, "stale", candidates[2].URL)
	assert.Equal(t, "file", candidates[3].URL)
}

func textMatches(fragment string) []*github.TextMatch {
	return []*github.TextMatch{{Fragment: github.String(fragment)}}
}

func TestDeclarationFromTextMatches(t *testing.T) {
	t.Run("should extract the declared version after the product name", func(t *testing.T) {
		fragment := `"dependencies": { "widget": "^1.4.2" }`
		snippet, version := declarationFromTextMatches(textMatches(fragment), "widget")
		assert.Equal(t, fragment, snippet)
		assert.Equal(t, "1.4.2", version)
	})

	t.Run("should handle go.mod style declarations", func(t *testing.T) {
		_, version := declarationFromTextMatches(textMatches("require acme.org/widget v1.3.0"), "widget")
		assert.Equal(t, "1.3.0", version)
	})

	t.Run("should return nothing when no version follows", func(t *testing.T) {
		_, version := declarationFromTextMatches(textMatches("widget is great"), "widget")
		assert.Equal(t, "", version)
	})
}
