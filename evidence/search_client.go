package evidence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/l3montree-dev/vulnfeed/database/models"
	"golang.org/x/oauth2"
)

var (
	// ErrSearchRateLimited marks an exhausted search-source quota. The
	// affected vulnerability's evidence step is skipped for this cycle and
	// retried on the next one.
	ErrSearchRateLimited = errors.New("search source rate limited")
	// ErrSearchUnavailable marks any other search-source failure. Same
	// handling: best effort, never fatal to the pipeline.
	ErrSearchUnavailable = errors.New("search source unavailable")
)

// PoCCandidate is a proof-of-concept artifact found on the code hosting
// source: either a whole repository or a single file inside one.
type PoCCandidate struct {
	URL        string
	Kind       models.ExploitEvidenceKind
	Stars      int
	LastCommit *time.Time
}

// ProjectCandidate is a repository that declares the searched product as a
// dependency, together with the manifest fragment the declaration was found
// in.
type ProjectCandidate struct {
	RepositoryID    string
	URL             string
	Language        string
	Snippet         string
	DeclaredVersion string
}

type SearchClient interface {
	SearchPoC(ctx context.Context, cveID string) ([]PoCCandidate, error)
	SearchDependents(ctx context.Context, vendor, product string) ([]ProjectCandidate, error)
}

// manifest files the dependent search inspects for declared versions
var manifestFiles = []string{"go.mod", "package.json", "requirements.txt", "pom.xml"}

type githubSearchClient struct {
	client *github.Client
}

func NewGithubSearchClient(token string) SearchClient {
	httpClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	))
	httpClient.Transport = newCacheTransport(httpClient.Transport, 512, 30*time.Minute)
	return &githubSearchClient{
		client: github.NewClient(httpClient),
	}
}

func (g *githubSearchClient) SearchPoC(ctx context.Context, cveID string) ([]PoCCandidate, error) {
	candidates := []PoCCandidate{}

	repos, _, err := g.client.Search.Repositories(ctx, fmt.Sprintf("%q in:name,description,readme", cveID), &github.SearchOptions{
		Sort:        "stars",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: 30},
	})
	if err != nil {
		return nil, classifySearchError(err)
	}
	for _, repo := range repos.Repositories {
		candidate := PoCCandidate{
			URL:   repo.GetHTMLURL(),
			Kind:  models.ExploitEvidenceRepository,
			Stars: repo.GetStargazersCount(),
		}
		if pushed := repo.GetPushedAt(); !pushed.IsZero() {
			t := pushed.Time
			candidate.LastCommit = &t
		}
		candidates = append(candidates, candidate)
	}

	code, _, err := g.client.Search.Code(ctx, fmt.Sprintf("%q in:file", cveID), &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 30},
	})
	if err != nil {
		// repository results alone are still useful evidence
		return candidates, nil
	}
	for _, result := range code.CodeResults {
		candidates = append(candidates, PoCCandidate{
			URL:  result.GetHTMLURL(),
			Kind: models.ExploitEvidenceFile,
		})
	}

	return candidates, nil
}

func (g *githubSearchClient) SearchDependents(ctx context.Context, vendor, product string) ([]ProjectCandidate, error) {
	candidates := []ProjectCandidate{}

	for _, manifest := range manifestFiles {
		query := fmt.Sprintf("%q in:file filename:%s", product, manifest)
		results, _, err := g.client.Search.Code(ctx, query, &github.SearchOptions{
			TextMatch:   true,
			ListOptions: github.ListOptions{PerPage: 30},
		})
		if err != nil {
			return nil, classifySearchError(err)
		}

		for _, result := range results.CodeResults {
			repo := result.GetRepository()
			if repo == nil {
				continue
			}
			snippet, version := declarationFromTextMatches(result.TextMatches, product)
			if version == "" {
				continue
			}
			candidates = append(candidates, ProjectCandidate{
				RepositoryID:    repo.GetFullName(),
				URL:             repo.GetHTMLURL(),
				Language:        repo.GetLanguage(),
				Snippet:         snippet,
				DeclaredVersion: version,
			})
		}
	}

	return candidates, nil
}

// versionTokenRe finds a version-looking token after the product name inside
// a manifest fragment, e.g. `"widget": "^1.4.2"` or `acme/widget v1.4.2`.
var versionTokenRe = `[^0-9]{0,16}v?([0-9]+(?:\.[0-9]+){1,2}(?:[-+][0-9A-Za-z.-]+)?)`

func declarationFromTextMatches(matches []*github.TextMatch, product string) (snippet, version string) {
	re, err := regexp.Compile(regexp.QuoteMeta(product) + versionTokenRe)
	if err != nil {
		return "", ""
	}
	for _, match := range matches {
		fragment := match.GetFragment()
		if groups := re.FindStringSubmatch(fragment); groups != nil {
			return fragment, groups[1]
		}
	}
	return "", ""
}

func classifySearchError(err error) error {
	var rateLimit *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &rateLimit) || errors.As(err, &abuse) {
		return fmt.Errorf("%w: %s", ErrSearchRateLimited, err)
	}
	return fmt.Errorf("%w: %s", ErrSearchUnavailable, err)
}
