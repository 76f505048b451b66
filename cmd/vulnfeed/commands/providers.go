package commands

import (
	"github.com/l3montree-dev/vulnfeed/config"
	"github.com/l3montree-dev/vulnfeed/daemons"
	"github.com/l3montree-dev/vulnfeed/database"
	"github.com/l3montree-dev/vulnfeed/database/repositories"
	"github.com/l3montree-dev/vulnfeed/evidence"
	"github.com/l3montree-dev/vulnfeed/notify"
	"github.com/l3montree-dev/vulnfeed/services"
	"github.com/l3montree-dev/vulnfeed/shared"
	"github.com/l3montree-dev/vulnfeed/vulndb"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"
)

// app bundles the wired pipeline collaborators for the commands.
type app struct {
	cfg config.Config
	db  shared.DB

	cveRepository     shared.CveRepository
	cweRepository     shared.CweRepository
	exploitRepository shared.ExploitEvidenceRepository
	projectRepository shared.AffectedProjectEvidenceRepository

	feed    *vulndb.FeedService
	matcher *evidence.Matcher
	runner  *daemons.Runner
}

func buildApp(cmd *cobra.Command) (*app, error) {
	shared.LoadConfig() // nolint: errcheck

	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, errors.Wrap(err, "could not load config")
	}

	pool := database.NewPgxConnPool(database.GetPoolConfigFromEnv())
	db := database.NewGormDB(pool)

	cveRepository := repositories.NewCVERepository(db)
	cweRepository := repositories.NewCWERepository(db)
	exploitRepository := repositories.NewExploitEvidenceRepository(db)
	projectRepository := repositories.NewAffectedProjectEvidenceRepository(db)
	subscriberRepository := repositories.NewSubscriberRepository(db)
	deliveryRepository := repositories.NewDeliveryRepository(db)
	configService := services.NewConfigService(db)

	feed, err := vulndb.NewFeedService(cfg.FeedBaseURL, cfg.FeedAPIKey, cfg.FeedRetryWindow)
	if err != nil {
		return nil, errors.Wrap(err, "could not create feed service")
	}

	var matcher *evidence.Matcher
	if cfg.SearchToken != "" {
		searchClient := evidence.NewGithubSearchClient(cfg.SearchToken)
		matcher = evidence.NewMatcher(searchClient, cveRepository, exploitRepository, projectRepository, cfg.EvidenceMaxCandidates)
	}

	var messenger notify.Messenger = notify.NewLogMessenger()
	if cfg.SlackToken != "" {
		messenger = notify.NewSlackMessenger(cfg.SlackToken)
	}
	notifier := notify.NewNotifier(messenger, subscriberRepository, deliveryRepository, cfg.NotifyOn)

	runner := daemons.NewRunner(feed, cveRepository, cweRepository, matcher, notifier, configService, cfg.PollInterval, cfg.EvidenceConcurrency)

	return &app{
		cfg:               cfg,
		db:                db,
		cveRepository:     cveRepository,
		cweRepository:     cweRepository,
		exploitRepository: exploitRepository,
		projectRepository: projectRepository,
		feed:              feed,
		matcher:           matcher,
		runner:            runner,
	}, nil
}
