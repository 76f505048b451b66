package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewEvidenceCommand() *cobra.Command {
	evidenceCmd := &cobra.Command{
		Use:   "evidence <cve-id>",
		Short: "Enrich a single vulnerability with exploit and affected-project evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			if app.matcher == nil {
				return errors.New("no search token configured, set VULNFEED_SEARCH_TOKEN")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cveID := strings.ToUpper(args[0])
			cve, err := app.cveRepository.FindByID(nil, cveID)
			if err != nil {
				return errors.Wrapf(err, "could not load %s", cveID)
			}

			result, err := app.matcher.Enrich(ctx, cve, cve.AffectedComponents)
			if err != nil {
				return errors.Wrapf(err, "could not enrich %s", cveID)
			}
			slog.Info("evidence enrichment finished",
				"cve", cveID,
				"exploitMatches", result.ExploitMatches,
				"projectMatches", result.ProjectMatches,
				"transitioned", result.Transitioned)
			return nil
		},
	}
	return evidenceCmd
}
