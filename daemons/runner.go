// Copyright (C) 2026 l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package daemons

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/l3montree-dev/vulnfeed/evidence"
	"github.com/l3montree-dev/vulnfeed/monitoring"
	"github.com/l3montree-dev/vulnfeed/normalize"
	"github.com/l3montree-dev/vulnfeed/notify"
	"github.com/l3montree-dev/vulnfeed/shared"
	"github.com/l3montree-dev/vulnfeed/utils"
	"github.com/l3montree-dev/vulnfeed/vulndb"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const watermarkKey = "feed.watermark"

// CycleSummary is the outcome of one full ingestion cycle.
type CycleSummary struct {
	Seen           int
	Inserted       int
	Updated        int
	Unchanged      int
	Invalid        int
	ExploitMatches int
	ProjectMatches int
	EvidenceSkips  int
	Notifications  int
}

// Runner drives the ingestion pipeline: fetch, normalize, upsert, enrich,
// notify. At most one cycle runs at a time; triggers arriving during a cycle
// coalesce into a single follow-up run.
type Runner struct {
	feed                *vulndb.FeedService
	cveRepository       shared.CveRepository
	cweRepository       shared.CweRepository
	matcher             *evidence.Matcher
	notifier            *notify.Notifier
	configService       shared.ConfigService
	interval            time.Duration
	evidenceConcurrency int

	trigger chan struct{}
}

func NewRunner(feed *vulndb.FeedService, cveRepository shared.CveRepository, cweRepository shared.CweRepository, matcher *evidence.Matcher, notifier *notify.Notifier, configService shared.ConfigService, interval time.Duration, evidenceConcurrency int) *Runner {
	if evidenceConcurrency <= 0 {
		evidenceConcurrency = 1
	}
	return &Runner{
		feed:                feed,
		cveRepository:       cveRepository,
		cweRepository:       cweRepository,
		matcher:             matcher,
		notifier:            notifier,
		configService:       configService,
		interval:            interval,
		evidenceConcurrency: evidenceConcurrency,
		trigger:             make(chan struct{}, 1),
	}
}

// Trigger requests a cycle outside the regular cadence. Requests arriving
// while a cycle is running or already pending collapse into one.
func (r *Runner) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Start blocks until the context is canceled, running one cycle immediately
// and then on every tick or trigger. A failed cycle is logged and retried on
// the next occasion, it never stops the loop.
func (r *Runner) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Trigger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.trigger:
		}

		summary, err := r.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("ingestion cycle failed", "err", err)
			continue
		}
		slog.Info("ingestion cycle finished",
			"seen", summary.Seen,
			"inserted", summary.Inserted,
			"updated", summary.Updated,
			"unchanged", summary.Unchanged,
			"invalid", summary.Invalid,
			"exploitMatches", summary.ExploitMatches,
			"projectMatches", summary.ProjectMatches,
			"notifications", summary.Notifications)
	}
}

// pipelineItem is one mutated vulnerability queued for enrichment and
// notification after the feed pass.
type pipelineItem struct {
	record  normalize.NormalizedRecord
	outcome shared.UpsertOutcome
}

// RunCycle executes one full pass over the feed. The watermark only
// advances when the whole cycle, including every upsert, succeeded, so a
// crashed cycle is simply replayed; the upsert engine makes the replay
// idempotent.
func (r *Runner) RunCycle(ctx context.Context) (CycleSummary, error) {
	begin := time.Now()
	defer func() {
		monitoring.CycleDuration.Observe(time.Since(begin).Seconds())
	}()

	summary := CycleSummary{}

	since, err := r.loadWatermark()
	if err != nil {
		return summary, err
	}
	slog.Info("starting ingestion cycle", "since", since)

	items := []pipelineItem{}
	highWater := since

	err = r.feed.ForEachPage(ctx, since, func(page vulndb.Page) error {
		for _, raw := range page.Records {
			summary.Seen++
			monitoring.RecordsSeen.Inc()

			record, err := normalize.Record(raw)
			if err != nil {
				summary.Invalid++
				monitoring.PipelineErrors.WithLabelValues("record_invalid").Inc()
				slog.Warn("skipping invalid feed record", "id", raw.ID, "err", err)
				continue
			}

			if len(record.CWEs) > 0 {
				if err := r.cweRepository.SaveBatch(nil, record.CWEs); err != nil {
					return errors.Wrap(err, "could not save weakness catalog entries")
				}
			}

			outcome, err := r.cveRepository.Apply(nil, &record.CVE, record.Weaknesses, record.Components, record.References)
			if err != nil {
				monitoring.PipelineErrors.WithLabelValues("store").Inc()
				return errors.Wrapf(err, "could not apply %s", record.CVE.CVE)
			}
			monitoring.UpsertOutcomes.WithLabelValues(string(outcome.Kind)).Inc()

			switch outcome.Kind {
			case shared.OutcomeInserted:
				summary.Inserted++
			case shared.OutcomeUpdated:
				summary.Updated++
			default:
				summary.Unchanged++
			}

			highWater = utils.MaxTime(highWater, record.CVE.DateLastModified)
			if outcome.Mutated() {
				items = append(items, pipelineItem{record: record, outcome: outcome})
			}
		}
		return nil
	})
	if err != nil {
		return summary, err
	}

	if err := r.enrichAndNotify(ctx, items, &summary); err != nil {
		return summary, err
	}

	if highWater.After(since) {
		if err := r.storeWatermark(highWater); err != nil {
			return summary, err
		}
		monitoring.WatermarkTimestamp.Set(float64(highWater.Unix()))
	}
	return summary, nil
}

// enrichAndNotify runs the evidence matcher over all mutated vulnerabilities
// with bounded concurrency and fans the resulting changes out to the
// subscribers. Search-source failures skip the affected vulnerability, store
// failures abort the cycle.
func (r *Runner) enrichAndNotify(ctx context.Context, items []pipelineItem, summary *CycleSummary) error {
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.evidenceConcurrency)

	for _, item := range items {
		group.Go(func() error {
			outcome := item.outcome

			if r.matcher != nil {
				result, err := r.matcher.Enrich(groupCtx, item.record.CVE, item.record.Components)
				switch {
				case err == nil:
					mu.Lock()
					summary.ExploitMatches += result.ExploitMatches
					summary.ProjectMatches += result.ProjectMatches
					mu.Unlock()
					monitoring.EvidenceMatches.WithLabelValues("exploit").Add(float64(result.ExploitMatches))
					monitoring.EvidenceMatches.WithLabelValues("project").Add(float64(result.ProjectMatches))
					if result.Transitioned {
						outcome.ChangedFields = append(outcome.ChangedFields, shared.ChangedFieldEvidence)
					}
				case errors.Is(err, evidence.ErrSearchRateLimited), errors.Is(err, evidence.ErrSearchUnavailable):
					mu.Lock()
					summary.EvidenceSkips++
					mu.Unlock()
					monitoring.PipelineErrors.WithLabelValues("search").Inc()
					slog.Warn("skipping evidence enrichment", "cve", item.record.CVE.CVE, "err", err)
				default:
					return err
				}
			}

			// re-read so the payload carries the enriched evidence state
			current, err := r.cveRepository.FindByID(nil, item.record.CVE.CVE)
			if err != nil {
				return errors.Wrapf(err, "could not reload %s for notification", item.record.CVE.CVE)
			}

			sent, err := r.notifier.Notify(groupCtx, current, outcome)
			if err != nil {
				return errors.Wrapf(err, "could not notify for %s", current.CVE)
			}
			mu.Lock()
			summary.Notifications += sent
			mu.Unlock()
			monitoring.NotificationsSent.Add(float64(sent))
			return nil
		})
	}

	return group.Wait()
}

// loadWatermark reads the persisted ingestion watermark. A store that never
// ran a cycle is seeded from the newest stored vulnerability so a fresh
// deployment on an existing database does not re-fetch everything.
func (r *Runner) loadWatermark() (time.Time, error) {
	var watermark struct {
		LastModified time.Time `json:"lastModified"`
	}

	err := r.configService.GetJSONConfig(watermarkKey, &watermark)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, errors.Wrap(err, "could not load watermark")
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || watermark.LastModified.IsZero() {
		lastMod, err := r.cveRepository.GetLastModDate()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// empty store, start from the very beginning of the feed
			return time.Time{}, nil
		}
		if err != nil {
			return time.Time{}, errors.Wrap(err, "could not derive watermark from store")
		}
		slog.Info("no watermark found, seeding from store", "lastModified", lastMod)
		return lastMod, nil
	}
	return watermark.LastModified, nil
}

func (r *Runner) storeWatermark(t time.Time) error {
	return r.configService.SetJSONConfig(watermarkKey, struct {
		LastModified time.Time `json:"lastModified"`
	}{LastModified: t})
}
