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

package vulndb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/l3montree-dev/vulnfeed/utils"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// the feed allows 5 requests per 30 seconds without an api key
const unauthenticatedInterval = 6 * time.Second
const authenticatedInterval = time.Second

// the feed rejects modification windows wider than 120 days; we use 119 to
// stay clear of the limit
const maxModWindow = 119 * 24 * time.Hour

// how many malformed pages we skip over in a single cycle before giving up
const maxMalformedSkips = 10

type FeedService struct {
	httpClient  *http.Client
	baseURL     url.URL
	apiKey      string
	limiter     *rate.Limiter
	retryWindow time.Duration
}

func NewFeedService(baseURL string, apiKey string, retryWindow time.Duration) (*FeedService, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse feed base url")
	}

	interval := unauthenticatedInterval
	if apiKey != "" {
		interval = authenticatedInterval
	}

	return &FeedService{
		baseURL: *u,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 3, // only allow 3 concurrent connections to the same host
			},
		},
		retryWindow: retryWindow,
	}, nil
}

// FetchPage fetches one page of records modified inside the [since, until]
// window. Pagination is cursor-based: cursor is the start index of the page,
// and the returned page carries the next cursor and whether more pages exist.
// A zero since fetches the whole feed without a window.
func (s *FeedService) FetchPage(ctx context.Context, since, until time.Time, cursor int) (Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Page{}, err
	}

	u := s.baseURL
	q := u.Query()
	q.Set("startIndex", fmt.Sprint(cursor))
	if !since.IsZero() {
		if until.IsZero() {
			until = time.Now()
		}
		q.Set("lastModStartDate", since.Format(utils.ISO8601Format))
		q.Set("lastModEndDate", until.Format(utils.ISO8601Format))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, errors.Wrap(err, "could not create feed request")
	}
	if s.apiKey != "" {
		req.Header.Set("apiKey", s.apiKey)
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Page{}, ctx.Err()
		}
		return Page{}, errors.Wrapf(ErrFeedUnavailable, "request failed: %s", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusForbidden:
		// the feed answers 403 instead of 429 when the rolling window is
		// exhausted, treat both as rate limiting
		return Page{}, &RateLimitError{RetryAfter: retryAfter(res)}
	case res.StatusCode >= 500:
		return Page{}, errors.Wrapf(ErrFeedUnavailable, "status code %d", res.StatusCode)
	case res.StatusCode != http.StatusOK:
		return Page{}, errors.Wrapf(ErrFeedMalformed, "unexpected status code %d", res.StatusCode)
	}

	var resp feedResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return Page{}, errors.Wrapf(ErrFeedMalformed, "could not decode page at cursor %d: %s", cursor, err)
	}
	if resp.ResultsPerPage == 0 && resp.TotalResults > cursor {
		return Page{}, errors.Wrapf(ErrFeedMalformed, "empty page at cursor %d with %d total results", cursor, resp.TotalResults)
	}

	records := make([]FeedVulnerability, 0, len(resp.Vulnerabilities))
	for _, v := range resp.Vulnerabilities {
		records = append(records, v.Cve)
	}

	next := cursor + resp.ResultsPerPage
	return Page{
		Records:    records,
		NextCursor: next,
		HasMore:    next < resp.TotalResults,
	}, nil
}

// ForEachPage consumes the feed sequentially from the watermark on - pages
// must be processed in order so the caller can track the watermark
// correctly. Watermarks older than the feed's maximum modification window
// are walked in bounded slices. Transient errors are retried with
// exponential backoff and jitter, bounded by the retry window; a malformed
// page is logged, skipped and the iteration continues with the next cursor.
func (s *FeedService) ForEachPage(ctx context.Context, since time.Time, fn func(page Page) error) error {
	if since.IsZero() {
		return s.forEachPageInWindow(ctx, time.Time{}, time.Time{}, fn)
	}

	now := time.Now()
	until := utils.MinTime(now, since.Add(maxModWindow))
	for since.Before(now) {
		if err := s.forEachPageInWindow(ctx, since, until, fn); err != nil {
			return err
		}
		since = until
		until = utils.MinTime(now, until.Add(maxModWindow))
	}
	return nil
}

func (s *FeedService) forEachPageInWindow(ctx context.Context, since, until time.Time, fn func(page Page) error) error {
	cursor := 0
	deadline := time.Now().Add(s.retryWindow)
	try := 0
	malformedSkips := 0

	for {
		page, err := s.FetchPage(ctx, since, until, cursor)

		var rateLimited *RateLimitError
		switch {
		case err == nil:
			try = 0
		case errors.As(err, &rateLimited):
			if time.Now().After(deadline) {
				return err
			}
			delay := rateLimited.RetryAfter
			if delay == 0 {
				delay = backoff(try)
			}
			try++
			slog.Warn("feed rate limited, backing off", "delay", delay, "cursor", cursor)
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			continue
		case errors.Is(err, ErrFeedUnavailable):
			if time.Now().After(deadline) {
				return err
			}
			delay := backoff(try)
			try++
			slog.Warn("feed unavailable, backing off", "delay", delay, "cursor", cursor, "err", err)
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			continue
		case errors.Is(err, ErrFeedMalformed):
			malformedSkips++
			if malformedSkips > maxMalformedSkips {
				return errors.Wrapf(err, "giving up after %d malformed pages", maxMalformedSkips)
			}
			slog.Error("skipping malformed feed page", "cursor", cursor, "err", err)
			// we do not know the real page size here, advance by one record
			// to make progress; the next successful page resynchronizes
			cursor++
			try = 0
			continue
		default:
			return err
		}

		if err := fn(page); err != nil {
			return err
		}

		if !page.HasMore {
			return nil
		}
		cursor = page.NextCursor
	}
}

func retryAfter(res *http.Response) time.Duration {
	if v := res.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

func backoff(try int) time.Duration {
	// quadratic backoff with up to 10s of jitter, capped at 2 minutes
	sleep := time.Duration(try*try)*time.Second + time.Duration(rand.Intn(10))*time.Second // nolint:gosec
	if sleep > 2*time.Minute {
		return 2 * time.Minute
	}
	if sleep == 0 {
		sleep = time.Second
	}
	return sleep
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
