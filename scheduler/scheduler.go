// Package scheduler implements the concurrent fan-out controller: grouping
// requested work by tracker endpoint, dispatching HTTP or UDP scrapes in
// parallel, and merging per-tracker results into a single ScrapeResult
// keyed by info hash.
package scheduler

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/driftwood-labs/trackerscrape/errs"
	"github.com/driftwood-labs/trackerscrape/httpclient"
	"github.com/driftwood-labs/trackerscrape/udpclient"
)

// InfoHash is the 20-byte raw representation used across package
// boundaries to avoid an import cycle with the root package's InfoHash
// type; the returned Result is keyed by the hex string produced by a
// HashToHex function.
type InfoHash = [20]byte

// Stats mirrors the root package's TrackerStats without importing it, for
// the same reason.
type Stats struct {
	TrackerURL string
	Seeders    uint32
	Peers      uint32
	Complete   uint32
}

// Result maps a hex-encoded info hash to the stats collected for it.
type Result map[string][]Stats

// Config bundles the tunables the scheduler needs from the caller; it is
// intentionally a plain struct rather than functional options since
// scheduler is an internal package wired up by the root package's options.
type Config struct {
	Logger            logrus.FieldLogger
	HTTPTimeout       time.Duration
	PerScrapeTimeout  time.Duration
	MaxConcurrency    int
	UDPRetryPolicy    udpclient.RetryPolicy
	UDPConnectTimeout time.Duration
}

// Scheduler groups and dispatches scrape work across trackers.
type Scheduler struct {
	cfg Config
}

// New creates a Scheduler with the given configuration.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Scheduler{cfg: cfg}
}

// HashToHex is supplied by the caller so scheduler need not depend on the
// root package's InfoHash formatting.
type HashToHex func(InfoHash) string

// ScrapeAll implements the cartesian-product entry point: every tracker in
// trackers is asked about every hash in hashes.
func (s *Scheduler) ScrapeAll(ctx context.Context, hashes []InfoHash, trackers []string, toHex HashToHex) Result {
	hashesByTracker := make(map[string][]InfoHash, len(trackers))
	for _, t := range trackers {
		hashesByTracker[t] = hashes
	}
	return s.dispatch(ctx, hashesByTracker, toHex, allHexKeys(hashes, toHex))
}

// ScrapeBatch implements the per-item entry point: items is a sequence of
// (hash, [trackers]) pairs, reverse-indexed into tracker -> set of hashes so
// each tracker is queried exactly once with only its associated subset.
func (s *Scheduler) ScrapeBatch(ctx context.Context, items []BatchItem, toHex HashToHex) Result {
	hashesByTracker := make(map[string][]InfoHash)
	seen := make(map[string]map[InfoHash]bool)
	var allHashes []InfoHash
	allHashesSeen := make(map[InfoHash]bool)

	for _, item := range items {
		if !allHashesSeen[item.Hash] {
			allHashesSeen[item.Hash] = true
			allHashes = append(allHashes, item.Hash)
		}
		for _, tracker := range item.Trackers {
			if seen[tracker] == nil {
				seen[tracker] = make(map[InfoHash]bool)
			}
			if seen[tracker][item.Hash] {
				continue
			}
			seen[tracker][item.Hash] = true
			hashesByTracker[tracker] = append(hashesByTracker[tracker], item.Hash)
		}
	}

	return s.dispatch(ctx, hashesByTracker, toHex, allHexKeys(allHashes, toHex))
}

// BatchItem is one (hash, trackers) pair for ScrapeBatch.
type BatchItem struct {
	Hash     InfoHash
	Trackers []string
}

func allHexKeys(hashes []InfoHash, toHex HashToHex) []string {
	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = toHex(h)
	}
	return keys
}

// dispatch spawns one task per tracker key in hashesByTracker, each
// scraping only its associated hashes, merges successful results into a
// map initialized with every key in allHexKeys, and never lets a single
// tracker's failure affect any other.
func (s *Scheduler) dispatch(ctx context.Context, hashesByTracker map[string][]InfoHash, toHex HashToHex, allHexKeysList []string) Result {
	result := make(Result, len(allHexKeysList))
	for _, k := range allHexKeysList {
		result[k] = []Stats{}
	}

	var mu sync.Mutex
	group, gctx := errgroup.WithContext(ctx)
	if s.cfg.MaxConcurrency > 0 {
		group.SetLimit(s.cfg.MaxConcurrency)
	}

	for trackerURL, hashes := range hashesByTracker {
		trackerURL, hashes := trackerURL, hashes
		group.Go(func() error {
			taskCtx, cancel := context.WithTimeout(gctx, s.cfg.PerScrapeTimeout)
			defer cancel()

			stats, err := s.scrapeOne(taskCtx, trackerURL, hashes)
			if err != nil {
				s.cfg.Logger.WithFields(logrus.Fields{
					"tracker": trackerURL,
					"err":     err,
				}).Warn("scheduler: tracker scrape failed")
				return nil // per-tracker isolation: never abort the group
			}

			mu.Lock()
			for _, st := range stats {
				hex := toHex(st.infoHash)
				result[hex] = append(result[hex], Stats{
					TrackerURL: trackerURL,
					Seeders:    st.complete,
					Peers:      st.incomplete,
					Complete:   st.downloaded,
				})
			}
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait() // tasks never return a non-nil error; errgroup's
	// first-error cancellation is therefore never triggered by a single
	// tracker's failure, matching the per-tracker isolation invariant.

	return result
}

type scrapedStat struct {
	infoHash   InfoHash
	complete   uint32
	downloaded uint32
	incomplete uint32
}

// scrapeOne dispatches to the HTTP or UDP client based on the tracker URL's
// scheme, the only dispatch key a tracker URL carries.
func (s *Scheduler) scrapeOne(ctx context.Context, trackerURL string, hashes []InfoHash) ([]scrapedStat, error) {
	u, err := url.Parse(trackerURL)
	if err != nil {
		return nil, errs.Wrapf(errs.UrlError, "scheduler: parsing %q: %v", trackerURL, err)
	}

	switch u.Scheme {
	case "http", "https":
		client := httpclient.New(s.cfg.HTTPTimeout, s.cfg.Logger)
		stats, err := client.Scrape(ctx, trackerURL, hashes)
		if err != nil {
			return nil, err
		}
		out := make([]scrapedStat, len(stats))
		for i, st := range stats {
			out[i] = scrapedStat{
				infoHash:   st.InfoHash,
				complete:   st.Complete,
				downloaded: st.Downloaded,
				incomplete: st.Incomplete,
			}
		}
		return out, nil

	case "udp":
		client, err := udpclient.New(trackerURL, s.cfg.UDPRetryPolicy, s.cfg.UDPConnectTimeout, s.cfg.Logger)
		if err != nil {
			return nil, err
		}
		stats, err := client.Scrape(ctx, hashes)
		if err != nil {
			return nil, err
		}
		out := make([]scrapedStat, len(stats))
		for i, st := range stats {
			out[i] = scrapedStat{
				infoHash:   st.InfoHash,
				complete:   st.Complete,
				downloaded: st.Downloaded,
				incomplete: st.Incomplete,
			}
		}
		return out, nil

	default:
		return nil, errs.Wrapf(errs.UrlError, "scheduler: unsupported scheme %q", u.Scheme)
	}
}
