// Package trackerscrape is a client library for the BitTorrent tracker
// "scrape" protocol. Given a set of info hashes and a set of tracker
// endpoints addressable by URL, it concurrently queries every (hash,
// tracker) pair over HTTP(S) or UDP (BEP 15) and returns, per hash, the
// list of tracker responses carrying seeder, leecher and download counts.
//
// The library discovers no peers, opens no peer connections, and persists
// no state between calls; each call is a self-contained fan-out.
package trackerscrape

import (
	"context"

	"github.com/driftwood-labs/trackerscrape/scheduler"
)

// ScrapeInfoHashes asks every tracker in trackers about every hash in
// hexHashes (the cartesian product) and returns a ScrapeResult with one key
// per input hash. A tracker that fails for a given call contributes nothing
// to any hash's list; the call itself only fails synchronously if a hash is
// not a valid 40-character hex info hash.
func ScrapeInfoHashes(ctx context.Context, hexHashes []string, trackers []string, opts ...Option) (ScrapeResult, error) {
	hashes, err := parseInfoHashes(hexHashes)
	if err != nil {
		return nil, err
	}

	cfg := applyOptions(opts)
	sched := newScheduler(cfg)

	rawHashes := toRaw(hashes)
	res := sched.ScrapeAll(ctx, rawHashes, trackers, toHex)
	return fromSchedulerResult(res), nil
}

// BatchScrapeItem is one (hash, trackers) pair for BatchScrapeInfoHashes.
type BatchScrapeItem struct {
	InfoHash string
	Trackers []string
}

// BatchScrapeInfoHashes scrapes each hash only against its associated
// trackers: every tracker named in items is queried exactly once, with the
// subset of hashes that named it.
func BatchScrapeInfoHashes(ctx context.Context, items []BatchScrapeItem, opts ...Option) (ScrapeResult, error) {
	batchItems := make([]scheduler.BatchItem, len(items))
	for i, item := range items {
		h, err := ParseInfoHash(item.InfoHash)
		if err != nil {
			return nil, err
		}
		batchItems[i] = scheduler.BatchItem{Hash: scheduler.InfoHash(h), Trackers: item.Trackers}
	}

	cfg := applyOptions(opts)
	sched := newScheduler(cfg)

	res := sched.ScrapeBatch(ctx, batchItems, toHex)
	return fromSchedulerResult(res), nil
}

func parseInfoHashes(hexHashes []string) ([]InfoHash, error) {
	hashes := make([]InfoHash, len(hexHashes))
	for i, hexHash := range hexHashes {
		h, err := ParseInfoHash(hexHash)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	return hashes, nil
}

func toRaw(hashes []InfoHash) []scheduler.InfoHash {
	raw := make([]scheduler.InfoHash, len(hashes))
	for i, h := range hashes {
		raw[i] = scheduler.InfoHash(h)
	}
	return raw
}

func toHex(raw scheduler.InfoHash) string {
	return InfoHash(raw).String()
}

func newScheduler(cfg *config) *scheduler.Scheduler {
	return scheduler.New(scheduler.Config{
		Logger:            cfg.logger,
		HTTPTimeout:       cfg.httpTimeout,
		PerScrapeTimeout:  cfg.perScrapeTimeout,
		MaxConcurrency:    cfg.maxConcurrency,
		UDPRetryPolicy:    cfg.udpRetryPolicy,
		UDPConnectTimeout: cfg.udpConnectTimeout,
	})
}

func fromSchedulerResult(res scheduler.Result) ScrapeResult {
	out := make(ScrapeResult, len(res))
	for hex, stats := range res {
		list := make([]TrackerStats, len(stats))
		for i, s := range stats {
			list[i] = TrackerStats{
				TrackerURL: s.TrackerURL,
				Seeders:    s.Seeders,
				Peers:      s.Peers,
				Complete:   s.Complete,
			}
		}
		out[hex] = list
	}
	return out
}
