package trackerscrape

// TrackerStats is one tracker's response for a single info hash.
//
// Seeders and Complete both derive from the on-wire "complete"/"downloaded"
// counters (HTTP scrape) or the "complete"/"downloaded" fields of a UDP
// scrape triple; the naming mismatch between the wire and this struct is
// intentional and matches the public API naming tracker clients expose.
type TrackerStats struct {
	// TrackerURL is bytewise identical to the tracker URL this record was
	// produced from.
	TrackerURL string `json:"tracker_url"`

	// Seeders is the number of complete, currently-connected downloaders.
	Seeders uint32 `json:"seeders"`

	// Peers is the number of incomplete downloaders (leechers).
	Peers uint32 `json:"peers"`

	// Complete is the cumulative count of downloads ever completed at this
	// tracker.
	Complete uint32 `json:"complete"`
}

// ScrapeResult maps a hex-encoded info hash to the list of TrackerStats
// returned by the trackers that answered successfully for that hash. A hash
// with no successful tracker maps to an empty, non-nil slice. Every input
// hash is present as a key.
type ScrapeResult map[string][]TrackerStats

// FindMaxSeeders reduces a ScrapeResult to, for each hash, the maximum
// Seeders count across its TrackerStats, or 0 if the list is empty.
func FindMaxSeeders(result ScrapeResult) map[string]uint32 {
	max := make(map[string]uint32, len(result))
	for hash, stats := range result {
		var best uint32
		for _, s := range stats {
			if s.Seeders > best {
				best = s.Seeders
			}
		}
		max[hash] = best
	}
	return max
}

// FindMaxSeeders is a convenience method equivalent to the free function of
// the same name, matching the corpus habit of attaching reducers directly
// to result types.
func (result ScrapeResult) FindMaxSeeders() map[string]uint32 {
	return FindMaxSeeders(result)
}
