package vm

// SiteStats holds the counters of one site.
type SiteStats struct {
	Name      string    `cbor:"name"`
	State     SiteState `cbor:"state"`
	Hits      uint64    `cbor:"hits"`
	Misses    uint64    `cbor:"misses"`
	Rewrites  int64     `cbor:"rewrites"`
	Fallbacks int64     `cbor:"fallbacks"`
}

// HitRate returns the hit rate as a percentage (0-100).
func (s SiteStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) * 100 / float64(total)
}

// StatsSource is anything that reports SiteStats.
type StatsSource interface {
	Stats() SiteStats
}

// AggregateStats summarizes many sites.
type AggregateStats struct {
	TotalSites    int     // Sites inspected
	Uninitialized int     // Sites with nothing cached
	Cached        int     // Sites holding a specialization
	Generic       int     // Sites that gave up caching
	TotalHits     uint64  // Total cache hits
	TotalMisses   uint64  // Total slow-path calls
	HitRate       float64 // Overall hit rate percentage
	CachedRate    float64 // Percentage of used sites that are Cached
}

// CollectSiteStats gathers statistics from sites.
func CollectSiteStats(sites ...StatsSource) AggregateStats {
	var agg AggregateStats
	used := 0
	for _, src := range sites {
		st := src.Stats()
		agg.TotalSites++
		switch st.State {
		case StateUninitialized:
			agg.Uninitialized++
		case StateCached:
			agg.Cached++
		case StateGeneric:
			agg.Generic++
		}
		if st.Hits+st.Misses > 0 {
			used++
		}
		agg.TotalHits += st.Hits
		agg.TotalMisses += st.Misses
	}

	if total := agg.TotalHits + agg.TotalMisses; total > 0 {
		agg.HitRate = float64(agg.TotalHits) * 100 / float64(total)
	}
	if used > 0 {
		agg.CachedRate = float64(agg.Cached) * 100 / float64(used)
	}
	return agg
}
