package dedup

import (
	"github.com/rs/zerolog"

	"market-news-lab/internal/domain"
)

// DefaultSimilarityThreshold merges titles scoring at or above this value.
const DefaultSimilarityThreshold = 0.85

// Result holds the surviving items plus the explainable merge record.
type Result struct {
	Kept         []domain.RawItem
	RemovedCount int
	Clusters     []domain.DedupCluster
}

// Deduplicator runs the three stages in order, so exact duplicates are
// never reported as similarity clusters.
type Deduplicator struct {
	threshold  float64
	similarity Similarity
	log        zerolog.Logger
}

// Options configures a Deduplicator. Zero values get defaults.
type Options struct {
	SimilarityThreshold float64
	Similarity          Similarity
	Logger              zerolog.Logger
}

// New creates a Deduplicator.
func New(opts Options) *Deduplicator {
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if opts.Similarity == nil {
		opts.Similarity = SimHash{}
	}
	return &Deduplicator{
		threshold:  opts.SimilarityThreshold,
		similarity: opts.Similarity,
		log:        opts.Logger,
	}
}

// Deduplicate reduces items through the three stages, preserving
// first-occurrence order among the kept items.
func (d *Deduplicator) Deduplicate(items []domain.RawItem) Result {
	if len(items) == 0 {
		return Result{}
	}

	original := len(items)
	var clusters []domain.DedupCluster

	items, urlClusters := d.urlDedup(items)
	clusters = append(clusters, urlClusters...)
	d.log.Debug().Int("items", len(items)).Msg("after url dedup")

	items, hashClusters := d.hashDedup(items)
	clusters = append(clusters, hashClusters...)
	d.log.Debug().Int("items", len(items)).Msg("after hash dedup")

	items, simClusters := d.similarityDedup(items)
	clusters = append(clusters, simClusters...)
	d.log.Debug().Int("items", len(items)).Msg("after similarity dedup")

	removed := original - len(items)
	d.log.Info().
		Int("original", original).
		Int("kept", len(items)).
		Int("removed", removed).
		Int("clusters", len(clusters)).
		Msg("deduplication completed")

	return Result{Kept: items, RemovedCount: removed, Clusters: clusters}
}

// urlDedup keeps the first item per canonical URL.
func (d *Deduplicator) urlDedup(items []domain.RawItem) ([]domain.RawItem, []domain.DedupCluster) {
	seen := make(map[string]int) // canonical url -> index into kept
	var kept []domain.RawItem
	dupes := make(map[string][]string) // canonical url -> member urls

	for _, item := range items {
		canonical := CanonicalizeURL(item.URL)
		if idx, ok := seen[canonical]; ok {
			if _, started := dupes[canonical]; !started {
				dupes[canonical] = []string{kept[idx].URL}
			}
			dupes[canonical] = append(dupes[canonical], item.URL)
			continue
		}
		seen[canonical] = len(kept)
		kept = append(kept, item)
	}

	var clusters []domain.DedupCluster
	for _, urls := range dupes {
		clusters = append(clusters, domain.DedupCluster{
			RepresentativeURL: urls[0],
			MemberURLs:        urls[1:],
			Method:            domain.DedupURLExact,
		})
	}
	return kept, clusters
}

// hashDedup keeps the first item per content hash.
func (d *Deduplicator) hashDedup(items []domain.RawItem) ([]domain.RawItem, []domain.DedupCluster) {
	seen := make(map[string]int)
	var kept []domain.RawItem
	dupes := make(map[string][]string)

	for _, item := range items {
		hash := ContentHash(&item)
		if idx, ok := seen[hash]; ok {
			if _, started := dupes[hash]; !started {
				dupes[hash] = []string{kept[idx].URL}
			}
			dupes[hash] = append(dupes[hash], item.URL)
			continue
		}
		seen[hash] = len(kept)
		kept = append(kept, item)
	}

	var clusters []domain.DedupCluster
	for _, urls := range dupes {
		clusters = append(clusters, domain.DedupCluster{
			RepresentativeURL: urls[0],
			MemberURLs:        urls[1:],
			Method:            domain.DedupHashMatch,
		})
	}
	return kept, clusters
}

// similarityDedup merges remaining items whose normalized titles score at
// or above the threshold. Earlier items win.
func (d *Deduplicator) similarityDedup(items []domain.RawItem) ([]domain.RawItem, []domain.DedupCluster) {
	if len(items) <= 1 {
		return items, nil
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = NormalizeTitle(item.Title)
	}

	removed := make(map[int]bool)
	var kept []domain.RawItem
	var clusters []domain.DedupCluster

	for i := range items {
		if removed[i] {
			continue
		}

		members := []string{items[i].URL}
		for j := i + 1; j < len(items); j++ {
			if removed[j] || titles[i] == "" || titles[j] == "" {
				continue
			}
			if d.similarity.Score(titles[i], titles[j]) >= d.threshold {
				members = append(members, items[j].URL)
				removed[j] = true
			}
		}

		kept = append(kept, items[i])
		if len(members) > 1 {
			score := d.threshold
			clusters = append(clusters, domain.DedupCluster{
				RepresentativeURL: members[0],
				MemberURLs:        members[1:],
				Method:            domain.DedupSimilarity,
				SimilarityScore:   &score,
			})
		}
	}
	return kept, clusters
}
