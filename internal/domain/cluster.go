package domain

// DedupMethod identifies which dedup stage merged a cluster.
type DedupMethod string

const (
	DedupURLExact   DedupMethod = "url_exact"
	DedupHashMatch  DedupMethod = "hash_match"
	DedupSimilarity DedupMethod = "similarity"
)

// String returns the string representation of DedupMethod.
func (m DedupMethod) String() string {
	return string(m)
}

// DedupCluster records which items were merged and by which method.
// Purely observational; corresponds to the dedup_clusters table.
type DedupCluster struct {
	ID                int64
	RunID             string
	RepresentativeURL string   // URL of the kept item
	MemberURLs        []string // URLs of the merged-away items
	Method            DedupMethod
	SimilarityScore   *float64 // set only for similarity clusters
}
