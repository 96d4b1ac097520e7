package dedup

import (
	"hash/fnv"
	"strings"
)

// Similarity scores two normalized titles in [0, 1].
type Similarity interface {
	// Score returns 1 for identical titles and approaches 0 as they diverge.
	Score(a, b string) float64
	// Name identifies the implementation for logs and config.
	Name() string
}

// SimHash is a 64-bit locality-sensitive hash over title tokens.
// Similarity between two titles is 1 - hamming_distance/64.
type SimHash struct{}

// Name implements Similarity.
func (SimHash) Name() string { return "simhash" }

// Score implements Similarity.
func (SimHash) Score(a, b string) float64 {
	ha := simhash(a)
	hb := simhash(b)
	dist := hammingDistance(ha, hb)
	return 1 - float64(dist)/64
}

// simhash folds FNV-1a hashes of each token into a 64-bit signature:
// each token votes +1/-1 per bit position, positive totals set the bit.
func simhash(text string) uint64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}

	var weights [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for bit := 0; bit < 64; bit++ {
			if sum&(1<<uint(bit)) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	var sig uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			sig |= 1 << uint(bit)
		}
	}
	return sig
}

func hammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}

// Jaccard scores titles by token-set overlap: |A∩B| / |A∪B|.
// Fallback for when SimHash is not wanted.
type Jaccard struct{}

// Name implements Similarity.
func (Jaccard) Name() string { return "jaccard" }

// Score implements Similarity.
func (Jaccard) Score(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(text) {
		set[tok] = struct{}{}
	}
	return set
}

// NewSimilarity returns the implementation named by kind, defaulting to
// SimHash for unknown values.
func NewSimilarity(kind string) Similarity {
	if strings.EqualFold(kind, "jaccard") {
		return Jaccard{}
	}
	return SimHash{}
}

// Verify interface compliance at compile time.
var (
	_ Similarity = SimHash{}
	_ Similarity = Jaccard{}
)
