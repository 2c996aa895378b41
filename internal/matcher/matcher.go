// Package matcher scores sequence records against the species catalog.
// The scoring is a placeholder heuristic standing in for a real
// sequence aligner or classifier; the interface (record in, best match
// or none out, deterministic for a fixed random source) is the contract
// a replacement must keep.
package matcher

import (
	"math/rand"

	"github.com/oceansense/edna-go/internal/datastore"
	"github.com/oceansense/edna-go/internal/fasta"
)

// Scoring constants. The random base simulates classifier uncertainty,
// the bonuses reward sequences that look plausible for the candidate's
// taxonomy.
const (
	baseScoreMin = 0.5
	baseScoreMax = 0.8

	gcBandBonus       = 0.1
	ampliconBonus     = 0.05
	ampliconMinLength = 200
	ampliconMaxLength = 1000
	maxConfidence     = 0.95
	DefaultScoreFloor = 0.6
)

// gcBand is an exclusive reference band of plausible GC content for a
// species category.
type gcBand struct {
	low, high float64
}

// gcReferenceBands maps species categories to their GC reference bands.
// Categories without a band never receive the GC bonus.
var gcReferenceBands = map[string]gcBand{
	datastore.CategoryFish:  {0.45, 0.55},
	datastore.CategoryCoral: {0.38, 0.48},
	datastore.CategoryAlgae: {0.35, 0.45},
}

// Match is an accepted species match for one sequence record.
type Match struct {
	Species    datastore.Species
	Confidence float64
}

// Matcher scores sequence records against a fixed species catalog.
type Matcher struct {
	catalog []datastore.Species
	rng     *rand.Rand
	floor   float64
}

// New creates a matcher over the given catalog. The random source is
// injectable so tests can pin outcomes; pass rand.NewSource(seed).
func New(catalog []datastore.Species, source rand.Source, floor float64) *Matcher {
	if floor <= 0 {
		floor = DefaultScoreFloor
	}
	return &Matcher{
		catalog: catalog,
		rng:     rand.New(source), //nolint:gosec // heuristic scoring, not security sensitive
		floor:   floor,
	}
}

// BestMatch scores the record against every catalog entry and returns
// the highest-scoring candidate above the confidence floor. Ties are
// broken by catalog order, first encountered wins, which keeps results
// deterministic for a fixed random source. The second return value is
// false when no candidate clears the floor.
func (m *Matcher) BestMatch(record *fasta.Record) (Match, bool) {
	var best Match
	found := false

	for i := range m.catalog {
		score := m.score(record, &m.catalog[i])
		if score <= m.floor {
			continue
		}
		// Strict greater-than keeps the first encountered on ties.
		if !found || score > best.Confidence {
			best = Match{Species: m.catalog[i], Confidence: score}
			found = true
		}
	}

	return best, found
}

// score computes the heuristic confidence for one candidate.
func (m *Matcher) score(record *fasta.Record, species *datastore.Species) float64 {
	score := baseScoreMin + m.rng.Float64()*(baseScoreMax-baseScoreMin)

	if band, ok := gcReferenceBands[species.Category]; ok {
		gc := record.GCContent()
		if gc > band.low && gc < band.high {
			score += gcBandBonus
		}
	}

	length := record.Length()
	if length >= ampliconMinLength && length <= ampliconMaxLength {
		score += ampliconBonus
	}

	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}
