package similar

import (
	"math"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/cratedig/cratedig/batch"
	"github.com/cratedig/cratedig/logging"
)

// DefaultTopN is the default result count for similarity queries
const DefaultTopN = 25

// Match is one similarity result. Similarity is rescaled from cosine's
// [-1, 1] to [0, 1] and rounded to 4 decimal places.
type Match struct {
	FilePath   string   `json:"file_path"`
	Name       string   `json:"name"` // filename without extension
	Similarity float64  `json:"similarity"`
	BPM        *float64 `json:"bpm"`
	Key        string   `json:"key"` // Camelot notation, "--" when unknown
}

// Cosine computes cosine similarity between two vectors. Returns 0 when
// either norm is near zero rather than dividing by it.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA < 1e-9 || normB < 1e-9 {
		return 0.0
	}

	return floats.Dot(a, b) / (normA * normB)
}

// Index ranks tracks by feature-vector similarity. It consumes only
// persisted analysis results; it never runs the live pipeline.
type Index struct {
	cache  *batch.Cache
	logger logging.Logger
}

// NewIndex creates a similarity index over a result cache
func NewIndex(cache *batch.Cache) *Index {
	return &Index{
		cache:  cache,
		logger: logging.WithFields(logging.Fields{"component": "similarity"}),
	}
}

// FindSimilar returns the topN candidates most similar to the query
// track, sorted by similarity descending (ties keep candidate order).
// The query itself is excluded; candidates without a usable 32-dim
// feature vector are skipped silently.
func (idx *Index) FindSimilar(queryPath string, candidates []string, topN int) []Match {
	if topN <= 0 {
		topN = DefaultTopN
	}

	queryVec := idx.loadVector(queryPath)
	if queryVec == nil {
		idx.logger.Warn("query track has no cached feature vector", logging.Fields{
			"file": queryPath,
		})
		return nil
	}

	var matches []Match
	for _, path := range candidates {
		if path == queryPath {
			continue
		}

		result := idx.cache.Load(path)
		if result == nil {
			continue
		}

		vec := result.FeatureVector()
		if vec == nil {
			continue
		}

		cos := Cosine(queryVec, vec)

		key := "--"
		if result.Key.Camelot != "" {
			key = result.Key.Camelot
		}

		matches = append(matches, Match{
			FilePath:   path,
			Name:       stem(path),
			Similarity: round4((cos + 1.0) / 2.0),
			BPM:        result.BPM,
			Key:        key,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > topN {
		matches = matches[:topN]
	}

	return matches
}

func (idx *Index) loadVector(path string) []float64 {
	result := idx.cache.Load(path)
	if result == nil {
		return nil
	}
	return result.FeatureVector()
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
