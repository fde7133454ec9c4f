package similar

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/cratedig/cratedig/analysis"
	"github.com/cratedig/cratedig/batch"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"scaled", []float64{1, 2, 3}, []float64{2, 4, 6}, 1.0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0.0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

// seedTrack writes a dummy audio file and caches a result with the given
// feature vector split into 20 MFCC + 12 chroma values
func seedTrack(t *testing.T, cache *batch.Cache, dir, name string, vec []float64, camelot string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}

	result := &analysis.Result{
		FilePath: path,
		Filename: name,
		Key:      analysis.KeyResult{Camelot: camelot},
		Energy:   analysis.DefaultEnergy(),
	}
	if vec != nil {
		result.Features = &analysis.Features{MFCC: vec[:20], Chroma: vec[20:]}
	}
	if err := cache.Save(path, result); err != nil {
		t.Fatalf("cache save: %v", err)
	}
	return path
}

// basisVector is a 32-dim vector with a single 1.0 at index i
func basisVector(i int) []float64 {
	vec := make([]float64, 32)
	vec[i] = 1.0
	return vec
}

func TestFindSimilarRanking(t *testing.T) {
	dir := t.TempDir()
	cache, err := batch.NewCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	query := seedTrack(t, cache, dir, "query.mp3", basisVector(0), "8A")

	same := seedTrack(t, cache, dir, "same.mp3", basisVector(0), "8A")
	ortho := seedTrack(t, cache, dir, "ortho.mp3", basisVector(5), "3B")

	opposite := make([]float64, 32)
	opposite[0] = -1.0
	opp := seedTrack(t, cache, dir, "opp.mp3", opposite, "")

	noVec := seedTrack(t, cache, dir, "novec.mp3", nil, "1A")

	idx := NewIndex(cache)
	matches := idx.FindSimilar(query, []string{opp, noVec, ortho, same, query}, 10)

	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3 (query and vectorless skipped): %+v", len(matches), matches)
	}

	// identical 1.0, orthogonal 0.5, opposite 0.0 after rescaling
	if matches[0].FilePath != same || matches[0].Similarity != 1.0 {
		t.Errorf("matches[0] = %+v, want %s at 1.0", matches[0], same)
	}
	if matches[1].FilePath != ortho || matches[1].Similarity != 0.5 {
		t.Errorf("matches[1] = %+v, want %s at 0.5", matches[1], ortho)
	}
	if matches[2].FilePath != opp || matches[2].Similarity != 0.0 {
		t.Errorf("matches[2] = %+v, want %s at 0.0", matches[2], opp)
	}

	if matches[0].Name != "same" {
		t.Errorf("Name = %q, want extension stripped", matches[0].Name)
	}
	if matches[0].Key != "8A" {
		t.Errorf("Key = %q, want 8A", matches[0].Key)
	}
	if matches[2].Key != "--" {
		t.Errorf("Key = %q, want -- for unknown key", matches[2].Key)
	}
}

func TestFindSimilarTopN(t *testing.T) {
	dir := t.TempDir()
	cache, err := batch.NewCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	query := seedTrack(t, cache, dir, "query.mp3", basisVector(0), "8A")

	var candidates []string
	for i := 1; i <= 8; i++ {
		name := "c" + string(rune('0'+i)) + ".mp3"
		candidates = append(candidates, seedTrack(t, cache, dir, name, basisVector(i), "8A"))
	}

	matches := NewIndex(cache).FindSimilar(query, candidates, 3)
	if len(matches) != 3 {
		t.Errorf("got %d matches, want topN = 3", len(matches))
	}

	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Errorf("matches not sorted descending: %+v", matches)
		}
	}
}

func TestFindSimilarUncachedQuery(t *testing.T) {
	dir := t.TempDir()
	cache, err := batch.NewCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	candidate := seedTrack(t, cache, dir, "c.mp3", basisVector(1), "8A")

	matches := NewIndex(cache).FindSimilar(filepath.Join(dir, "unknown.mp3"), []string{candidate}, 5)
	if matches != nil {
		t.Errorf("got %+v, want nil for uncached query", matches)
	}
}
