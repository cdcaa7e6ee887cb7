package embed

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticPairs generates premium samples and their images under a fixed
// linear map, so the fit has an exact solution to recover.
func syntheticPairs(t *testing.T, n, premiumDims, localDims int) (premium, local [][]float32) {
	t.Helper()
	rng := rand.New(rand.NewSource(42))

	w := make([][]float64, localDims)
	for i := range w {
		w[i] = make([]float64, premiumDims)
		for j := range w[i] {
			w[i][j] = rng.NormFloat64()
		}
	}

	premium = make([][]float32, n)
	local = make([][]float32, n)
	for s := 0; s < n; s++ {
		p := make([]float32, premiumDims)
		for j := range p {
			p[j] = float32(rng.NormFloat64())
		}
		l := make([]float32, localDims)
		for i := 0; i < localDims; i++ {
			var sum float64
			for j := 0; j < premiumDims; j++ {
				sum += w[i][j] * float64(p[j])
			}
			l[i] = float32(sum)
		}
		premium[s] = p
		local[s] = l
	}
	return premium, local
}

func TestFitAlignment_RecoversLinearMap(t *testing.T) {
	premium, local := syntheticPairs(t, 50, 8, 4)

	a, err := FitAlignment(premium, local)
	require.NoError(t, err)
	assert.Equal(t, 8, a.InputDims())
	assert.Equal(t, 4, a.OutputDims())

	for i := range premium {
		got, err := a.Apply(premium[i])
		require.NoError(t, err)
		want := normalizeVector(append([]float32(nil), local[i]...))
		require.Len(t, got, 4)
		for j := range want {
			assert.InDelta(t, want[j], got[j], 0.01)
		}
	}
}

func TestFitAlignment_Underdetermined(t *testing.T) {
	// Fewer samples than premium dimensions still yields a usable matrix.
	premium, local := syntheticPairs(t, 4, 8, 3)

	a, err := FitAlignment(premium, local)
	require.NoError(t, err)

	got, err := a.Apply(premium[0])
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFitAlignment_InvalidSamples(t *testing.T) {
	_, err := FitAlignment(nil, nil)
	assert.Error(t, err)

	_, err = FitAlignment([][]float32{{1, 2}}, [][]float32{{1}, {2}})
	assert.Error(t, err)

	_, err = FitAlignment([][]float32{{1, 2}, {1}}, [][]float32{{1}, {2}})
	assert.Error(t, err)
}

func TestAlignment_ApplyDimensionMismatch(t *testing.T) {
	premium, local := syntheticPairs(t, 20, 6, 3)
	a, err := FitAlignment(premium, local)
	require.NoError(t, err)

	_, err = a.Apply([]float32{1, 2, 3})
	assert.Error(t, err)
}

func TestAlignment_SaveLoadRoundTrip(t *testing.T) {
	premium, local := syntheticPairs(t, 30, 6, 3)
	a, err := FitAlignment(premium, local)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "matrices", "gemini.matrix")
	require.NoError(t, a.Save(path))

	loaded, err := LoadAlignment(path)
	require.NoError(t, err)
	assert.Equal(t, a.InputDims(), loaded.InputDims())
	assert.Equal(t, a.OutputDims(), loaded.OutputDims())

	want, err := a.Apply(premium[0])
	require.NoError(t, err)
	got, err := loaded.Apply(premium[0])
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 0.0001)
	}
}

func TestLoadAlignment_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadAlignment(filepath.Join(dir, "missing.matrix"))
	assert.Error(t, err)

	truncated := filepath.Join(dir, "truncated.matrix")
	require.NoError(t, os.WriteFile(truncated, []byte{1, 0}, 0o644))
	_, err = LoadAlignment(truncated)
	assert.Error(t, err)

	// Valid header, missing values
	short := filepath.Join(dir, "short.matrix")
	require.NoError(t, os.WriteFile(short, []byte{2, 0, 0, 0, 2, 0, 0, 0, 0xff}, 0o644))
	_, err = LoadAlignment(short)
	assert.Error(t, err)

	// Negative shape
	bad := filepath.Join(dir, "bad.matrix")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xff, 0xff, 0xff, 1, 0, 0, 0}, 0o644))
	_, err = LoadAlignment(bad)
	assert.Error(t, err)
}
