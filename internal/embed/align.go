package embed

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// Alignment maps vectors from a premium embedding space into the local
// space: local = W * premium. W is fit by least squares on paired samples
// and persisted per backend as a little-endian float32 tensor.
type Alignment struct {
	w *mat.Dense // localDims x premiumDims
}

// FitAlignment fits the premium-to-local mapping on paired samples. Each
// premium[i] must correspond to local[i]. At least as many samples as
// premium dimensions give a well-posed fit; fewer fall back to the
// pseudoinverse solution.
func FitAlignment(premium, local [][]float32) (*Alignment, error) {
	if len(premium) == 0 || len(premium) != len(local) {
		return nil, fmt.Errorf("alignment fit needs equal, non-empty sample sets (got %d premium, %d local)",
			len(premium), len(local))
	}

	n := len(premium)
	dp := len(premium[0])
	dl := len(local[0])
	if dp == 0 || dl == 0 {
		return nil, fmt.Errorf("alignment fit got empty vectors")
	}

	p := mat.NewDense(n, dp, nil)
	l := mat.NewDense(n, dl, nil)
	for i := 0; i < n; i++ {
		if len(premium[i]) != dp || len(local[i]) != dl {
			return nil, fmt.Errorf("inconsistent vector dimensions in sample %d", i)
		}
		for j, v := range premium[i] {
			p.Set(i, j, float64(v))
		}
		for j, v := range local[i] {
			l.Set(i, j, float64(v))
		}
	}

	// Least squares P*X = L. Rank-deficient systems go through the
	// Moore-Penrose pseudoinverse.
	var x mat.Dense
	if err := x.Solve(p, l); err != nil {
		pinv, pinvErr := pseudoInverse(p)
		if pinvErr != nil {
			return nil, fmt.Errorf("alignment fit failed: %w", pinvErr)
		}
		x.Mul(pinv, l)
	}

	var w mat.Dense
	w.CloneFrom(x.T())
	return &Alignment{w: &w}, nil
}

// pseudoInverse computes the Moore-Penrose pseudoinverse via thin SVD.
func pseudoInverse(a *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, fmt.Errorf("svd factorization failed")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)
	if len(s) == 0 {
		return nil, fmt.Errorf("svd returned no singular values")
	}

	tol := 1e-12 * s[0]
	inv := make([]float64, len(s))
	for i, sv := range s {
		if sv > tol {
			inv[i] = 1 / sv
		}
	}

	var tmp mat.Dense
	tmp.Mul(&v, mat.NewDiagDense(len(inv), inv))
	var pinv mat.Dense
	pinv.Mul(&tmp, u.T())
	return &pinv, nil
}

// InputDims is the premium-space dimension the matrix accepts.
func (a *Alignment) InputDims() int {
	_, cols := a.w.Dims()
	return cols
}

// OutputDims is the local-space dimension the matrix produces.
func (a *Alignment) OutputDims() int {
	rows, _ := a.w.Dims()
	return rows
}

// Apply maps a premium-space vector into local space and normalizes it.
func (a *Alignment) Apply(premium []float32) ([]float32, error) {
	rows, cols := a.w.Dims()
	if len(premium) != cols {
		return nil, fmt.Errorf("alignment expects %d dimensions, got %d", cols, len(premium))
	}

	p := mat.NewVecDense(cols, nil)
	for i, v := range premium {
		p.SetVec(i, float64(v))
	}

	var out mat.VecDense
	out.MulVec(a.w, p)

	local := make([]float32, rows)
	for i := range local {
		local[i] = float32(out.AtVec(i))
	}
	return normalizeVector(local), nil
}

// Save writes the matrix as little-endian int32 rows, int32 cols, then
// row-major float32 values, atomically via tmp+rename.
func (a *Alignment) Save(path string) error {
	rows, cols := a.w.Dims()

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int32(rows)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, int32(cols)); err != nil {
		return err
	}
	data := make([]float32, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data = append(data, float32(a.w.At(i, j)))
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, data); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create alignment directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write alignment matrix: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize alignment matrix: %w", err)
	}
	return nil
}

// LoadAlignment reads a matrix saved by Save.
func LoadAlignment(path string) (*Alignment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alignment matrix: %w", err)
	}

	r := bytes.NewReader(raw)
	var rows, cols int32
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return nil, fmt.Errorf("failed to read alignment header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
		return nil, fmt.Errorf("failed to read alignment header: %w", err)
	}
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid alignment matrix shape %dx%d", rows, cols)
	}

	data := make([]float32, int(rows)*int(cols))
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("failed to read alignment values: %w", err)
	}

	w := mat.NewDense(int(rows), int(cols), nil)
	for i := 0; i < int(rows); i++ {
		for j := 0; j < int(cols); j++ {
			w.Set(i, j, float64(data[i*int(cols)+j]))
		}
	}
	return &Alignment{w: w}, nil
}
