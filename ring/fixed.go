package ring

import (
	"math"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/mat"
)

// Codec maps real numbers into the ring with a fixed-point encoding:
// v is stored as round(v * 2^frac) mod M, negatives as M - |x|. The mapping
// is lossy but deterministic; the representable range is
// (-M/2^(frac+1), M/2^(frac+1)) with a resolution of 2^-frac.
type Codec struct {
	Mod  uint64
	Frac uint
}

// NewCodec returns a codec over the given ring.
func NewCodec(mod uint64, frac uint) Codec {
	return Codec{Mod: mod, Frac: frac}
}

// Encode maps a real number into the ring.
func (c Codec) Encode(v float64) uint64 {
	scaled := math.Round(v * float64(uint64(1)<<c.Frac))
	if scaled >= 0 {
		return uint64(scaled) % c.Mod
	}
	return c.Mod - uint64(-scaled)%c.Mod
}

// Decode maps a ring element back to a real number, treating elements above
// M/2 as negative.
func (c Codec) Decode(x uint64) float64 {
	x %= c.Mod
	scale := float64(uint64(1) << c.Frac)
	if x > c.Mod/2 {
		return -float64(c.Mod-x) / scale
	}
	return float64(x) / scale
}

// DecodeAt decodes with an explicit scale, used after fixed-point
// multiplications which doubled the carried scale.
func (c Codec) DecodeAt(x uint64, frac uint) float64 {
	x %= c.Mod
	scale := math.Pow(2, float64(frac))
	if x > c.Mod/2 {
		return -float64(c.Mod-x) / scale
	}
	return float64(x) / scale
}

// EncodeDense maps a gonum matrix into a 2-dimensional ring tensor.
func (c Codec) EncodeDense(d *mat.Dense) *Tensor {
	rows, cols := d.Dims()
	t := New([]int{rows, cols}, c.Mod)
	t.frac = c.Frac
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			t.data[i*cols+j] = c.Encode(d.At(i, j))
		}
	}
	return t
}

// DecodeDense maps a 2-dimensional ring tensor back to a gonum matrix,
// honoring the scale carried by the tensor.
func (c Codec) DecodeDense(t *Tensor) (*mat.Dense, error) {
	if len(t.shape) != 2 {
		return nil, xerrors.Errorf("tensor of rank %d is not a matrix", len(t.shape))
	}
	rows, cols := t.shape[0], t.shape[1]
	d := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d.Set(i, j, c.DecodeAt(t.data[i*cols+j], t.frac))
		}
	}
	return d, nil
}
