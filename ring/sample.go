package ring

import (
	"crypto/rand"
	"math/big"
)

// Uniform returns a tensor whose elements are drawn independently and
// uniformly from [0, mod) using the system's cryptographic random source.
// Shares produced from this sampler are information-theoretically
// independent of the secret they hide.
func Uniform(shape []int, mod uint64) (*Tensor, error) {
	t := New(shape, mod)
	bigMod := new(big.Int).SetUint64(mod)
	for i := range t.data {
		n, err := rand.Int(rand.Reader, bigMod)
		if err != nil {
			return nil, err
		}
		t.data[i] = n.Uint64()
	}
	return t, nil
}

// UniformBound returns a tensor uniform over [0, bound), with elements
// still living in the ring modulo mod. Used for the statistically masked
// randomness of the comparison protocol.
func UniformBound(shape []int, bound, mod uint64) (*Tensor, error) {
	t := New(shape, mod)
	bigBound := new(big.Int).SetUint64(bound)
	for i := range t.data {
		n, err := rand.Int(rand.Reader, bigBound)
		if err != nil {
			return nil, err
		}
		t.data[i] = n.Uint64() % mod
	}
	return t, nil
}

// UniformBits returns a tensor of uniform {0,1} elements.
func UniformBits(shape []int, mod uint64) (*Tensor, error) {
	return UniformBound(shape, 2, mod)
}
