package types

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Kwargs are flat string maps so the command schema stays language
// agnostic. The helpers below encode the few structured values commands
// carry.

// EncodeShape encodes a shape as "2x3x4".
func EncodeShape(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, "x")
}

// DecodeShape is the inverse of EncodeShape.
func DecodeShape(s string) ([]int, error) {
	if s == "" {
		return nil, xerrors.New("empty shape")
	}
	parts := strings.Split(s, "x")
	shape := make([]int, len(parts))
	for i, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, xerrors.Errorf("bad shape %q: %v", s, err)
		}
		shape[i] = d
	}
	return shape, nil
}

// EncodeUint encodes a ring element for a kwarg.
func EncodeUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// DecodeUint is the inverse of EncodeUint.
func DecodeUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
