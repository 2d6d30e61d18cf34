package worker

import (
	"encoding/json"

	"go.dedis.ch/syfer/ring"
	"go.dedis.ch/syfer/types"
	"golang.org/x/xerrors"
)

// opHandler runs one operation on resolved operands. shareIndex is -1 for
// plain operands, otherwise the worker's share index: share-local handlers
// use it to decide whether public constants apply to this share.
type opHandler func(operands []*ring.Tensor, kwargs map[string]string, shareIndex int) (*ring.Tensor, error)

// opHandlers returns the closed handler table. Exhaustive over types.Ops.
func opHandlers() map[types.Op]opHandler {
	return map[types.Op]opHandler{
		types.OpAdd:       handleAdd,
		types.OpSub:       handleSub,
		types.OpNeg:       handleNeg,
		types.OpMulElem:   handleMulElem,
		types.OpDiv:       handleDiv,
		types.OpMulScalar: handleMulScalar,
		types.OpMatMul:    handleMatMul,
		types.OpReshape:   handleReshape,
		types.OpLinComb:   handleLinComb,
	}
}

func decodeTensorKwarg(raw string) (*ring.Tensor, error) {
	var payload types.TensorPayload
	err := json.Unmarshal([]byte(raw), &payload)
	if err != nil {
		return nil, err
	}
	return ring.FromPayload(payload)
}

func wantOperands(operands []*ring.Tensor, n int) error {
	if len(operands) != n {
		return xerrors.Errorf("expected %d operands, got %d: %w",
			n, len(operands), types.ErrShapeMismatch)
	}
	return nil
}

func handleAdd(operands []*ring.Tensor, _ map[string]string, _ int) (*ring.Tensor, error) {
	err := wantOperands(operands, 2)
	if err != nil {
		return nil, err
	}
	return operands[0].Add(operands[1])
}

func handleSub(operands []*ring.Tensor, _ map[string]string, _ int) (*ring.Tensor, error) {
	err := wantOperands(operands, 2)
	if err != nil {
		return nil, err
	}
	return operands[0].Sub(operands[1])
}

func handleNeg(operands []*ring.Tensor, _ map[string]string, _ int) (*ring.Tensor, error) {
	err := wantOperands(operands, 1)
	if err != nil {
		return nil, err
	}
	return operands[0].Neg(), nil
}

func handleMulElem(operands []*ring.Tensor, _ map[string]string, _ int) (*ring.Tensor, error) {
	err := wantOperands(operands, 2)
	if err != nil {
		return nil, err
	}
	return operands[0].MulElem(operands[1])
}

func handleDiv(operands []*ring.Tensor, _ map[string]string, _ int) (*ring.Tensor, error) {
	err := wantOperands(operands, 2)
	if err != nil {
		return nil, err
	}
	return operands[0].Div(operands[1])
}

func handleMulScalar(operands []*ring.Tensor, kwargs map[string]string, _ int) (*ring.Tensor, error) {
	err := wantOperands(operands, 1)
	if err != nil {
		return nil, err
	}
	k, err := types.DecodeUint(kwargs["k"])
	if err != nil {
		return nil, xerrors.Errorf("bad scalar kwarg: %v", err)
	}
	return operands[0].MulScalar(k), nil
}

func handleMatMul(operands []*ring.Tensor, _ map[string]string, _ int) (*ring.Tensor, error) {
	err := wantOperands(operands, 2)
	if err != nil {
		return nil, err
	}
	return operands[0].MatMul(operands[1])
}

func handleReshape(operands []*ring.Tensor, kwargs map[string]string, _ int) (*ring.Tensor, error) {
	err := wantOperands(operands, 1)
	if err != nil {
		return nil, err
	}
	shape, err := types.DecodeShape(kwargs["shape"])
	if err != nil {
		return nil, err
	}
	return operands[0].Reshape(shape)
}

// handleLinComb computes alpha*(xcoef.x) + beta*(ycoef.y) + const, where
// alpha and beta are public scalars and xcoef, ycoef and const are public
// tensors. With share operands each participant runs it on its own shares:
// the linear part is share-local, and the public constant is only folded in
// by share index 0 so that the sum over all shares shifts by exactly const.
func handleLinComb(operands []*ring.Tensor, kwargs map[string]string, shareIndex int) (*ring.Tensor, error) {
	if len(operands) != 1 && len(operands) != 2 {
		return nil, xerrors.Errorf("expected 1 or 2 operands, got %d: %w",
			len(operands), types.ErrShapeMismatch)
	}

	term := func(t *ring.Tensor, coefKey, scalarKey string) (*ring.Tensor, error) {
		if raw, ok := kwargs[coefKey]; ok {
			coef, err := decodeTensorKwarg(raw)
			if err != nil {
				return nil, xerrors.Errorf("bad %s kwarg: %v", coefKey, err)
			}
			t, err = t.MulElem(coef)
			if err != nil {
				return nil, err
			}
		}
		if raw, ok := kwargs[scalarKey]; ok {
			k, err := types.DecodeUint(raw)
			if err != nil {
				return nil, xerrors.Errorf("bad %s kwarg: %v", scalarKey, err)
			}
			t = t.MulScalar(k)
		}
		return t, nil
	}

	res, err := term(operands[0], "xcoef", "alpha")
	if err != nil {
		return nil, err
	}

	if len(operands) == 2 {
		other, err := term(operands[1], "ycoef", "beta")
		if err != nil {
			return nil, err
		}
		res, err = res.Add(other)
		if err != nil {
			return nil, err
		}
	}

	if raw, ok := kwargs["const"]; ok && shareIndex <= 0 {
		c, err := decodeTensorKwarg(raw)
		if err != nil {
			return nil, xerrors.Errorf("bad const kwarg: %v", err)
		}
		res, err = res.Add(c)
		if err != nil {
			return nil, err
		}
	}

	if raw, ok := kwargs["frac"]; ok {
		frac, err := types.DecodeUint(raw)
		if err != nil {
			return nil, xerrors.Errorf("bad frac kwarg: %v", err)
		}
		res = res.WithFracBits(uint(frac))
	}

	return res, nil
}
