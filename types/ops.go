package types

// Op tags the operations a worker can execute on resident tensors. The set
// is closed: a worker resolves a tag through its handler table and answers
// with a capability error for anything else.
type Op string

const (
	OpAdd       Op = "add"
	OpSub       Op = "sub"
	OpNeg       Op = "neg"
	OpMulElem   Op = "mulelem"
	OpDiv       Op = "div"
	OpMulScalar Op = "mulscalar"
	OpMatMul    Op = "matmul"
	OpReshape   Op = "reshape"

	// OpLinComb computes alpha*x + beta*y + const over the ring. It is the
	// share-local primitive of the MPC engine: applied by every participant
	// on its own shares it yields a valid share of the combined secret. The
	// public constant is only added by the participant with share index 0.
	OpLinComb Op = "lincomb"
)

// Ops lists every valid operation tag.
func Ops() []Op {
	return []Op{OpAdd, OpSub, OpNeg, OpMulElem, OpDiv, OpMulScalar, OpMatMul, OpReshape, OpLinComb}
}
