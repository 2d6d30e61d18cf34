package types

import "golang.org/x/xerrors"

// Error kinds surfaced by workers and by the MPC engine. They are sentinel
// values: call sites wrap them with xerrors.Errorf("...: %w", err) and
// callers test them with errors.Is.
var (
	// ErrUnknownReference reports a tensor id that is not (or no longer)
	// resident on the worker.
	ErrUnknownReference = xerrors.New("unknown tensor reference")

	// ErrCapability reports an operation tag the worker does not handle.
	ErrCapability = xerrors.New("operation not supported by worker")

	// ErrShapeMismatch reports operand shapes incompatible with the
	// requested operation. It is raised before any network round trip.
	ErrShapeMismatch = xerrors.New("operand shapes do not match")

	// ErrMixedOperand reports an operation mixing plain and secret-shared
	// operands, or plain operands resident on different workers, without an
	// explicit promotion.
	ErrMixedOperand = xerrors.New("mixed plain and shared operands")

	// ErrTripleExhausted reports a multiplication attempted without an
	// unused multiplication triple.
	ErrTripleExhausted = xerrors.New("no unused multiplication triple")

	// ErrPermission reports an unauthorized plaintext fetch.
	ErrPermission = xerrors.New("not allowed to fetch plaintext")

	// ErrWorkerUnavailable reports a worker that did not answer within the
	// configured timeout.
	ErrWorkerUnavailable = xerrors.New("worker unavailable")

	// ErrInvalidShared reports an operation on a shared tensor that was
	// invalidated by an aborted protocol round.
	ErrInvalidShared = xerrors.New("shared tensor has been invalidated")
)

// ErrorKind maps an error to the wire representation used in response
// messages, so that the original sentinel can be recovered on the caller
// side with KindError.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case xerrors.Is(err, ErrUnknownReference):
		return "unknown-reference"
	case xerrors.Is(err, ErrCapability):
		return "capability"
	case xerrors.Is(err, ErrShapeMismatch):
		return "shape-mismatch"
	case xerrors.Is(err, ErrMixedOperand):
		return "mixed-operand"
	case xerrors.Is(err, ErrTripleExhausted):
		return "triple-exhausted"
	case xerrors.Is(err, ErrPermission):
		return "permission"
	case xerrors.Is(err, ErrWorkerUnavailable):
		return "worker-unavailable"
	case xerrors.Is(err, ErrInvalidShared):
		return "invalid-shared"
	default:
		return "internal"
	}
}

// KindError is the inverse of ErrorKind.
func KindError(kind string) error {
	switch kind {
	case "":
		return nil
	case "unknown-reference":
		return ErrUnknownReference
	case "capability":
		return ErrCapability
	case "shape-mismatch":
		return ErrShapeMismatch
	case "mixed-operand":
		return ErrMixedOperand
	case "triple-exhausted":
		return ErrTripleExhausted
	case "permission":
		return ErrPermission
	case "worker-unavailable":
		return ErrWorkerUnavailable
	case "invalid-shared":
		return ErrInvalidShared
	default:
		return xerrors.New("internal error")
	}
}
