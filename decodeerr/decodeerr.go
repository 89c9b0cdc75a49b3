// Package decodeerr provides structured decode-failure errors for the
// translation pipeline: a decode failure needs the guest address and
// raw word that failed, not just a bare string, so the dispatcher's
// fault trampoline can report something a caller can act on.
package decodeerr

import "fmt"

// Reason enumerates why Decode could not proceed past a word.
type Reason int

const (
	// ReasonUnknown means arm64asm.Decode returned KindUnknown: the
	// word doesn't match any family this translator recognizes.
	ReasonUnknown Reason = iota
	// ReasonUnsupportedOp means the family was recognized but the
	// specific opcode/operand combination has no translator (e.g. a
	// SIMD three-register-same opcode outside the decoded set).
	ReasonUnsupportedOp
	// ReasonFetchFault means the guest address itself could not be
	// read (guestmem.ErrNotMapped or similar).
	ReasonFetchFault
)

func (r Reason) String() string {
	switch r {
	case ReasonUnknown:
		return "unknown encoding"
	case ReasonUnsupportedOp:
		return "unsupported operation"
	case ReasonFetchFault:
		return "instruction fetch fault"
	default:
		return "decode error"
	}
}

// DecodeError describes one instruction the translator could not turn
// into host code, anchored to the guest address where it occurred.
type DecodeError struct {
	GuestPC uint64
	Word    uint32
	Reason  Reason
	Wrapped error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("decode error at %#x (word %#08x): %s: %v", e.GuestPC, e.Word, e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("decode error at %#x (word %#08x): %s", e.GuestPC, e.Word, e.Reason)
}

// Unwrap returns the underlying error, if any, for errors.Is/As support.
func (e *DecodeError) Unwrap() error {
	return e.Wrapped
}

// New constructs a DecodeError with no wrapped cause.
func New(guestPC uint64, word uint32, reason Reason) *DecodeError {
	return &DecodeError{GuestPC: guestPC, Word: word, Reason: reason}
}

// Wrap constructs a DecodeError around an underlying cause, such as a
// guestmem fetch failure.
func Wrap(guestPC uint64, word uint32, reason Reason, cause error) *DecodeError {
	return &DecodeError{GuestPC: guestPC, Word: word, Reason: reason, Wrapped: cause}
}
