package memprotogw

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations attempted after the connection
	// has torn down.
	ErrClosed = errors.New("memprotogw: connection closed")
	// ErrInvalidArgument is a known wart, kept deliberately (see
	// DESIGN.md): a set with non-zero cas/flags/expiration, or a
	// delete/flush with non-zero expiration, is fatal to the connection
	// rather than answered with INVALID_ARGUMENTS on the wire.
	ErrInvalidArgument = errors.New("memprotogw: invalid argument")
)

// ProtocolError carries the request context (opcode, opaque) of a
// dispatch failure (an unknown opcode or a rejected argument; framing
// errors from Framer are not wrapped in it), a structured error type alongside the
// plain sentinels above, used where a caller (notably logging)
// benefits from the context; errors.Is checks against the sentinels
// still work via Unwrap.
type ProtocolError struct {
	Op     string
	Opcode Opcode
	Opaque uint32
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("memprotogw: %s opcode=0x%02x opaque=%d: %v", e.Op, byte(e.Opcode), e.Opaque, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// newProtocolError wraps err with request context for logging.
func newProtocolError(op string, hdr RequestHeader, err error) *ProtocolError {
	return &ProtocolError{Op: op, Opcode: hdr.Opcode, Opaque: hdr.Opaque, Err: err}
}
