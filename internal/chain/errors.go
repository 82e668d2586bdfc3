package chain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies gateway failures so callers can tell a dead RPC
// endpoint apart from a contract that refused the call.
type ErrorKind int

const (
	// KindConnection covers transport failures: dial, timeout, RPC errors
	// that are not contract reverts.
	KindConnection ErrorKind = iota
	// KindABI covers encode/decode failures against the contract ABI.
	KindABI
	// KindRevert covers contract-logic rejections carrying a revert reason.
	KindRevert
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindABI:
		return "abi"
	case KindRevert:
		return "revert"
	default:
		return "unknown"
	}
}

// Error is a classified gateway failure.
type Error struct {
	Kind   ErrorKind
	Method string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Method, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRevert reports whether err is (or wraps) a contract revert.
func IsRevert(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == KindRevert
	}
	return false
}

// RevertReason extracts the human-readable revert message from err, or ""
// if err is not a revert. Geth-style transports prefix the reason with
// "execution reverted:"; the prefix is stripped.
func RevertReason(err error) string {
	var ce *Error
	if !errors.As(err, &ce) || ce.Kind != KindRevert {
		return ""
	}
	msg := ce.Err.Error()
	if i := strings.Index(msg, revertMarker); i >= 0 {
		return strings.TrimSpace(strings.TrimPrefix(msg[i+len(revertMarker):], ":"))
	}
	return msg
}

const revertMarker = "execution reverted"

// dataError is the shape geth's rpc package gives errors that carry revert
// data. Matching the interface avoids a hard dependency on the concrete type.
type dataError interface {
	Error() string
	ErrorData() interface{}
}

func classifyRPCError(method string, err error) *Error {
	var de dataError
	if errors.As(err, &de) || strings.Contains(err.Error(), revertMarker) {
		return &Error{Kind: KindRevert, Method: method, Err: err}
	}
	return &Error{Kind: KindConnection, Method: method, Err: err}
}

// NewRevertError builds a classified revert with the given reason. Intended
// for tests and fakes standing in for the contract.
func NewRevertError(method, reason string) *Error {
	return &Error{
		Kind:   KindRevert,
		Method: method,
		Err:    fmt.Errorf("%s: %s", revertMarker, reason),
	}
}
