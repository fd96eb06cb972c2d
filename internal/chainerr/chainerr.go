// Package chainerr names the error kinds of spec §7 as sentinel values and
// small wrapper types, so callers can branch on kind with errors.Is/As
// instead of string matching.
package chainerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds usable with errors.Is.
var (
	ErrLockPoisoned     = errors.New("lock poisoned")
	ErrChannelClosed    = errors.New("channel closed")
	ErrNoMorePeers      = errors.New("no more peers")
	ErrCanNotRead       = errors.New("can not read")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrInvalidWIF       = errors.New("invalid WIF")
	ErrDuplicateHeader  = errors.New("duplicate header")
)

// UnmarshallingError wraps a decode failure: incoming bytes did not
// conform to the declared length or character set of a wire type.
type UnmarshallingError struct {
	Context string
	Err     error
}

func (e *UnmarshallingError) Error() string {
	return fmt.Sprintf("unmarshalling error (%s): %v", e.Context, e.Err)
}

func (e *UnmarshallingError) Unwrap() error { return e.Err }

func NewUnmarshallingError(context string, err error) error {
	return &UnmarshallingError{Context: context, Err: err}
}

// InvalidHeaderError signals a header that failed PoW or linkage validation.
type InvalidHeaderError struct {
	Reason string
}

func (e *InvalidHeaderError) Error() string {
	return fmt.Sprintf("invalid header: %s", e.Reason)
}

func NewInvalidHeaderError(reason string) error {
	return &InvalidHeaderError{Reason: reason}
}

// InvalidBlockError signals a block that failed a §3 invariant (size,
// merkle root, or header validity).
type InvalidBlockError struct {
	Reason string
}

func (e *InvalidBlockError) Error() string {
	return fmt.Sprintf("invalid block: %s", e.Reason)
}

func NewInvalidBlockError(reason string) error {
	return &InvalidBlockError{Reason: reason}
}

// PeerIOError wraps a socket-level failure against a specific peer.
type PeerIOError struct {
	Peer string
	Err  error
}

func (e *PeerIOError) Error() string {
	return fmt.Sprintf("peer io error (%s): %v", e.Peer, e.Err)
}

func (e *PeerIOError) Unwrap() error { return e.Err }

func NewPeerIOError(peer string, err error) error {
	return &PeerIOError{Peer: peer, Err: err}
}
