// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"errors"
	"fmt"
)

// Code classifies a sync failure.
type Code string

const (
	// PathNotFound means a compound named a node the replica does not
	// have.
	PathNotFound Code = "path_not_found"

	// BatchOutOfOrder means a frame's sequence number is not the one
	// after the last applied batch.
	BatchOutOfOrder Code = "batch_out_of_order"

	// DecodeFailure means the frame failed digest verification or
	// could not be decoded.
	DecodeFailure Code = "decode_failure"
)

// IsKnown reports whether c is one of the defined codes.
func (c Code) IsKnown() bool {
	switch c {
	case PathNotFound, BatchOutOfOrder, DecodeFailure:
		return true
	}
	return false
}

// SyncError reports why a frame could not be applied.
type SyncError struct {
	Code     Code
	Sequence uint64
	Path     string
	Err      error
}

func (e *SyncError) Error() string {
	switch e.Code {
	case PathNotFound:
		return fmt.Sprintf("batch %d: no node at %s", e.Sequence, e.Path)
	case BatchOutOfOrder:
		return fmt.Sprintf("batch %d: %v", e.Sequence, e.Err)
	default:
		return fmt.Sprintf("batch %d: %s: %v", e.Sequence, e.Code, e.Err)
	}
}

func (e *SyncError) Unwrap() error { return e.Err }

// Resync reports that recovery from e requires a full resync. Every
// sync failure does.
func (e *SyncError) Resync() bool { return true }

// Is matches another *SyncError by code, so errors.Is(err,
// &SyncError{Code: BatchOutOfOrder}) works.
func (e *SyncError) Is(target error) bool {
	other, ok := target.(*SyncError)
	return ok && other.Code == e.Code
}

// ErrResyncRequired is returned by Apply while the replica is waiting
// for a Reset.
var ErrResyncRequired = errors.New("replica requires a full resync")
