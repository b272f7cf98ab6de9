// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package delta

import (
	"fmt"

	"github.com/flowd-project/flowd/lib/compress"
	"github.com/flowd-project/flowd/lib/defs"
)

// MessageKind says what a subscribe stream message carries.
type MessageKind string

const (
	// MessageSnapshot carries the subscribed tree at Sequence. It is
	// the first message of a stream that could not be caught up from
	// the journal.
	MessageSnapshot MessageKind = "snapshot"

	// MessageResync is a snapshot sent mid-stream after the subscriber
	// fell behind. Frames numbered at or below its Sequence were
	// dropped and must not be expected.
	MessageResync MessageKind = "resync"

	// MessageFrame carries one batch.
	MessageFrame MessageKind = "frame"

	// MessageHeartbeat carries no data. Sequence is the last batch the
	// stream has sent.
	MessageHeartbeat MessageKind = "heartbeat"
)

// IsKnown reports whether k is one of the defined MessageKind values.
func (k MessageKind) IsKnown() bool {
	switch k {
	case MessageSnapshot, MessageResync, MessageFrame, MessageHeartbeat:
		return true
	}
	return false
}

// Message is one value on a subscribe stream after the ack.
type Message struct {
	Kind     MessageKind    `cbor:"kind"`
	Sequence uint64         `cbor:"sequence"`
	Snapshot *compress.Blob `cbor:"snapshot,omitempty"`
	Frame    *Frame         `cbor:"frame,omitempty"`
}

// SnapshotMessage encodes d as a snapshot or resync message, packed
// with tag.
func SnapshotMessage(kind MessageKind, d *defs.Defs, sequence uint64, tag compress.Tag) (Message, error) {
	data, err := defs.Encode(d)
	if err != nil {
		return Message{}, fmt.Errorf("encoding snapshot: %w", err)
	}
	blob, err := compress.Pack(tag, data)
	if err != nil {
		return Message{}, fmt.Errorf("compressing snapshot: %w", err)
	}
	return Message{Kind: kind, Sequence: sequence, Snapshot: &blob}, nil
}

// FrameMessage wraps frame.
func FrameMessage(frame Frame) Message {
	return Message{Kind: MessageFrame, Sequence: frame.Sequence, Frame: &frame}
}

// Defs decodes the snapshot of a snapshot or resync message.
func (m Message) Defs() (*defs.Defs, error) {
	if m.Snapshot == nil {
		return nil, fmt.Errorf("%s message carries no snapshot", m.Kind)
	}
	data, err := compress.Unpack(*m.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot: %w", err)
	}
	return defs.Decode(data)
}
