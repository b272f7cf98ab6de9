// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package delta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"

	"github.com/flowd-project/flowd/lib/codec"
	"github.com/flowd-project/flowd/lib/memento"
)

// Batch is everything one command changed, in the order the server
// packaged it.
type Batch struct {
	Sequence  uint64
	ID        ulid.ULID
	Command   string
	User      string
	Time      time.Time
	Compounds []memento.Compound
}

// Frame is the wire form of a Batch. Payload holds the encoded
// compounds; Digest covers every other field.
type Frame struct {
	Sequence uint64 `cbor:"sequence"`
	ID       string `cbor:"id"`
	Command  string `cbor:"command,omitempty"`
	User     string `cbor:"user,omitempty"`
	Time     int64  `cbor:"time"`
	Payload  []byte `cbor:"payload"`
	Digest   []byte `cbor:"digest"`
}

// ErrDigestMismatch is returned by DecodeFrame when a frame's digest
// does not match its contents.
var ErrDigestMismatch = errors.New("batch frame digest mismatch")

// frameDomainKey separates frame digests from any other BLAKE3 keyed
// hash in the system. Changing it breaks every journal on disk.
var frameDomainKey = [32]byte{
	'f', 'l', 'o', 'w', 'd', '.', 'd', 'e', 'l', 't', 'a', '.',
	'f', 'r', 'a', 'm', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// EncodeBatch converts b to its wire form.
func EncodeBatch(b Batch) (Frame, error) {
	payload, err := memento.Encode(b.Compounds)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding batch %d: %w", b.Sequence, err)
	}
	frame := Frame{
		Sequence: b.Sequence,
		ID:       b.ID.String(),
		Command:  b.Command,
		User:     b.User,
		Time:     b.Time.UnixNano(),
		Payload:  payload,
	}
	frame.Digest = frame.digest()
	return frame, nil
}

// DecodeFrame verifies f and decodes its compounds. Nothing is
// returned unless the whole batch decodes.
func DecodeFrame(f Frame) (Batch, error) {
	if !bytes.Equal(f.Digest, f.digest()) {
		return Batch{}, fmt.Errorf("batch %d: %w", f.Sequence, ErrDigestMismatch)
	}
	id, err := ulid.ParseStrict(f.ID)
	if err != nil {
		return Batch{}, fmt.Errorf("batch %d: invalid id %q: %w", f.Sequence, f.ID, err)
	}
	compounds, err := memento.Decode(f.Payload)
	if err != nil {
		return Batch{}, fmt.Errorf("batch %d: %w", f.Sequence, err)
	}
	return Batch{
		Sequence:  f.Sequence,
		ID:        id,
		Command:   f.Command,
		User:      f.User,
		Time:      time.Unix(0, f.Time).UTC(),
		Compounds: compounds,
	}, nil
}

// Marshal returns the CBOR encoding of f, as stored in the journal.
func (f Frame) Marshal() ([]byte, error) {
	return codec.Marshal(f)
}

// UnmarshalFrame decodes a frame produced by Frame.Marshal. The digest
// is not checked until DecodeFrame.
func UnmarshalFrame(data []byte) (Frame, error) {
	var f Frame
	if err := codec.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decoding batch frame: %w", err)
	}
	return f, nil
}

// digest hashes the frame header and payload with the frame domain
// key. Variable-length fields are length-prefixed so that no two
// distinct frames hash the same input.
func (f Frame) digest() []byte {
	hasher, err := blake3.NewKeyed(frameDomainKey[:])
	if err != nil {
		panic("delta: BLAKE3 keyed hasher: " + err.Error())
	}
	var scratch [8]byte
	writeUint := func(v uint64) {
		binary.BigEndian.PutUint64(scratch[:], v)
		hasher.Write(scratch[:])
	}
	writeBytes := func(b []byte) {
		writeUint(uint64(len(b)))
		hasher.Write(b)
	}
	writeUint(f.Sequence)
	writeBytes([]byte(f.ID))
	writeBytes([]byte(f.Command))
	writeBytes([]byte(f.User))
	writeUint(uint64(f.Time))
	writeBytes(f.Payload)
	return hasher.Sum(nil)
}

// Filtered returns a frame carrying only the compounds a replica of the
// named suites needs, under the same sequence number and ID. A nil
// suites list returns f unchanged.
func (f Frame) Filtered(suites []string) (Frame, error) {
	if suites == nil {
		return f, nil
	}
	batch, err := DecodeFrame(f)
	if err != nil {
		return Frame{}, err
	}
	batch.Compounds = memento.Filter(batch.Compounds, suites)
	return EncodeBatch(batch)
}
