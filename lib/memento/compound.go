// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package memento

import (
	"fmt"

	"github.com/flowd-project/flowd/lib/aspect"
	"github.com/flowd-project/flowd/lib/codec"
)

// Compound is the ordered set of mementos one command produced for one
// path. Path "/" targets the Defs root.
type Compound struct {
	Path            string
	ClearAttributes bool
	Mementos        []Memento
}

// Aspects returns the union of the aspects of c's mementos. A compound
// that clears attributes also reports aspect.AddRemoveAttr.
func (c Compound) Aspects() aspect.Set {
	var set aspect.Set
	if c.ClearAttributes {
		set.Add(aspect.AddRemoveAttr)
	}
	for _, m := range c.Mementos {
		set.Add(m.Aspect())
	}
	return set
}

// IsRoot reports whether c targets the Defs root.
func (c Compound) IsRoot() bool {
	return c.Path == "/"
}

type wireCompound struct {
	Path            string     `cbor:"path"`
	ClearAttributes bool       `cbor:"clear_attributes,omitempty"`
	Mementos        []envelope `cbor:"mementos,omitempty"`
}

type envelope struct {
	Kind string           `cbor:"kind"`
	Body codec.RawMessage `cbor:"body"`
}

// MarshalCBOR encodes c with each memento wrapped in a kind envelope.
func (c Compound) MarshalCBOR() ([]byte, error) {
	wire := wireCompound{
		Path:            c.Path,
		ClearAttributes: c.ClearAttributes,
		Mementos:        make([]envelope, len(c.Mementos)),
	}
	for i, m := range c.Mementos {
		body, err := codec.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encoding %s memento for %s: %w", m.kind(), c.Path, err)
		}
		wire.Mementos[i] = envelope{Kind: m.kind(), Body: body}
	}
	return codec.Marshal(wire)
}

// UnmarshalCBOR decodes a compound. An unknown memento kind is an
// error.
func (c *Compound) UnmarshalCBOR(data []byte) error {
	var wire wireCompound
	if err := codec.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Path == "" || wire.Path[0] != '/' {
		return fmt.Errorf("compound path %q is not absolute", wire.Path)
	}
	mementos := make([]Memento, len(wire.Mementos))
	for i, env := range wire.Mementos {
		decode, ok := decoders[env.Kind]
		if !ok {
			return fmt.Errorf("unknown memento kind %q for %s", env.Kind, wire.Path)
		}
		m, err := decode(env.Body)
		if err != nil {
			return fmt.Errorf("decoding %s memento for %s: %w", env.Kind, wire.Path, err)
		}
		mementos[i] = m
	}
	*c = Compound{Path: wire.Path, ClearAttributes: wire.ClearAttributes, Mementos: mementos}
	return nil
}

func decodeAs[M Memento](body []byte) (Memento, error) {
	var m M
	if err := codec.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var decoders = map[string]func([]byte) (Memento, error){
	State{}.kind():           decodeAs[State],
	DefStatus{}.kind():       decodeAs[DefStatus],
	Suspended{}.kind():       decodeAs[Suspended],
	Flag{}.kind():            decodeAs[Flag],
	Variables{}.kind():       decodeAs[Variables],
	Events{}.kind():          decodeAs[Events],
	Meters{}.kind():          decodeAs[Meters],
	Labels{}.kind():          decodeAs[Labels],
	Limits{}.kind():          decodeAs[Limits],
	Trigger{}.kind():         decodeAs[Trigger],
	Complete{}.kind():        decodeAs[Complete],
	Repeat{}.kind():          decodeAs[Repeat],
	Late{}.kind():            decodeAs[Late],
	Today{}.kind():           decodeAs[Today],
	Time{}.kind():            decodeAs[Time],
	Day{}.kind():             decodeAs[Day],
	Date{}.kind():            decodeAs[Date],
	Cron{}.kind():            decodeAs[Cron],
	Zombies{}.kind():         decodeAs[Zombies],
	Submittable{}.kind():     decodeAs[Submittable],
	Children{}.kind():        decodeAs[Children],
	Order{}.kind():           decodeAs[Order],
	ServerState{}.kind():     decodeAs[ServerState],
	ServerVariables{}.kind(): decodeAs[ServerVariables],
	Suites{}.kind():          decodeAs[Suites],
}

// Encode returns the CBOR encoding of compounds.
func Encode(compounds []Compound) ([]byte, error) {
	return codec.Marshal(compounds)
}

// Decode decodes a CBOR-encoded list of compounds. Any malformed
// compound or memento fails the whole list.
func Decode(data []byte) ([]Compound, error) {
	var compounds []Compound
	if err := codec.Unmarshal(data, &compounds); err != nil {
		return nil, fmt.Errorf("decoding compounds: %w", err)
	}
	return compounds, nil
}
