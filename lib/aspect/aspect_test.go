// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package aspect

import "testing"

func TestSetIsIdempotent(t *testing.T) {
	var s Set
	s.Add(State)
	s.Add(State)
	s.Add(NodeVariable)

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if !s.Has(State) || !s.Has(NodeVariable) {
		t.Errorf("set %s missing members", s)
	}
	if s.Has(Meter) {
		t.Errorf("set %s reports meter", s)
	}
}

func TestSetSliceIsCanonical(t *testing.T) {
	s := Of(ServerVariable, State, Event, AddRemoveAttr)
	want := []Aspect{State, AddRemoveAttr, Event, ServerVariable}
	got := s.Slice()
	if len(got) != len(want) {
		t.Fatalf("Slice = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Slice[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if s.String() != "state|add_remove_attr|event|server_variable" {
		t.Errorf("String = %q", s.String())
	}
}

func TestUnion(t *testing.T) {
	union := Of(State).Union(Of(Label, State))
	if union != Of(State, Label) {
		t.Errorf("Union = %s, want state|label", union)
	}
}

func TestInvalidAspectIgnored(t *testing.T) {
	s := Of(Aspect(200))
	if !s.Empty() {
		t.Errorf("invalid aspect added to set: %s", s)
	}
	if Aspect(200).Valid() {
		t.Error("Aspect(200).Valid() = true")
	}
}

func TestParseEveryName(t *testing.T) {
	for _, a := range All() {
		parsed, err := Parse(a.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", a.String(), err)
		}
		if parsed != a {
			t.Errorf("Parse(%q) = %s", a.String(), parsed)
		}
		var roundtrip Aspect
		text, err := a.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%s): %v", a, err)
		}
		if err := roundtrip.UnmarshalText(text); err != nil || roundtrip != a {
			t.Errorf("UnmarshalText(%q) = %s, %v", text, roundtrip, err)
		}
	}
	if _, err := Parse("colour"); err == nil {
		t.Error("Parse accepted an unknown name")
	}
}

func TestNodeLevel(t *testing.T) {
	for _, a := range All() {
		want := a != ServerState && a != ServerVariable
		if a.NodeLevel() != want {
			t.Errorf("%s.NodeLevel() = %v, want %v", a, a.NodeLevel(), want)
		}
	}
}
