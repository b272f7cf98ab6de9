// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"strings"
	"testing"
)

type sampleFrame struct {
	Type     string `cbor:"type"`
	Sequence uint64 `cbor:"sequence,omitempty"`
	Path     string `cbor:"path,omitempty"`
}

type sampleNode struct {
	Name      string            `json:"name"`
	Variables map[string]string `json:"variables,omitempty"`
}

func TestMarshalDeterministic(t *testing.T) {
	node := sampleNode{
		Name: "t1",
		Variables: map[string]string{
			"ZETA":  "1",
			"ALPHA": "2",
			"MID":   "3",
		},
	}

	first, err := Marshal(node)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(node)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestJSONTagFallback(t *testing.T) {
	data, err := Marshal(sampleNode{Name: "suite"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var generic map[string]any
	if err := Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal into map: %v", err)
	}
	if generic["name"] != "suite" {
		t.Errorf("json tag not honoured: got keys %v", generic)
	}
	if _, present := generic["variables"]; present {
		t.Error("omitempty not honoured for empty map")
	}
}

func TestStreamPreservesOrder(t *testing.T) {
	frames := []sampleFrame{
		{Type: "snapshot", Sequence: 4},
		{Type: "batch", Sequence: 5, Path: "/s1/f1/t1"},
		{Type: "heartbeat"},
		{Type: "batch", Sequence: 6, Path: "/"},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, frame := range frames {
		if err := encoder.Encode(frame); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range frames {
		var got sampleFrame
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode frame %d: %v", i, err)
		}
		if got != want {
			t.Errorf("frame %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	data, err := Marshal(sampleFrame{Type: "batch", Path: "/suite/family/task"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var frame sampleFrame
	if err := Unmarshal(data[:len(data)-3], &frame); err == nil {
		t.Fatal("Unmarshal of truncated data succeeded")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(sampleFrame{Type: "heartbeat"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"heartbeat"`) {
		t.Errorf("Diagnose = %s, want it to mention heartbeat", diagnostic)
	}
}
