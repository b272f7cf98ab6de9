// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"
)

func repetitiveDefs() []byte {
	var builder strings.Builder
	for i := range 200 {
		builder.WriteString("/suite/family/task")
		builder.WriteByte(byte('a' + i%26))
		builder.WriteString(" status=queued suspended=false\n")
	}
	return []byte(builder.String())
}

func TestPackUnpack(t *testing.T) {
	data := repetitiveDefs()
	for _, tag := range []Tag{None, LZ4, Zstd} {
		t.Run(tag.String(), func(t *testing.T) {
			blob, err := Pack(tag, data)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			if blob.Tag != tag {
				t.Errorf("Tag = %s, want %s", blob.Tag, tag)
			}
			if tag != None && len(blob.Data) >= len(data) {
				t.Errorf("compressed size %d not smaller than %d", len(blob.Data), len(data))
			}
			restored, err := Unpack(blob)
			if err != nil {
				t.Fatalf("Unpack: %v", err)
			}
			if !bytes.Equal(restored, data) {
				t.Fatal("restored data differs from input")
			}
		})
	}
}

func TestPackIncompressibleFallsBackToNone(t *testing.T) {
	data := make([]byte, 256)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	for _, tag := range []Tag{LZ4, Zstd} {
		blob, err := Pack(tag, data)
		if err != nil {
			t.Fatalf("Pack(%s): %v", tag, err)
		}
		if blob.Tag != None {
			t.Errorf("Pack(%s) of random data: Tag = %s, want none", tag, blob.Tag)
		}
	}
}

func TestUnpackRejectsSizeMismatch(t *testing.T) {
	blob, err := Pack(Zstd, repetitiveDefs())
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	blob.Size++
	if _, err := Unpack(blob); err == nil {
		t.Fatal("Unpack accepted a wrong size")
	}

	if _, err := Unpack(Blob{Tag: None, Size: 3, Data: []byte("ab")}); err == nil {
		t.Fatal("Unpack accepted a short uncompressed blob")
	}
	if _, err := Unpack(Blob{Tag: 9, Size: 1, Data: []byte("a")}); err == nil {
		t.Fatal("Unpack accepted an unknown tag")
	}
}

func TestParseTag(t *testing.T) {
	for _, tag := range []Tag{None, LZ4, Zstd} {
		parsed, err := ParseTag(tag.String())
		if err != nil || parsed != tag {
			t.Errorf("ParseTag(%q) = %v, %v", tag.String(), parsed, err)
		}
	}
	if _, err := ParseTag("brotli"); err == nil {
		t.Error("ParseTag accepted an unknown algorithm")
	}
}
