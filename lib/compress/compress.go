// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies a compression algorithm. Tag values are stored in
// journal rows and checkpoint files; never renumber them.
type Tag uint8

const (
	None Tag = 0
	LZ4  Tag = 1
	Zstd Tag = 2
)

// String returns the algorithm name.
func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseTag parses an algorithm name as written in configuration.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm %q", name)
	}
}

// maxUncompressedSize bounds the allocation a corrupt Blob header can
// cause on the reading side.
const maxUncompressedSize = 512 << 20

// Blob is a compressed payload together with what is needed to
// restore it.
type Blob struct {
	Tag  Tag    `cbor:"tag"`
	Size int    `cbor:"size"`
	Data []byte `cbor:"data"`
}

var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Pack compresses data with the requested algorithm. If the data does
// not get smaller it is stored uncompressed and the Blob's Tag is
// None.
func Pack(tag Tag, data []byte) (Blob, error) {
	var (
		compressed []byte
		err        error
	)
	switch tag {
	case None:
		return Blob{Tag: None, Size: len(data), Data: data}, nil
	case LZ4:
		compressed, err = compressLZ4(data)
	case Zstd:
		compressed, err = compressZstd(data)
	default:
		return Blob{}, fmt.Errorf("unsupported compression tag: %d", tag)
	}
	if errors.Is(err, errIncompressible) {
		return Blob{Tag: None, Size: len(data), Data: data}, nil
	}
	if err != nil {
		return Blob{}, err
	}
	return Blob{Tag: tag, Size: len(data), Data: compressed}, nil
}

// Unpack restores the original bytes of a Blob and verifies their
// length.
func Unpack(blob Blob) ([]byte, error) {
	if blob.Size < 0 || blob.Size > maxUncompressedSize {
		return nil, fmt.Errorf("blob size %d out of range", blob.Size)
	}
	switch blob.Tag {
	case None:
		if len(blob.Data) != blob.Size {
			return nil, fmt.Errorf("uncompressed blob: size %d does not match expected %d", len(blob.Data), blob.Size)
		}
		return blob.Data, nil
	case LZ4:
		return decompressLZ4(blob.Data, blob.Size)
	case Zstd:
		return decompressZstd(blob.Data, blob.Size)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", blob.Tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}
