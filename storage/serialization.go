// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/hybridrag/core"
)

// float32Size is the fixed encoded size of one vector component.
const float32Size = 4

// MarshalTextUnit serializes a TextUnit to bytes.
func MarshalTextUnit(unit *core.TextUnit) []byte {
	buf := make([]byte, textUnitMUS.Size(*unit))
	textUnitMUS.Marshal(*unit, buf)
	return buf
}

// UnmarshalTextUnit deserializes a TextUnit from bytes.
func UnmarshalTextUnit(data []byte) (*core.TextUnit, error) {
	unit, n, err := textUnitMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: text unit: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: text unit has %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &unit, nil
}

// MarshalVector serializes a vector to bytes.
func MarshalVector(v []float32) []byte {
	buf := make([]byte, vectorMUS.Size(v))
	vectorMUS.Marshal(v, buf)
	return buf
}

// UnmarshalVector deserializes a vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	v, n, err := vectorMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vector: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: vector has %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return v, nil
}

// MarshalManifest serializes a Manifest to bytes.
func MarshalManifest(m *Manifest) []byte {
	buf := make([]byte, manifestMUS.Size(*m))
	manifestMUS.Marshal(*m, buf)
	return buf
}

// UnmarshalManifest deserializes a Manifest from bytes.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	m, n, err := manifestMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: manifest has %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return &m, nil
}

var (
	textUnitMUS = textUnitSer{}
	vectorMUS   = vectorSer{}
	manifestMUS = manifestSer{}
)

// textUnitSer encodes id, text, tier, category and source block in order.
type textUnitSer struct{}

func (textUnitSer) Marshal(v core.TextUnit, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Text, bs[n:])
	n += varint.Int.Marshal(int(v.Metadata.Tier), bs[n:])
	n += ord.String.Marshal(v.Metadata.Category, bs[n:])
	n += varint.Int.Marshal(v.Metadata.SourceBlock, bs[n:])
	return
}

func (textUnitSer) Unmarshal(bs []byte) (v core.TextUnit, n int, err error) {
	var n1, tier int
	if v.ID, n1, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if tier, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Metadata.Tier = core.Tier(tier)
	if v.Metadata.Category, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Metadata.SourceBlock, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	return
}

func (textUnitSer) Size(v core.TextUnit) (size int) {
	size = ord.String.Size(v.ID)
	size += ord.String.Size(v.Text)
	size += varint.Int.Size(int(v.Metadata.Tier))
	size += ord.String.Size(v.Metadata.Category)
	return size + varint.Int.Size(v.Metadata.SourceBlock)
}

// vectorSer encodes a length prefix followed by fixed-width components.
type vectorSer struct{}

func (vectorSer) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func (vectorSer) Unmarshal(bs []byte) (v []float32, n int, err error) {
	var length int
	if length, n, err = varint.Int.Unmarshal(bs); err != nil {
		return
	}
	if length < 0 || length > (len(bs)-n)/float32Size {
		err = ErrTruncatedData
		return
	}
	v = make([]float32, length)
	var n1 int
	for i := range v {
		if v[i], n1, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
			return
		}
		n += n1
	}
	return
}

func (vectorSer) Size(v []float32) int {
	return varint.Int.Size(len(v)) + len(v)*float32Size
}

// manifestSer encodes the manifest fields in declaration order.
// BuiltAt is stored as Unix microseconds in UTC.
type manifestSer struct{}

func (manifestSer) Marshal(v Manifest, bs []byte) (n int) {
	n = varint.Int.Marshal(v.Version, bs)
	n += varint.Int.Marshal(v.Dimension, bs[n:])
	n += varint.Int.Marshal(v.Count, bs[n:])
	n += varint.Uint64.Marshal(v.Checksum, bs[n:])
	n += ord.String.Marshal(v.EmbeddingModel, bs[n:])
	n += varint.Int64.Marshal(v.BuiltAt.UnixMicro(), bs[n:])
	return
}

func (manifestSer) Unmarshal(bs []byte) (v Manifest, n int, err error) {
	var n1 int
	if v.Version, n1, err = varint.Int.Unmarshal(bs); err != nil {
		return
	}
	n += n1
	if v.Dimension, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Checksum, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.EmbeddingModel, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var micros int64
	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.BuiltAt = time.UnixMicro(micros).UTC()
	return
}

func (manifestSer) Size(v Manifest) (size int) {
	size = varint.Int.Size(v.Version)
	size += varint.Int.Size(v.Dimension)
	size += varint.Int.Size(v.Count)
	size += varint.Uint64.Size(v.Checksum)
	size += ord.String.Size(v.EmbeddingModel)
	return size + varint.Int64.Size(v.BuiltAt.UnixMicro())
}
