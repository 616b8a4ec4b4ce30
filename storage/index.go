package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/hybridrag/core"
)

// FormatVersion is the persisted layout version written by this package.
const FormatVersion = 1

// Manifest describes a persisted index. It is written in the same transaction
// as the artifacts it describes, so its presence marks a complete index.
type Manifest struct {
	Version        int
	Dimension      int
	Count          int
	Checksum       uint64
	EmbeddingModel string
	BuiltAt        time.Time
}

// Snapshot is the full persisted triple: vectors, id map and docstore.
// Vectors[i] belongs to IDMap[i], which resolves to Docstore[IDMap[i]].
type Snapshot struct {
	Manifest Manifest
	Vectors  [][]float32
	IDMap    []string
	Docstore map[string]*core.TextUnit
}

// IndexWriter persists a snapshot.
// Implementations must write all artifacts or none of them.
type IndexWriter interface {
	WriteIndex(ctx context.Context, snapshot *Snapshot) error
}

// IndexReader loads a persisted snapshot.
// Implementations must validate the snapshot before returning it.
type IndexReader interface {
	ReadIndex(ctx context.Context) (*Snapshot, error)
}

// Checksum fingerprints the id map and the docstore text it resolves to.
// Units missing from the docstore contribute only their id.
func Checksum(idMap []string, docstore map[string]*core.TextUnit) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	var lenBuf [8]byte
	for _, id := range idMap {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(id)))
		h.Write(lenBuf[:])
		h.Write([]byte(id))
		if unit, ok := docstore[id]; ok && unit != nil {
			binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(unit.Text)))
			h.Write(lenBuf[:])
			h.Write([]byte(unit.Text))
		}
	}
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// Validate checks that the snapshot is internally consistent: the manifest
// version is supported, the three artifacts have the same cardinality, every
// id map entry resolves to a distinct docstore entry, every vector has the
// manifest dimension and the checksum matches.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: snapshot is nil", ErrCorruptIndex)
	}
	m := s.Manifest
	if m.Version != FormatVersion {
		return fmt.Errorf("%w: version %d (expected %d)", ErrUnsupportedVersion, m.Version, FormatVersion)
	}
	if m.Count < 1 {
		return fmt.Errorf("%w: manifest count %d", ErrCorruptIndex, m.Count)
	}
	if m.Dimension < 1 {
		return fmt.Errorf("%w: manifest dimension %d", ErrCorruptIndex, m.Dimension)
	}
	if len(s.Vectors) != m.Count || len(s.IDMap) != m.Count || len(s.Docstore) != m.Count {
		return fmt.Errorf("%w: cardinality mismatch (manifest %d, vectors %d, id map %d, docstore %d)",
			ErrCorruptIndex, m.Count, len(s.Vectors), len(s.IDMap), len(s.Docstore))
	}

	seen := make(map[string]struct{}, len(s.IDMap))
	for pos, id := range s.IDMap {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: id %q mapped more than once", ErrCorruptIndex, id)
		}
		seen[id] = struct{}{}

		unit, ok := s.Docstore[id]
		if !ok || unit == nil {
			return fmt.Errorf("%w: id map position %d references missing unit %q", ErrCorruptIndex, pos, id)
		}
		if unit.ID != id {
			return fmt.Errorf("%w: docstore entry %q holds unit %q", ErrCorruptIndex, id, unit.ID)
		}
		if len(s.Vectors[pos]) != m.Dimension {
			return fmt.Errorf("%w: vector %d has %d components, manifest has %d",
				ErrCorruptIndex, pos, len(s.Vectors[pos]), m.Dimension)
		}
	}

	if sum := Checksum(s.IDMap, s.Docstore); sum != m.Checksum {
		return fmt.Errorf("%w: checksum %x does not match manifest %x", ErrCorruptIndex, sum, m.Checksum)
	}
	return nil
}
