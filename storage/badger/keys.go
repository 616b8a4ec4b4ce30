package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for the persisted index artifacts
const (
	manifestKey  = "manifest"
	vectorPrefix = "vector"
	idMapPrefix  = "idmap"
	unitPrefix   = "unit"
)

// makeVectorKey generates the key of the vector stored at an index position.
// Format: prefix:position
func makeVectorKey(pos int) []byte {
	return makePositionKey(vectorPrefix, pos)
}

// makeIDMapKey generates the key of the id map entry for an index position.
// Format: prefix:position
func makeIDMapKey(pos int) []byte {
	return makePositionKey(idMapPrefix, pos)
}

// makePositionKey builds prefix:position with the position in BigEndian order
// so lexicographic iteration yields positions in ascending order.
func makePositionKey(prefix string, pos int) []byte {
	prefixBytes := []byte(prefix + ":")
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(pos))
	return buf
}

// parsePositionKey extracts the position from a key built by makePositionKey.
func parsePositionKey(prefix string, key []byte) (int, error) {
	want := len(prefix) + 1 + 8
	if len(key) != want {
		return 0, fmt.Errorf("malformed %s key of length %d", prefix, len(key))
	}
	return int(binary.BigEndian.Uint64(key[len(prefix)+1:])), nil
}

// makeUnitKey generates the docstore key for a text unit id.
func makeUnitKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", unitPrefix, id))
}

// scanPrefix returns the iteration prefix for a key family.
func scanPrefix(prefix string) []byte {
	return []byte(prefix + ":")
}
