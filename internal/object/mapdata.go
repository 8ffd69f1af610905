package object

import "math"

// MapData is an insertion-ordered mapping keyed by hash+equality.
// Ordering is kept explicit via a parallel keys/values slice rather than
// relying on Go map iteration order, which is intentionally randomized.
type MapData struct {
	keys    []Value
	values  []Value
	buckets map[uint64][]int // hash -> indices into keys/values sharing that hash
}

func NewMap() *MapData {
	return &MapData{buckets: make(map[uint64][]int)}
}

// Hashable reports whether v may be used as a map key: Null, Bool,
// Number or String.
func Hashable(v Value) bool {
	switch v.Kind {
	case KNull, KBool, KNumber, KString:
		return true
	default:
		return false
	}
}

// HashValue returns a hash for a hashable value, and false if v is not
// hashable at all.
func HashValue(v Value) (uint64, bool) {
	switch v.Kind {
	case KNull:
		return 0, true
	case KBool:
		return uint64(math.Float64bits(v.Num)) ^ 0xB00, true
	case KNumber:
		return math.Float64bits(v.Num), true
	case KString:
		if v.Obj == nil || v.Obj.Str == nil {
			return 0, true
		}
		return uint64(v.Obj.Str.HashOf()), true
	default:
		return 0, false
	}
}

// Equal implements structural equality for Null/Bool/Number/String and
// identity equality for every reference kind.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KNull:
		return true
	case KBool, KNumber:
		return a.Num == b.Num
	case KString:
		if a.Obj == b.Obj {
			return true
		}
		if a.Obj == nil || b.Obj == nil {
			return false
		}
		return string(a.Obj.Str.Bytes) == string(b.Obj.Str.Bytes)
	default:
		return a.Obj == b.Obj
	}
}

func (m *MapData) findIndex(key Value) int {
	h, ok := HashValue(key)
	if !ok {
		return -1
	}
	for _, idx := range m.buckets[h] {
		if Equal(m.keys[idx], key) {
			return idx
		}
	}
	return -1
}

// Get returns the value for key and whether it was present.
func (m *MapData) Get(key Value) (Value, bool) {
	idx := m.findIndex(key)
	if idx < 0 {
		return Null, false
	}
	return m.values[idx], true
}

// Set inserts or updates key, preserving insertion order on update.
func (m *MapData) Set(key, val Value) bool {
	if idx := m.findIndex(key); idx >= 0 {
		m.values[idx] = val
		return true
	}
	h, ok := HashValue(key)
	if !ok {
		return false
	}
	idx := len(m.keys)
	m.keys = append(m.keys, key)
	m.values = append(m.values, val)
	m.buckets[h] = append(m.buckets[h], idx)
	return true
}

// Delete removes key if present, compacting the ordered slices and
// rebuilding the bucket index (rehash preserves the remaining order).
func (m *MapData) Delete(key Value) bool {
	idx := m.findIndex(key)
	if idx < 0 {
		return false
	}
	m.keys = append(m.keys[:idx], m.keys[idx+1:]...)
	m.values = append(m.values[:idx], m.values[idx+1:]...)
	m.rebuildBuckets()
	return true
}

func (m *MapData) rebuildBuckets() {
	m.buckets = make(map[uint64][]int, len(m.keys))
	for i, k := range m.keys {
		h, _ := HashValue(k)
		m.buckets[h] = append(m.buckets[h], i)
	}
}

func (m *MapData) Len() int { return len(m.keys) }

// Keys returns keys in insertion order.
func (m *MapData) Keys() []Value { return m.keys }

// Values returns values in insertion order, parallel to Keys.
func (m *MapData) Values() []Value { return m.values }

// At returns the key/value pair at a given insertion index (used by
// GetValueAt's positional-access semantics for foreach over a map).
func (m *MapData) At(i int) (Value, Value, bool) {
	if i < 0 || i >= len(m.keys) {
		return Null, Null, false
	}
	return m.keys[i], m.values[i], true
}
