package frontmatter

import (
	"encoding/json"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Metadata is the header mapping of a document. It remembers the order in
// which keys were first set so that extra keys serialize deterministically.
// A nil *Metadata behaves as an empty mapping for reads.
type Metadata struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewMetadata returns an empty mapping.
func NewMetadata() *Metadata {
	return &Metadata{m: orderedmap.New[string, string]()}
}

// MetadataFromMap builds a mapping from m with keys in sorted order.
func MetadataFromMap(m map[string]string) *Metadata {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	md := NewMetadata()
	for _, k := range keys {
		md.Set(k, m[k])
	}
	return md
}

// Get returns the value for key, or "" when absent.
func (md *Metadata) Get(key string) string {
	if md == nil || md.m == nil {
		return ""
	}
	v, _ := md.m.Get(key)
	return v
}

// Lookup returns the value for key and whether it is present.
func (md *Metadata) Lookup(key string) (string, bool) {
	if md == nil || md.m == nil {
		return "", false
	}
	return md.m.Get(key)
}

// Set stores value under key. An existing key keeps its position.
func (md *Metadata) Set(key, value string) {
	if md.m == nil {
		md.m = orderedmap.New[string, string]()
	}
	md.m.Set(key, value)
}

// Delete removes key.
func (md *Metadata) Delete(key string) {
	if md == nil || md.m == nil {
		return
	}
	md.m.Delete(key)
}

// Len returns the number of keys, including keys with empty values.
func (md *Metadata) Len() int {
	if md == nil || md.m == nil {
		return 0
	}
	return md.m.Len()
}

// Keys returns the keys in insertion order.
func (md *Metadata) Keys() []string {
	if md == nil || md.m == nil {
		return nil
	}
	keys := make([]string, 0, md.m.Len())
	for pair := md.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Map returns a plain map copy.
func (md *Metadata) Map() map[string]string {
	out := make(map[string]string, md.Len())
	for _, k := range md.Keys() {
		out[k] = md.Get(k)
	}
	return out
}

// Clone returns an independent copy preserving key order.
func (md *Metadata) Clone() *Metadata {
	out := NewMetadata()
	for _, k := range md.Keys() {
		out.Set(k, md.Get(k))
	}
	return out
}

// Equal reports whether both mappings hold the same keys and values.
func (md *Metadata) Equal(other *Metadata) bool {
	if md.Len() != other.Len() {
		return false
	}
	for _, k := range md.Keys() {
		v, ok := other.Lookup(k)
		if !ok || v != md.Get(k) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the mapping as a JSON object in key order.
func (md *Metadata) MarshalJSON() ([]byte, error) {
	if md == nil || md.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(md.m)
}

// UnmarshalJSON decodes a JSON object, keeping the document's key order.
func (md *Metadata) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, string]()
	if err := json.Unmarshal(data, m); err != nil {
		return err
	}
	md.m = m
	return nil
}
