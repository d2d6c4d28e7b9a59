package domain

import (
	"maps"
	"slices"
)

// Metadata carries propagation headers inside a message. Values are bytes so
// the JSON form stays compatible with producers that encode them as base64.
type Metadata map[string][]byte

func (m Metadata) Get(key string) string {
	return string(m[key])
}

func (m Metadata) Set(key, value string) {
	m[key] = []byte(value)
}

func (m Metadata) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Clone returns a non-nil copy that can be written without touching m.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
