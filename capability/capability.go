// Package capability defines the closed capability set of spec §4.10,
// shared by the sandboxed interpreter (state:* access on constructed
// Interpreters) and the plugin kernel (declared manifest capabilities).
package capability

// ID names one capability in the closed set.
type ID string

const (
	StateRead        ID = "state:read"
	StateWrite       ID = "state:write"
	StateWatch       ID = "state:watch"
	PersistenceRead  ID = "persistence:read"
	PersistenceWrite ID = "persistence:write"
	UIInject         ID = "ui:inject"
	UIStyle          ID = "ui:style"
	UITheme          ID = "ui:theme"
)

// All enumerates the closed set, used to grant trusted plugins every
// capability implicitly (spec §4.10: "Trusted (core) plugins implicitly
// hold all capabilities").
var All = []ID{StateRead, StateWrite, StateWatch, PersistenceRead, PersistenceWrite, UIInject, UIStyle, UITheme}

// Set is an unordered collection of declared/granted capabilities.
type Set map[ID]bool

// NewSet builds a Set from the given ids.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// AllSet returns a Set holding every capability in the closed set.
func AllSet() Set { return NewSet(All...) }

// Has reports whether id is present in s.
func (s Set) Has(id ID) bool { return s[id] }
