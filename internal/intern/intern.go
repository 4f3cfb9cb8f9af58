// Package intern provides the single string table shared by a compile and
// the VM run that executes its output, so that two identical identifiers
// or string literals always resolve to the same *object.String. Without
// that sharing, globals-table lookups by name and string equality by
// pointer would both silently break.
package intern

import (
	"loxvm/internal/object"
	"loxvm/internal/table"
)

// Interner is the shared string table, plus the intrusive all-objects list
// that every interned String gets threaded onto at birth.
type Interner struct {
	strings *table.Table
	objects *object.Object
}

// New returns an empty Interner.
func New() *Interner {
	return &Interner{strings: table.New()}
}

// String returns the canonical *object.String for chars: an existing
// interned object if one already has these exact bytes, or a freshly
// allocated one that gets interned and threaded onto the object list.
func (in *Interner) String(chars string) *object.String {
	hash := object.HashBytes(chars)
	if existing, ok := in.strings.FindString(chars, hash); ok {
		return existing
	}
	s := object.NewString(chars)
	in.strings.Set(s, nil)
	s.Object.Next = in.objects
	in.objects = &s.Object
	return s
}

// Objects returns the head of the intrusive all-objects list.
func (in *Interner) Objects() *object.Object {
	return in.objects
}

// Strings exposes the backing interning table for callers that need direct
// Get/Set/Delete access. The VM's globals live in a separate table.
func (in *Interner) Strings() *table.Table {
	return in.strings
}

// Close walks and clears the object list, a bulk free on shutdown. It
// returns how many objects were live, for tests.
func (in *Interner) Close() int {
	count := 0
	for o := in.objects; o != nil; o = o.Next {
		count++
	}
	in.objects = nil
	return count
}
