// Package object implements the VM's heap-allocated datum model: a common
// Object header carrying a kind tag and an intrusive next-pointer, plus the
// single object kind this language has: String.
package object

// Kind tags a heap object's concrete type.
type Kind int

const (
	// KindString marks an Object as a *String.
	KindString Kind = iota
)

// Object is the header every heap-allocated runtime datum embeds. Next
// threads the object onto the VM's intrusive all-objects list, which is
// walked once at shutdown for a bulk free instead of per-object reference
// counting or a tracing collector. Owner lets code holding only an *Object
// recover the concrete value (Go has no C-style container_of); it is set
// by each constructor to the object it belongs to.
type Object struct {
	Kind  Kind
	Next  *Object
	Owner any
}

// String is an immutable, interned byte sequence with a cached hash.
type String struct {
	Object
	Chars string
	Hash  uint32
}

// fnvOffsetBasis and fnvPrime are the FNV-1a 32-bit constants.
const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

// HashBytes computes the FNV-1a hash of s.
func HashBytes(s string) uint32 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// NewString allocates a fresh String object. It does not intern; callers
// go through an Interner for that.
func NewString(chars string) *String {
	s := &String{
		Object: Object{Kind: KindString},
		Chars:  chars,
		Hash:   HashBytes(chars),
	}
	s.Object.Owner = s
	return s
}

// AsString recovers the *String owning hdr. hdr.Kind must be KindString.
func AsString(hdr *Object) *String {
	return hdr.Owner.(*String)
}

// Print renders obj's value the way PRINT and string concatenation expect:
// verbatim bytes for a String.
func Print(obj *Object) string {
	switch obj.Kind {
	case KindString:
		return AsString(obj).Chars
	default:
		return "<object>"
	}
}
