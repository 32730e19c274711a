package statickey

// Key is the identity carried by every event record: either a StaticKey,
// created once at a compile site and shared zero-copy across every
// EventList, or an InternedKey, owned by the EventList that created it.
// Equality and hashing have the same contract for both: compare by pointer
// identity first, falling back to string comparison so that two Keys
// minted for the same literal name from different call sites (or
// different EventLists) still compare equal.
type Key interface {
	// Name returns the human-readable scope/category name this key
	// identifies.
	Name() string
	// HashCode returns a hash consistent with Equal: equal keys hash
	// equal.
	HashCode() uint32
	// Equal reports whether other identifies the same name as this key.
	Equal(other Key) bool
}

// StaticKey identifies a scope name whose storage outlives the process
// phase that uses it -- conventionally a package-level variable built
// once at init time from a string literal at the instrumentation site.
// Its identity is its address; Equal falls back to string comparison on
// address mismatch, since two build units can each mint their own
// StaticKey for an identical literal.
type StaticKey struct {
	name string
	hash uint32
}

// NewStatic returns a new StaticKey for name. Callers should keep exactly
// one StaticKey per compile site (a package-level var), not one per call,
// so that pointer-identity comparisons are cheap on the hot path.
func NewStatic(name string) *StaticKey {
	return &StaticKey{name: name, hash: Hash(name)}
}

// Name returns the key's scope name.
func (k *StaticKey) Name() string { return k.name }

// HashCode returns the key's hash, derived from its address when
// possible and falling back to the name hash; since Go does not expose a
// stable numeric address, the name hash is used directly. This keeps
// HashCode consistent with Equal's string-comparison fallback.
func (k *StaticKey) HashCode() uint32 { return k.hash }

// Equal reports whether other names the same scope as k.
func (k *StaticKey) Equal(other Key) bool {
	if o, ok := other.(*StaticKey); ok {
		if k == o {
			return true
		}
		return k.name == o.name
	}
	return other != nil && k.name == other.Name()
}

// InternedKey is a Key minted by a particular EventList's key cache: its
// backing string is allocated inside that list's arena (see package
// arena), so its pointer identity is stable for the EventList's lifetime
// and for any Collection that later holds the list, but never crosses
// list boundaries the way a StaticKey does.
type InternedKey struct {
	name string
	hash uint32
}

// NewInterned returns a new InternedKey for name. Callers should obtain
// these only from an EventList's key cache (eventlist.EventList.CacheKey),
// which guarantees pointer identity is reused for repeated runtime
// strings within that list.
func NewInterned(name string) *InternedKey {
	return &InternedKey{name: name, hash: Hash(name)}
}

// Name returns the key's scope name.
func (k *InternedKey) Name() string { return k.name }

// HashCode returns the key's hash.
func (k *InternedKey) HashCode() uint32 { return k.hash }

// Equal reports whether other names the same scope as k.
func (k *InternedKey) Equal(other Key) bool {
	if o, ok := other.(*InternedKey); ok {
		if k == o {
			return true
		}
		return k.name == o.name
	}
	return other != nil && k.name == other.Name()
}
