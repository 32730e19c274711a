package tevent

// PayloadKind discriminates the value, if any, carried by a Data,
// ScopeData, or Counter event.
type PayloadKind uint8

const (
	// Invalid marks an event with no payload attached.
	Invalid PayloadKind = iota
	Bool
	Int64
	UInt64
	Float64
	String
)

func (k PayloadKind) String() string {
	switch k {
	case Invalid:
		return "Invalid"
	case Bool:
		return "Bool"
	case Int64:
		return "Int64"
	case UInt64:
		return "UInt64"
	case Float64:
		return "Float64"
	case String:
		return "String"
	default:
		return "Unknown"
	}
}

// Payload is a small tagged union of the value types a Data, ScopeData,
// or Counter event can carry. The zero value is Invalid (absent).
//
// String payloads must already live in stable storage (an arena.Buffer)
// before being wrapped here: Payload never copies or owns string memory.
type Payload struct {
	kind PayloadKind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
}

// Kind reports which variant, if any, p holds.
func (p Payload) Kind() PayloadKind { return p.kind }

// BoolPayload returns a Bool-kind Payload.
func BoolPayload(v bool) Payload { return Payload{kind: Bool, b: v} }

// Int64Payload returns an Int64-kind Payload.
func Int64Payload(v int64) Payload { return Payload{kind: Int64, i: v} }

// UInt64Payload returns a UInt64-kind Payload.
func UInt64Payload(v uint64) Payload { return Payload{kind: UInt64, u: v} }

// Float64Payload returns a Float64-kind Payload.
func Float64Payload(v float64) Payload { return Payload{kind: Float64, f: v} }

// StringPayload returns a String-kind Payload wrapping an already-interned
// string (typically the result of arena.Buffer.Store).
func StringPayload(v string) Payload { return Payload{kind: String, s: v} }

// Bool returns the payload's bool value and whether p is Bool-kind.
func (p Payload) Bool() (bool, bool) { return p.b, p.kind == Bool }

// Int64 returns the payload's int64 value and whether p is Int64-kind.
func (p Payload) Int64() (int64, bool) { return p.i, p.kind == Int64 }

// UInt64 returns the payload's uint64 value and whether p is UInt64-kind.
func (p Payload) UInt64() (uint64, bool) { return p.u, p.kind == UInt64 }

// Float64 returns the payload's float64 value and whether p is
// Float64-kind.
func (p Payload) Float64() (float64, bool) { return p.f, p.kind == Float64 }

// String returns the payload's string value and whether p is
// String-kind.
func (p Payload) String() (string, bool) { return p.s, p.kind == String }

// Any returns the payload's value as an interface{}, or nil if Invalid.
// Intended for generic consumers such as the JSON serializer.
func (p Payload) Any() interface{} {
	switch p.kind {
	case Bool:
		return p.b
	case Int64:
		return p.i
	case UInt64:
		return p.u
	case Float64:
		return p.f
	case String:
		return p.s
	default:
		return nil
	}
}
