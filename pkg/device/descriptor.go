package device

import (
	"fmt"
	"reflect"
	"sync"
)

// Kind distinguishes the two member shapes a device surface has.
type Kind int

const (
	// KindMethod is an operation taking parameters or returning nothing
	// but an error.
	KindMethod Kind = iota
	// KindProperty is a niladic readable accessor: no parameters, at
	// least one non-error return.
	KindProperty
)

func (k Kind) String() string {
	if k == KindProperty {
		return "property"
	}
	return "method"
}

// Member describes one entry of a device surface: its name and the type
// names of its parameters and returns, receiver excluded.
type Member struct {
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Params  []string `json:"params,omitempty"`
	Returns []string `json:"returns,omitempty"`
}

// Signature renders the member the way godoc would, e.g.
// "Query(string) (string, error)".
func (m Member) Signature() string {
	params := ""
	for i, p := range m.Params {
		if i > 0 {
			params += ", "
		}
		params += p
	}
	returns := ""
	switch len(m.Returns) {
	case 0:
	case 1:
		returns = " " + m.Returns[0]
	default:
		returns = " ("
		for i, r := range m.Returns {
			if i > 0 {
				returns += ", "
			}
			returns += r
		}
		returns += ")"
	}
	return fmt.Sprintf("%s(%s)%s", m.Name, params, returns)
}

// Descriptor is the introspected public surface of a device type: an
// ordered list of members, derived once per type and immutable after
// that. The registry, the verifier and the tests all operate on this
// structure rather than re-inspecting types ad hoc.
type Descriptor struct {
	Type    string   `json:"type"`
	Members []Member `json:"members"`
}

// Member returns the named member and whether it exists.
func (d Descriptor) Member(name string) (Member, bool) {
	for _, m := range d.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// Diff lists the member names and arities in which two descriptors
// differ. An empty result means the surfaces are structurally identical.
func (d Descriptor) Diff(other Descriptor) []string {
	var diffs []string
	for _, m := range d.Members {
		o, ok := other.Member(m.Name)
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s missing from %s", m.Name, other.Type))
			continue
		}
		if len(o.Params) != len(m.Params) || len(o.Returns) != len(m.Returns) {
			diffs = append(diffs, fmt.Sprintf("%s: %s vs %s", m.Name, m.Signature(), o.Signature()))
		}
	}
	for _, o := range other.Members {
		if _, ok := d.Member(o.Name); !ok {
			diffs = append(diffs, fmt.Sprintf("%s missing from %s", o.Name, d.Type))
		}
	}
	return diffs
}

var descriptors sync.Map // reflect.Type -> Descriptor

// Describe derives the Descriptor of v's dynamic type. Descriptors are
// cached per type; the returned value must not be mutated.
func Describe(v any) (Descriptor, error) {
	if v == nil {
		return Descriptor{}, fmt.Errorf("cannot describe a nil value")
	}
	return DescribeType(reflect.TypeOf(v))
}

// DescribeType is Describe for a reflect.Type. Non-pointer types are
// described through their pointer so the full method set is visible.
func DescribeType(t reflect.Type) (Descriptor, error) {
	if t == nil {
		return Descriptor{}, fmt.Errorf("cannot describe a nil type")
	}
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		t = reflect.PointerTo(t)
	}
	if cached, ok := descriptors.Load(t); ok {
		return cached.(Descriptor), nil
	}

	desc := Descriptor{Type: t.String()}
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.PkgPath != "" {
			continue
		}
		desc.Members = append(desc.Members, memberOf(m.Name, m.Type, t.Kind() != reflect.Interface))
	}
	if len(desc.Members) == 0 {
		return Descriptor{}, fmt.Errorf("%s exposes no public members", desc.Type)
	}

	descriptors.Store(t, desc)
	return desc, nil
}

// memberOf builds a Member from a method type. hasReceiver is true for
// concrete types, whose method signatures carry the receiver as the
// first parameter.
func memberOf(name string, mt reflect.Type, hasReceiver bool) Member {
	start := 0
	if hasReceiver {
		start = 1
	}
	member := Member{Name: name}
	for i := start; i < mt.NumIn(); i++ {
		member.Params = append(member.Params, mt.In(i).String())
	}
	for i := 0; i < mt.NumOut(); i++ {
		member.Returns = append(member.Returns, mt.Out(i).String())
	}
	if len(member.Params) == 0 && len(member.Returns) > 0 && member.Returns[0] != "error" {
		member.Kind = KindProperty
	}
	return member
}
