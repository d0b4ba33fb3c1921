package device

import (
	"fmt"
	"reflect"
)

// ContractVersion identifies the required-member set below. Bump it when
// the Device interface gains or changes a member.
const ContractVersion = 1

// Contract is the capability contract as data: the versioned list of
// members every driver and dummy must expose. It is derived from the
// Device interface itself, so the interface and the table cannot drift.
type Contract struct {
	Version int
	Members []Member
}

// Current is the contract all registered drivers are held to.
var Current = contractOf(TypeDevice, ContractVersion)

func contractOf(it reflect.Type, version int) Contract {
	c := Contract{Version: version}
	for i := 0; i < it.NumMethod(); i++ {
		m := it.Method(i)
		c.Members = append(c.Members, memberOf(m.Name, m.Type, false))
	}
	return c
}

// Names returns the required member names in contract order.
func (c Contract) Names() []string {
	names := make([]string, len(c.Members))
	for i, m := range c.Members {
		names[i] = m.Name
	}
	return names
}

// Validate structurally checks a candidate type against the contract:
// each required member must exist with the required signature. All
// violations are collected; an empty result means the type conforms.
func (c Contract) Validate(t reflect.Type) []Violation {
	desc, err := DescribeType(t)
	if err != nil {
		return []Violation{{
			Class:  fmt.Sprintf("%v", t),
			Kind:   ViolationMissing,
			Detail: err.Error(),
		}}
	}
	return c.validateDescriptor(desc)
}

func (c Contract) validateDescriptor(desc Descriptor) []Violation {
	var violations []Violation
	for _, want := range c.Members {
		got, ok := desc.Member(want.Name)
		if !ok {
			violations = append(violations, Violation{
				Class:  desc.Type,
				Member: want.Name,
				Kind:   ViolationMissing,
				Detail: fmt.Sprintf("required %s %s not found", want.Kind, want.Signature()),
			})
			continue
		}
		if !sameTypes(got.Params, want.Params) || !sameTypes(got.Returns, want.Returns) {
			violations = append(violations, Violation{
				Class:  desc.Type,
				Member: want.Name,
				Kind:   ViolationSignature,
				Detail: fmt.Sprintf("have %s, want %s", got.Signature(), want.Signature()),
			})
		}
	}
	return violations
}

func sameTypes(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
