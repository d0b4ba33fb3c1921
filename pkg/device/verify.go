package device

import (
	"errors"
	"fmt"
	"reflect"

	"labdevices/pkg/transport"
)

// ViolationKind classifies contract verification failures.
type ViolationKind int

const (
	// ViolationMissing is a required member that does not exist.
	ViolationMissing ViolationKind = iota
	// ViolationSignature is a required member with the wrong signature.
	ViolationSignature
	// ViolationCall is a member that panicked or failed when probed.
	ViolationCall
	// ViolationValue is a member that returned a value the contract
	// forbids, such as an empty identification string.
	ViolationValue
	// ViolationLifecycle is a breach of the Initialize/Close guarantees.
	ViolationLifecycle
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationMissing:
		return "missing member"
	case ViolationSignature:
		return "wrong signature"
	case ViolationCall:
		return "call failed"
	case ViolationValue:
		return "bad value"
	case ViolationLifecycle:
		return "lifecycle"
	}
	return "unknown"
}

// Violation is a single contract failure, reported with the offending
// class and member so a run over all families pinpoints every problem.
type Violation struct {
	Class  string
	Member string
	Kind   ViolationKind
	Detail string
}

func (v Violation) String() string {
	name := v.Class
	if v.Member != "" {
		name += "." + v.Member
	}
	return fmt.Sprintf("%s: %s: %s", name, v.Kind, v.Detail)
}

// Verify structurally checks any candidate value against the capability
// contract. It never stops at the first problem: the complete set of
// violations is returned.
func Verify(candidate any) []Violation {
	if candidate == nil {
		return []Violation{{Class: "<nil>", Kind: ViolationMissing, Detail: "no candidate value"}}
	}
	return Current.Validate(reflect.TypeOf(candidate))
}

// ProbeResult is the outcome of exercising one instance's full surface.
type ProbeResult struct {
	Class string
	// Violations found while probing, in member order.
	Violations []Violation
	// Skipped lists members whose parameters have no placeholder, so no
	// call could be synthesized.
	Skipped []string
	// Tolerated records parameterized family members that rejected the
	// placeholder arguments with a domain error. These are not
	// violations but are surfaced for inspection.
	Tolerated map[string]string
}

// VerifyInstance exercises a freshly constructed, never initialized
// instance end to end: structural contract check, Close before
// Initialize, Initialize twice, a probe of every synthesizable public
// member, then a double Close. It is meant for dummies and is fully
// hermetic; running it against a real driver would touch hardware.
func VerifyInstance(dev any) ProbeResult {
	if dev == nil {
		return ProbeResult{
			Class:      "<nil>",
			Violations: []Violation{{Class: "<nil>", Kind: ViolationMissing, Detail: "no instance"}},
		}
	}
	desc, err := Describe(dev)
	if err != nil {
		return ProbeResult{
			Class:      fmt.Sprintf("%T", dev),
			Violations: []Violation{{Class: fmt.Sprintf("%T", dev), Kind: ViolationMissing, Detail: err.Error()}},
		}
	}

	res := ProbeResult{Class: desc.Type, Tolerated: map[string]string{}}
	res.Violations = append(res.Violations, Current.validateDescriptor(desc)...)

	v := reflect.ValueOf(dev)
	res.lifecycle(v, "Close", "close before initialize")
	res.lifecycle(v, "Initialize", "initialize")
	res.lifecycle(v, "Initialize", "initialize again")

	for _, m := range desc.Members {
		if m.Name == "Initialize" || m.Name == "Close" {
			continue
		}
		res.probe(v, m)
	}

	res.lifecycle(v, "Close", "close")
	res.lifecycle(v, "Close", "close again")
	return res
}

// lifecycle invokes a niladic contract member and records failures as
// lifecycle violations. Structurally absent members are already reported
// by the contract check, so they are not duplicated here.
func (r *ProbeResult) lifecycle(v reflect.Value, name, stage string) {
	m := v.MethodByName(name)
	if !m.IsValid() || m.Type().NumIn() != 0 {
		return
	}
	rets, panicMsg := safeCall(m, nil)
	if panicMsg != "" {
		r.Violations = append(r.Violations, Violation{
			Class: r.Class, Member: name, Kind: ViolationLifecycle,
			Detail: fmt.Sprintf("%s: panic: %s", stage, panicMsg),
		})
		return
	}
	if err := retError(rets); err != nil {
		r.Violations = append(r.Violations, Violation{
			Class: r.Class, Member: name, Kind: ViolationLifecycle,
			Detail: fmt.Sprintf("%s: %v", stage, err),
		})
	}
}

func (r *ProbeResult) probe(v reflect.Value, m Member) {
	method := v.MethodByName(m.Name)
	if !method.IsValid() {
		return
	}
	if method.Type().IsVariadic() {
		r.Skipped = append(r.Skipped, m.Name)
		return
	}
	args, ok := placeholderArgs(method.Type())
	if !ok {
		r.Skipped = append(r.Skipped, m.Name)
		return
	}

	rets, panicMsg := safeCall(method, args)
	if panicMsg != "" {
		r.Violations = append(r.Violations, Violation{
			Class: r.Class, Member: m.Name, Kind: ViolationCall,
			Detail: "panic: " + panicMsg,
		})
		return
	}

	if err := retError(rets); err != nil {
		switch {
		case isConnectivityError(err):
			// A dummy must never surface transport failures.
			r.Violations = append(r.Violations, Violation{
				Class: r.Class, Member: m.Name, Kind: ViolationCall,
				Detail: fmt.Sprintf("transport-class failure from a dummy: %v", err),
			})
		case isContractMember(m.Name) || m.Kind == KindProperty:
			// Contract members and readable properties take no
			// hardware-specific arguments, so any failure is real.
			r.Violations = append(r.Violations, Violation{
				Class: r.Class, Member: m.Name, Kind: ViolationCall,
				Detail: err.Error(),
			})
		default:
			// A parameterized family member may legitimately reject the
			// placeholder arguments (e.g. a gauge index of 123).
			r.Tolerated[m.Name] = err.Error()
		}
		return
	}

	if m.Name == "IDN" && len(rets) > 0 && rets[0].Kind() == reflect.String && rets[0].Len() == 0 {
		r.Violations = append(r.Violations, Violation{
			Class: r.Class, Member: m.Name, Kind: ViolationValue,
			Detail: "empty identification string",
		})
	}
}

func isContractMember(name string) bool {
	for _, m := range Current.Members {
		if m.Name == name {
			return true
		}
	}
	return false
}

func isConnectivityError(err error) bool {
	return errors.Is(err, ErrNotConnected) ||
		errors.Is(err, transport.ErrTimeout) ||
		errors.Is(err, transport.ErrNotOpen)
}

func placeholderArgs(mt reflect.Type) ([]reflect.Value, bool) {
	args := make([]reflect.Value, 0, mt.NumIn())
	for i := 0; i < mt.NumIn(); i++ {
		val, ok := PlaceholderFor(mt.In(i))
		if !ok {
			return nil, false
		}
		args = append(args, val)
	}
	return args, true
}

func safeCall(fn reflect.Value, args []reflect.Value) (rets []reflect.Value, panicMsg string) {
	defer func() {
		if r := recover(); r != nil {
			panicMsg = fmt.Sprint(r)
		}
	}()
	return fn.Call(args), ""
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func retError(rets []reflect.Value) error {
	if len(rets) == 0 {
		return nil
	}
	last := rets[len(rets)-1]
	if !last.Type().Implements(errType) || last.IsNil() {
		return nil
	}
	return last.Interface().(error)
}
