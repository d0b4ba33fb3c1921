package device

import "reflect"

// Canonical placeholder values. Placeholders are deterministic and
// independent of any input arguments: the same declared type always maps
// to the same value. They serve two roles: the verifier synthesizes
// probe arguments from them, and the simulated transport answers unknown
// commands with the string form.
const (
	PlaceholderInt    = 123
	PlaceholderFloat  = 1.23
	PlaceholderString = "123"
	PlaceholderBool   = true
)

// PlaceholderFor returns the canonical placeholder for a type. The
// second return is false when the type has no defined placeholder, in
// which case callers skip the member rather than guess.
func PlaceholderFor(t reflect.Type) (reflect.Value, bool) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(PlaceholderString).Convert(t), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.ValueOf(PlaceholderInt).Convert(t), true
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(PlaceholderFloat).Convert(t), true
	case reflect.Bool:
		return reflect.ValueOf(PlaceholderBool).Convert(t), true
	case reflect.Slice:
		elem, ok := PlaceholderFor(t.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		s := reflect.MakeSlice(t, 0, 3)
		for i := 0; i < 3; i++ {
			s = reflect.Append(s, elem)
		}
		return s, true
	default:
		return reflect.Value{}, false
	}
}
