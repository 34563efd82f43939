package types

import "fmt"

// =============================================================================
// FACT ARGUMENT EXTRACTION UTILITIES
// =============================================================================
//
// Fact.Args values can be any of these Go types (after Mangle constant→Go
// conversion in FromAtom):
//   - MangleAtom: Mangle name constants (e.g., "/j1_o1", "/m2")
//   - string:     Plain text values
//   - int64:      Integer values (Mangle NumberType)
//   - int:        Go integers (from manual fact construction)

// ExtractName extracts a Mangle name constant string from a fact argument.
// Returns the raw string value (with "/" prefix for atoms).
func ExtractName(arg interface{}) string {
	switch v := arg.(type) {
	case MangleAtom:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ExtractInt64 extracts an int64 value from a fact argument.
// Returns (value, true) on success, (0, false) if the type is incompatible.
func ExtractInt64(arg interface{}) (int64, bool) {
	switch v := arg.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// ArgName is a convenience wrapper that extracts a name from fact.Args[i]
// with bounds checking. Returns "" if index is out of range.
func ArgName(f Fact, i int) string {
	if i < 0 || i >= len(f.Args) {
		return ""
	}
	return ExtractName(f.Args[i])
}

// ArgInt64 is a convenience wrapper that extracts an int64 from fact.Args[i]
// with bounds checking. Returns (0, false) if index is out of range.
func ArgInt64(f Fact, i int) (int64, bool) {
	if i < 0 || i >= len(f.Args) {
		return 0, false
	}
	return ExtractInt64(f.Args[i])
}
