package types

import "testing"

func TestExtractName(t *testing.T) {
	tests := []struct {
		name string
		arg  interface{}
		want string
	}{
		{"MangleAtom", MangleAtom("/m1"), "/m1"},
		{"string with /", "/j1", "/j1"},
		{"plain string", "hello", "hello"},
		{"int fallback", int64(42), "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractName(tt.arg)
			if got != tt.want {
				t.Errorf("ExtractName(%v) = %q, want %q", tt.arg, got, tt.want)
			}
		})
	}
}

func TestExtractInt64(t *testing.T) {
	if v, ok := ExtractInt64(int64(9)); !ok || v != 9 {
		t.Errorf("ExtractInt64(int64) = (%d, %v)", v, ok)
	}
	if v, ok := ExtractInt64(3); !ok || v != 3 {
		t.Errorf("ExtractInt64(int) = (%d, %v)", v, ok)
	}
	if _, ok := ExtractInt64("3"); ok {
		t.Error("ExtractInt64(string) should return false")
	}
}

func TestArgInt64(t *testing.T) {
	f := Fact{Predicate: "test", Args: []interface{}{int64(99), "not int"}}

	v, ok := ArgInt64(f, 0)
	if !ok || v != 99 {
		t.Errorf("ArgInt64(f, 0) = (%d, %v), want (99, true)", v, ok)
	}

	_, ok2 := ArgInt64(f, 1)
	if ok2 {
		t.Error("ArgInt64(f, 1) should return false for string arg")
	}

	_, ok3 := ArgInt64(f, 5)
	if ok3 {
		t.Error("ArgInt64(f, 5) should return false for out of bounds")
	}
}

func TestArgName(t *testing.T) {
	f := Fact{Predicate: "test", Args: []interface{}{MangleAtom("/j1")}}
	if got := ArgName(f, 0); got != "/j1" {
		t.Errorf("ArgName(f, 0) = %q", got)
	}
	if got := ArgName(f, -1); got != "" {
		t.Errorf("ArgName(f, -1) = %q, want empty", got)
	}
}
