package arm

import "testing"

func TestToInt64(t *testing.T) {
	cases := []struct {
		in   any
		want int64
	}{
		{int64(42), 42},
		{42, 42},
		{int32(-7), -7},
		{float64(3), 3},
		{"42", 42},
		{[]byte("42"), 42},
		{"notanumber", 0},
		{nil, 0},
	}
	for _, c := range cases {
		if got := toInt64(c.in); got != c.want {
			t.Errorf("toInt64(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestValueEq(t *testing.T) {
	cases := []struct {
		a, b any
		want bool
	}{
		{nil, nil, true},
		{nil, int64(0), false},
		{int64(1), int64(1), true},
		{int64(1), 1, true},
		{[]byte("abc"), "abc", true},
		{int64(42), "42", true},
		{"42", int64(42), true},
		{true, int64(1), true},
		{false, int64(0), true},
		{"a", "b", false},
		{int64(1), int64(2), false},
	}
	for _, c := range cases {
		if got := valueEq(c.a, c.b); got != c.want {
			t.Errorf("valueEq(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestKeyString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{[]byte("abc"), "abc"},
		{int64(42), "42"},
		{7, "7"},
	}
	for _, c := range cases {
		if got := keyString(c.in); got != c.want {
			t.Errorf("keyString(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
