package dedupe

import "testing"

func TestWithinDistance(t *testing.T) {
	cases := []struct {
		a, b string
		max  int
		want bool
	}{
		{"rossi", "rossi", 1, true},
		{"rossi", "rosso", 1, true},  // substitution
		{"rossi", "rossii", 1, true}, // insertion
		{"rossi", "ross", 1, true},   // deletion
		{"bianchi", "bianco", 1, false},
		{"bianchi", "bianco", 2, true},
		{"abc", "xyz", 1, false},
		{"", "a", 1, true},
		{"", "ab", 1, false},
		{"", "", 0, true},
	}
	for _, c := range cases {
		if got := withinDistance(c.a, c.b, c.max); got != c.want {
			t.Errorf("withinDistance(%q, %q, %d) = %v, want %v", c.a, c.b, c.max, got, c.want)
		}
	}
}
