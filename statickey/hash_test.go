package statickey

import "testing"

func TestHashKnownVectors(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 5381},
		{"Test", 0x7c885313},
	}
	for _, tc := range tests {
		if got := Hash(tc.in); got != tc.want {
			t.Errorf("Hash(%q) = 0x%x, want 0x%x", tc.in, got, tc.want)
		}
	}
}
