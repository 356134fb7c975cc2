package server

import "testing"

func TestFormatAndParseSizeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, n := range []int64{0, 1, 2048, 1 << 40} {
		s := formatSize(n)
		got, err := parseSize(s)
		if err != nil {
			t.Fatalf("parseSize(%q) error: %v", s, err)
		}
		if got != n {
			t.Errorf("parseSize(formatSize(%d)) = %d, want %d", n, got, n)
		}
	}
}

func TestParseSizeRejectsNonNumeric(t *testing.T) {
	t.Parallel()

	if _, err := parseSize("not-a-number"); err == nil {
		t.Error("parseSize() on non-numeric input = nil error, want an error")
	}
}
