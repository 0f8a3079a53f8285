package price

import "testing"

func TestParseValid(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", 100_000_000},
		{"1.", 100_000_000},
		{"0.00000001", 1},
		{"0.000000005", 1},   // half-up rounding on the 9th digit
		{"0.000000004", 0},   // rounds down
		{"1.000000005", 100_000_001},
		{"1.000000004", 100_000_000},
		{"1.5", 150_000_000},
		{"999999.99999999", 99_999_999_999_999},
		{"123.456", 12_345_600_000},
		{"0.1", 10_000_000},
		{"100", 10_000_000_000},
		// digits past the 9th fractional place are ignored, not rounded
		{"1.000000001234", 100_000_000},
		{"1.999999995", 200_000_000},
	}
	for _, c := range cases {
		got, err := Parse([]byte(c.in))
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("Parse(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []string{
		"",
		".",
		"1.2.3",
		"abc",
		"1.2a",
		"-1",
		"1.-2",
		"1..2",
	}
	for _, in := range cases {
		if _, err := Parse([]byte(in)); err == nil {
			t.Fatalf("Parse(%q): expected error, got none", in)
		}
	}
}

func TestParseOverflow(t *testing.T) {
	// far beyond what an i64 scaled by 1e8 can represent
	_, err := Parse([]byte("99999999999999999999"))
	if err == nil {
		t.Fatalf("expected overflow error for huge integer part")
	}
}

func TestParseEmptyFracIsZero(t *testing.T) {
	got, err := Parse([]byte("42"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42*Scale {
		t.Fatalf("got %d, want %d", got, 42*Scale)
	}
}
