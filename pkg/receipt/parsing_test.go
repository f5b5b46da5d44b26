package receipt

import "testing"

func TestParseAmountCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"45.00", 4500},
		{"1,234.56", 123456},
		{"1.234,56", 123456},
		{"TOTAL 89.90", 8990},
		{"45", 4500},
		{"2 x 10.00 20.00", 2000}, // last token on the line wins
	}
	for _, c := range cases {
		got, err := ParseAmountCents(c.in)
		if err != nil {
			t.Fatalf("ParseAmountCents(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseAmountCents(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseAmountCentsRejectsNoise(t *testing.T) {
	for _, in := range []string{"", "no digits here", "x 1 y"} {
		if _, err := ParseAmountCents(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
