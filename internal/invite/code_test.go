package invite

import "testing"

func TestGenerateShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != Length {
			t.Fatalf("len(%q) = %d, want %d", code, len(code), Length)
		}
		if !Valid(code) {
			t.Fatalf("generated code %q is not valid", code)
		}
	}
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		seen[code] = struct{}{}
	}
	// 36^8 combinations; a repeat in 1000 draws would point at a broken source.
	if len(seen) != 1000 {
		t.Errorf("got %d distinct codes out of 1000", len(seen))
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  k7b2n9xq \n"); got != "K7B2N9XQ" {
		t.Errorf("Normalize = %q, want %q", got, "K7B2N9XQ")
	}
}

func TestValid(t *testing.T) {
	cases := map[string]bool{
		"K7B2N9XQ":  true,
		"k7b2n9xq":  false,
		"K7B2N9X":   false,
		"K7B2N9XQZ": false,
		"K7B2-9XQ":  false,
		"":          false,
	}
	for code, want := range cases {
		if got := Valid(code); got != want {
			t.Errorf("Valid(%q) = %v, want %v", code, got, want)
		}
	}
}
