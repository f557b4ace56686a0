package normalizer

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{" a\tb\r\nc  d ", "a b c d"},
		{"", ""},
		{"   ", ""},
		{"\r\n\t", ""},
		{"cat", "cat"},
		{"Cat\n", "Cat"},
		{" dog ", "dog"},
		{"car  door", "car door"},
		{"person walking\n\t\tleft", "person walking left"},
		{"sky  ", "sky"},
		{"a\u00a0b", "a\u00a0b"},
		{"\x01cat\x01", "cat"},
		{"\x00 \x1fcat", "cat"},
		{"a\x01b", "a\x01b"},
		{"a\v\fb", "a b"},
		{"caf\u00e9  au lait", "caf\u00e9 au lait"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		" a\tb\r\nc  d ",
		"",
		"window\n\n  frame",
		" tree ",
		"plain",
		" x \v y ",
		"\x01 a\u00a0 b \x02",
		"a \x01 b",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestFold(t *testing.T) {
	raw := []string{"cat", "Cat\n", " dog ", "cat", "  CAR\tDoor "}
	want := []string{"cat", "cat", "dog", "cat", "car door"}
	for i, in := range raw {
		if got := Fold(in); got != want[i] {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want[i])
		}
	}
}
