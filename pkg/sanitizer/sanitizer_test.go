package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Opening   Keynote ", "Opening Keynote"},
		{"\tPanel\n Discussion", "Panel Discussion"},
		{"", ""},
		{"   ", ""},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := TrimAndNormalize(tc.in); got != tc.want {
			t.Errorf("TrimAndNormalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{" Jane.Doe@Example.COM ", "jane.doe@example.com"},
		{"user@host", "user@host"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeEmail(tc.in); got != tc.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
