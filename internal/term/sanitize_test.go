package term

import "testing"

func TestNormalize_StripsCSI(t *testing.T) {
	in := "\x1b[31mred text\x1b[0m and \x1b[1;32mgreen\x1b[m"
	want := "red text and green"
	if got := Normalize(in); got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalize_StripsOSC(t *testing.T) {
	cases := []struct{ in, want string }{
		{"\x1b]0;window title\x07hello", "hello"},
		{"\x1b]8;;http://example.com\x1b\\link\x1b]8;;\x1b\\", "link"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalize_StripsIntegrationNoise(t *testing.T) {
	in := "<0>user@host ~> ls<130>"
	want := "user@host ~> ls"
	if got := Normalize(in); got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalize_StripsControlBytes(t *testing.T) {
	in := "line one\r\nline\x00 two\x08\x7f"
	want := "line one\nline two"
	if got := Normalize(in); got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalize_StripsSpecialGlyphs(t *testing.T) {
	in := "output␌ done⏎"
	want := "output done"
	if got := Normalize(in); got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalize_PreservesPlainText(t *testing.T) {
	in := "total 24\ndrwxr-xr-x  3 user user 4096 Jan  1 00:00 .\nuser@host:~$ "
	if got := Normalize(in); got != in {
		t.Errorf("Normalize altered plain text: %q", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	cases := []string{
		"\x1b[31mred\x1b[0m\r\n<12>plain\x00",
		"already clean",
		"",
		"\x1b]0;title\x07body\x1b[2Jtail",
		// Removals that expose new matches must still settle in one call.
		"<<12>1>",
		"<1\x012>",
		"a<<3><4>5>b",
	}
	for _, in := range cases {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
