package rpc

import "testing"

func TestSanitizeSender(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unique name", ":1.42", "_1_42"},
		{"already sanitized", "_1_42", "_1_42"},
		{"well-known name", "org.example.App", "org_example_App"},
		{"empty", "", ""},
		{"only disallowed", ":.:.", "____"},
		{"mixed unicode", ":1.42é", "_1_42__"},
		{"keeps alphanumerics", "abcXYZ019_", "abcXYZ019_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeSender(tt.input); got != tt.want {
				t.Errorf("SanitizeSender(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeSenderIdempotent(t *testing.T) {
	inputs := []string{":1.42", "org.example.App", "", "a-b-c", "\x00\xff", ":1.999999"}
	for _, input := range inputs {
		once := SanitizeSender(input)
		twice := SanitizeSender(once)
		if once != twice {
			t.Errorf("sanitize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestRequestPath(t *testing.T) {
	got := RequestPath(":1.42", "abc123")
	want := "/org/freedesktop/portal/desktop/request/_1_42/abc123"
	if string(got) != want {
		t.Errorf("RequestPath(:1.42, abc123) = %q, want %q", got, want)
	}
	if !got.IsValid() {
		t.Errorf("RequestPath produced invalid object path %q", got)
	}
}

func TestSessionPath(t *testing.T) {
	got := SessionPath(":1.42", "abc123")
	want := "/org/freedesktop/portal/desktop/session/_1_42/abc123"
	if string(got) != want {
		t.Errorf("SessionPath(:1.42, abc123) = %q, want %q", got, want)
	}
	if !got.IsValid() {
		t.Errorf("SessionPath produced invalid object path %q", got)
	}
}

func TestRequestPathFromGeneratedToken(t *testing.T) {
	path := RequestPath(":1.7", NewHandleToken())
	if !path.IsValid() {
		t.Errorf("generated token produced invalid object path %q", path)
	}
}
