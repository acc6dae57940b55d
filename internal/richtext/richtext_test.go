package richtext_test

import (
	"strings"
	"testing"

	"snippets/internal/richtext"
)

func TestSanitize_StripsScript(t *testing.T) {
	out := richtext.Sanitize(`<b>bold</b><script>alert(1)</script>`)
	if strings.Contains(out, "script") {
		t.Errorf("script survived sanitize: %q", out)
	}
	if !strings.Contains(out, "<b>bold</b>") {
		t.Errorf("formatting lost: %q", out)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<p>one</p><p>two</p>", "one\ntwo"},
		{"a<br>b", "a\nb"},
		{"<i>x</i> &amp; y", "x & y"},
	}
	for _, tt := range tests {
		if got := richtext.PlainText(tt.in); got != tt.want {
			t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
