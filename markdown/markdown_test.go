package markdown

import (
	"bytes"
	"strings"
	"testing"
)

func render(md string) string {
	var buf bytes.Buffer
	RenderMarkdown(&buf, md)
	return buf.String()
}

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want string
	}{
		{"h1", "# Privacy Policy", "<h1>Privacy Policy</h1>"},
		{"h2", "## Data We Collect", "<h2>Data We Collect</h2>"},
		{"h3", "### Cookies", "<h3>Cookies</h3>"},
		{"paragraph", "Just text.", "<p>Just text.</p>"},
		{
			"paragraph joins lines",
			"first line\nsecond line",
			"<p>first line second line</p>",
		},
		{
			"blank line splits paragraphs",
			"one\n\ntwo",
			"<p>one</p><p>two</p>",
		},
		{
			"unordered list",
			"- alpha\n- beta",
			"<ul><li>alpha</li><li>beta</li></ul>",
		},
		{
			"list then paragraph",
			"- item\n\nafter",
			"<ul><li>item</li></ul><p>after</p>",
		},
		{"bold", "**strong** words", "<p><strong>strong</strong> words</p>"},
		{"bold underscore", "__strong__", "<p><strong>strong</strong></p>"},
		{"italic", "*soft* words", "<p><em>soft</em> words</p>"},
		{"inline code", "run `go doc`", "<p>run <code>go doc</code></p>"},
		{
			"code not formatted inside",
			"`**raw**`",
			"<p><code>**raw**</code></p>",
		},
		{
			"link",
			"[home](/about/)",
			`<p><a href="/about/">home</a></p>`,
		},
		{
			"link with asterisk url survives",
			"[x](https://example.com/a*b*c) and *it*",
			`<p><a href="https://example.com/a*b*c">x</a> and <em>it</em></p>`,
		},
		{
			"unsafe link dropped",
			"[x](javascript:void0)",
			"<p>x</p>",
		},
		{"escapes html", "<script>", "<p>&lt;script&gt;</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := render(tt.md); got != tt.want {
				t.Errorf("render(%q) = %q, want %q", tt.md, got, tt.want)
			}
		})
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"mailto:hello@example.com", "mailto:hello@example.com"},
		{"tel:+15551234", "tel:+15551234"},
		{"/legal/terms/", "/legal/terms/"},
		{"#section", "#section"},
		{"javascript:alert(1)", ""},
		{"data:text/html,x", ""},
		{"relative/path", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.in); got != tt.want {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyOutsideTags(t *testing.T) {
	upper := strings.ToUpper
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "PLAIN"},
		{`a <b href="keep">c</b> d`, `A <b href="keep">C</b> D`},
		{"<only-tag>", "<only-tag>"},
		{"broken <tag", "BROKEN <tag"},
	}
	for _, tt := range tests {
		if got := ApplyOutsideTags(tt.in, upper); got != tt.want {
			t.Errorf("ApplyOutsideTags(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
