// Package markdown renders the site's legal documents (privacy policy,
// terms of service) from Markdown to HTML as a templ component. It
// supports the subset those documents use: headers, bold, italic, inline
// code, links, paragraphs, and unordered lists.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

var (
	reBold             = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnderscore   = regexp.MustCompile(`__(.+?)__`)
	reItalic           = regexp.MustCompile(`\*([^*]+)\*`)
	reItalicUnderscore = regexp.MustCompile(`_([^_]+)_`)
	reInlineCode       = regexp.MustCompile("`([^`]+)`")
	reLink             = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
)

// Markdown returns a templ.Component that renders md as HTML.
func Markdown(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderMarkdown(&buf, content)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// RenderMarkdown writes the HTML representation of md to buf.
func RenderMarkdown(buf *bytes.Buffer, md string) {
	lines := strings.Split(md, "\n")
	inList := false
	inPara := false

	flushPara := func() {
		if inPara {
			buf.WriteString("</p>")
			inPara = false
		}
	}
	flushList := func() {
		if inList {
			buf.WriteString("</ul>")
			inList = false
		}
	}

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")

		if strings.TrimSpace(line) == "" {
			flushPara()
			flushList()
			continue
		}

		switch {
		case strings.HasPrefix(line, "# "):
			flushPara()
			flushList()
			buf.WriteString("<h1>")
			buf.WriteString(FormatInline(strings.TrimSpace(line[2:])))
			buf.WriteString("</h1>")
		case strings.HasPrefix(line, "## "):
			flushPara()
			flushList()
			buf.WriteString("<h2>")
			buf.WriteString(FormatInline(strings.TrimSpace(line[3:])))
			buf.WriteString("</h2>")
		case strings.HasPrefix(line, "### "):
			flushPara()
			flushList()
			buf.WriteString("<h3>")
			buf.WriteString(FormatInline(strings.TrimSpace(line[4:])))
			buf.WriteString("</h3>")
		case strings.HasPrefix(line, "- "):
			if !inList {
				flushPara()
				buf.WriteString("<ul>")
				inList = true
			}
			buf.WriteString("<li>")
			buf.WriteString(FormatInline(strings.TrimSpace(line[2:])))
			buf.WriteString("</li>")
		default:
			if !inPara {
				flushList()
				buf.WriteString("<p>")
				inPara = true
			} else {
				buf.WriteString(" ")
			}
			buf.WriteString(FormatInline(strings.TrimSpace(line)))
		}
	}
	flushPara()
	flushList()
}

// FormatInline applies inline formatting (bold, italic, inline code,
// links) to s.
func FormatInline(s string) string {
	escaped := html.EscapeString(s)
	escaped = reLink.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reLink.FindStringSubmatch(m)
		if len(match) < 3 {
			return m
		}
		href := SafeURL(match[2])
		if href == "" {
			return match[1]
		}
		return `<a href="` + href + `">` + match[1] + `</a>`
	})
	// Inline code: extract and replace with placeholders so bold/italic
	// regex does not format content inside backticks.
	var inlineCodeBlocks []string
	escaped = reInlineCode.ReplaceAllStringFunc(escaped, func(m string) string {
		match := reInlineCode.FindStringSubmatch(m)
		placeholder := "\x00IC" + strconv.Itoa(len(inlineCodeBlocks)) + "\x00"
		inlineCodeBlocks = append(inlineCodeBlocks, "<code>"+match[1]+"</code>")
		return placeholder
	})
	// Apply bold/italic only outside HTML tags so URLs in href are not corrupted
	escaped = ApplyOutsideTags(escaped, func(seg string) string {
		seg = reBold.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reBoldUnderscore.ReplaceAllString(seg, "<strong>$1</strong>")
		seg = reItalic.ReplaceAllString(seg, "<em>$1</em>")
		seg = reItalicUnderscore.ReplaceAllString(seg, "<em>$1</em>")
		return seg
	})
	for i, code := range inlineCodeBlocks {
		escaped = strings.Replace(escaped, "\x00IC"+strconv.Itoa(i)+"\x00", code, 1)
	}
	return escaped
}

// ApplyOutsideTags applies fn only to text segments outside HTML tags,
// so that formatting regexes never touch URLs inside href attributes.
func ApplyOutsideTags(s string, fn func(string) string) string {
	var buf strings.Builder
	for len(s) > 0 {
		lt := strings.Index(s, "<")
		if lt < 0 {
			buf.WriteString(fn(s))
			break
		}
		if lt > 0 {
			buf.WriteString(fn(s[:lt]))
		}
		gt := strings.Index(s[lt:], ">")
		if gt < 0 {
			buf.WriteString(s[lt:])
			break
		}
		buf.WriteString(s[lt : lt+gt+1])
		s = s[lt+gt+1:]
	}
	return buf.String()
}

// SafeURL validates and sanitizes a URL for use in HTML attributes.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
