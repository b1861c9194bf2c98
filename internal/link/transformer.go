package link

import (
	"regexp"
	"strings"
)

// DefaultScheme is the app scheme substituted for https in mirror text.
const DefaultScheme = "notion"

// workspaceLinkPattern matches the platform's auto-markup of a workspace link:
// the angle brackets, the URL and an optional |label suffix.
var workspaceLinkPattern = regexp.MustCompile(`<https://(?:www\.)?notion\.so/[^<>|\s]*(?:\|[^<>]*)?>`)

// Span is one matched workspace link exactly as it appears in a message body.
type Span string

// Transformer extracts workspace links from message bodies and renders the
// mirror text offering the app-scheme version of those links.
type Transformer struct {
	scheme string
}

// NewTransformer creates a transformer that rewrites https to the given scheme.
// An empty scheme falls back to DefaultScheme.
func NewTransformer(scheme string) *Transformer {
	scheme = strings.TrimSpace(scheme)
	if scheme == "" {
		scheme = DefaultScheme
	}
	return &Transformer{scheme: scheme}
}

// Scheme returns the app scheme used by Render.
func (t *Transformer) Scheme() string {
	return t.scheme
}

// Extract returns all non-overlapping workspace links in body, leftmost first.
// The result is nil when the body contains no link.
func (t *Transformer) Extract(body string) []Span {
	matches := workspaceLinkPattern.FindAllString(body, -1)
	if len(matches) == 0 {
		return nil
	}

	spans := make([]Span, len(matches))
	for i, m := range matches {
		spans[i] = Span(m)
	}
	return spans
}

// Render joins the spans with newlines and substitutes the scheme literally.
// Any "https" inside a display label is rewritten as well.
func (t *Transformer) Render(spans []Span) string {
	parts := make([]string, len(spans))
	for i, s := range spans {
		parts[i] = string(s)
	}
	return strings.ReplaceAll(strings.Join(parts, "\n"), "https", t.scheme)
}

// Mirror is Render(Extract(body)). ok is false when body has no link.
func (t *Transformer) Mirror(body string) (text string, ok bool) {
	spans := t.Extract(body)
	if len(spans) == 0 {
		return "", false
	}
	return t.Render(spans), true
}

// Equal reports whether two link sequences are identical, order included.
func Equal(a, b []Span) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
