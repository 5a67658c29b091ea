package epub

import (
	"strings"
)

// XHTMLMediaType is the only media type the chapter extractor accepts.
const XHTMLMediaType = "application/xhtml+xml"

// Content represents a chapter document read from the archive
type Content struct {
	ID   string // Manifest ID
	Path string // File path
	// Body is the markup between the first <body…> tag and the last
	// </body>, or the whole document when no body tag exists.
	Body    string
	HasBody bool
}

// LoadContent reads a chapter document and isolates its body fragment.
func LoadContent(a *Archive, item ManifestItem) (*Content, error) {
	text, err := a.ReadText(item.Href)
	if err != nil {
		return nil, err
	}
	body, ok := ExtractBody(text)
	return &Content{
		ID:      item.ID,
		Path:    item.Href,
		Body:    body,
		HasBody: ok,
	}, nil
}

// ExtractBody returns the inner markup of the body element. Tag matching is
// case-insensitive. Without an opening body tag the text is returned as-is
// and ok is false; without a closing tag everything after the opening tag is
// returned.
func ExtractBody(text string) (body string, ok bool) {
	lower := asciiLower(text)
	start := findBodyOpen(lower)
	if start < 0 {
		return text, false
	}
	end := strings.IndexByte(text[start:], '>')
	if end < 0 {
		return text, false
	}
	start += end + 1

	stop := strings.LastIndex(lower, "</body>")
	if stop < start {
		return text[start:], true
	}
	return text[start:stop], true
}

// findBodyOpen finds "<body" followed by whitespace, "/" or ">" so that
// elements such as <bodytext> are not mistaken for the body.
func findBodyOpen(lower string) int {
	offset := 0
	for {
		i := strings.Index(lower[offset:], "<body")
		if i < 0 {
			return -1
		}
		i += offset
		next := i + len("<body")
		if next >= len(lower) {
			return -1
		}
		switch lower[next] {
		case '>', '/', ' ', '\t', '\n', '\r', '\f':
			return i
		}
		offset = next
	}
}

// asciiLower lowers A-Z only, keeping byte offsets aligned with the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
