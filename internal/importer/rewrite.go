package importer

import (
	"bytes"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ImageIndex looks images up by their full archive path first and by bare
// filename second. When two images share a filename the first one in
// manifest order owns the bare name.
type ImageIndex struct {
	byPath map[string]string
	byName map[string]string
}

// NewImageIndex indexes inlined images by path and filename.
func NewImageIndex(images []inlinedImage) *ImageIndex {
	idx := &ImageIndex{
		byPath: make(map[string]string, len(images)),
		byName: make(map[string]string, len(images)),
	}
	for _, img := range images {
		key := path.Clean(img.Path)
		if _, ok := idx.byPath[key]; !ok {
			idx.byPath[key] = img.Resource.Content
		}
		if _, ok := idx.byName[img.Resource.Name]; !ok {
			idx.byName[img.Resource.Name] = img.Resource.Content
		}
	}
	return idx
}

// Len returns the number of distinct image paths.
func (idx *ImageIndex) Len() int { return len(idx.byPath) }

// lookup resolves ref, as written in a document at docPath, to a data URI.
func (idx *ImageIndex) lookup(docPath, ref string) (string, bool) {
	ref = stripQueryAndFragment(strings.TrimSpace(ref))
	if ref == "" || isExternalRef(ref) {
		return "", false
	}
	decoded := ref
	if d, err := url.PathUnescape(ref); err == nil {
		decoded = d
	}

	if docPath != "" && !strings.HasPrefix(decoded, "/") {
		full := path.Clean(path.Join(path.Dir(docPath), decoded))
		if uri, ok := idx.byPath[full]; ok {
			return uri, true
		}
	}

	if uri, ok := idx.byName[path.Base(decoded)]; ok {
		return uri, true
	}
	if uri, ok := idx.byName[path.Base(ref)]; ok {
		return uri, true
	}
	return "", false
}

// isExternalRef reports whether ref must never be rewritten: absolute
// http(s) URLs and values that are already data URIs.
func isExternalRef(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "data:")
}

func stripQueryAndFragment(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// RewriteReferences replaces src/href attribute values in the body fragment
// that point at an inlined image with the image's data URI. docPath is the
// archive path of the chapter the fragment came from. Only the matched
// attribute values change; every other byte of the fragment is kept.
func RewriteReferences(fragment, docPath string, idx *ImageIndex) string {
	if idx == nil || idx.Len() == 0 || fragment == "" {
		return fragment
	}

	var (
		out     strings.Builder
		changed bool
	)
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return fragment
			}
			break
		}
		raw := z.Raw()
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}
		rewritten, ok := rewriteTag(raw, docPath, idx)
		if ok {
			changed = true
			raw = rewritten
		}
		out.Write(raw)
	}
	if !changed {
		return fragment
	}
	return out.String()
}

// isReferenceAttr reports whether an attribute carries a resource reference.
func isReferenceAttr(key string) bool {
	switch strings.ToLower(key) {
	case "src", "href", "xlink:href":
		return true
	}
	return false
}

// rewriteTag splices data URIs into the value spans of the reference
// attributes of one raw start tag.
func rewriteTag(raw []byte, docPath string, idx *ImageIndex) ([]byte, bool) {
	attrs := scanAttrs(raw)
	var (
		out  []byte
		last int
	)
	for _, a := range attrs {
		if !a.hasValue || !isReferenceAttr(string(raw[a.keyStart:a.keyEnd])) {
			continue
		}
		val := html.UnescapeString(string(raw[a.valStart:a.valEnd]))
		uri, ok := idx.lookup(docPath, val)
		if !ok {
			continue
		}
		out = append(out, raw[last:a.valStart]...)
		if a.quoted {
			out = append(out, uri...)
		} else {
			out = append(out, '"')
			out = append(out, uri...)
			out = append(out, '"')
		}
		last = a.valEnd
	}
	if out == nil {
		return raw, false
	}
	return append(out, raw[last:]...), true
}

// rawAttr holds byte offsets into a raw start tag. For quoted values the
// span excludes the quotes.
type rawAttr struct {
	keyStart, keyEnd int
	valStart, valEnd int
	hasValue, quoted bool
}

// scanAttrs locates the attributes of a raw start tag such as
// `<img class=x src="a.png"/>`, following the tokenizer's attribute rules.
func scanAttrs(raw []byte) []rawAttr {
	isSpace := func(c byte) bool {
		return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
	}
	n := len(raw)
	i := 1
	for i < n && !isSpace(raw[i]) && raw[i] != '/' && raw[i] != '>' {
		i++
	}

	var attrs []rawAttr
	for i < n {
		for i < n && (isSpace(raw[i]) || raw[i] == '/') {
			i++
		}
		if i >= n || raw[i] == '>' {
			break
		}
		a := rawAttr{keyStart: i}
		i++
		for i < n && !isSpace(raw[i]) && raw[i] != '/' && raw[i] != '>' && raw[i] != '=' {
			i++
		}
		a.keyEnd = i
		j := i
		for j < n && isSpace(raw[j]) {
			j++
		}
		if j < n && raw[j] == '=' {
			j++
			for j < n && isSpace(raw[j]) {
				j++
			}
			a.hasValue = true
			if j < n && (raw[j] == '"' || raw[j] == '\'') {
				quote := raw[j]
				a.quoted = true
				a.valStart = j + 1
				end := bytes.IndexByte(raw[a.valStart:], quote)
				if end < 0 {
					a.valEnd = n
					i = n
				} else {
					a.valEnd = a.valStart + end
					i = a.valEnd + 1
				}
			} else {
				a.valStart = j
				for j < n && !isSpace(raw[j]) && raw[j] != '>' {
					j++
				}
				a.valEnd = j
				i = j
			}
		}
		attrs = append(attrs, a)
	}
	return attrs
}

// parseFragment parses markup as the children of a <body> element and wraps
// the result in a goquery document rooted at a detached body node. It is
// used for read-only queries; rendered output would not preserve the input.
func parseFragment(markup string) (*goquery.Document, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return goquery.NewDocumentFromNode(root), nil
}
