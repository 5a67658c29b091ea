package importer

import (
	"strings"
	"testing"

	"github.com/yuanying/epubscribe/internal/model"
)

func testIndex(paths ...string) *ImageIndex {
	images := make([]inlinedImage, len(paths))
	for i, p := range paths {
		images[i] = inlinedImage{
			Path: p,
			Resource: model.ImageResource{
				Name:    p[strings.LastIndex(p, "/")+1:],
				Content: "data:image/png;base64,URI" + string(rune('A'+i)),
				Type:    "image/png",
			},
		}
	}
	return NewImageIndex(images)
}

func TestImageIndex_Lookup(t *testing.T) {
	// Content is URIA, URIB, URIC in order.
	idx := testIndex("OEBPS/images/a.png", "OEBPS/other/a.png", "OEBPS/images/my pic.png")

	tests := []struct {
		name    string
		docPath string
		ref     string
		want    string
		wantOK  bool
	}{
		{"relative full path", "OEBPS/text/ch1.xhtml", "../images/a.png", "data:image/png;base64,URIA", true},
		{"full path beats bare name", "OEBPS/text/ch1.xhtml", "../other/a.png", "data:image/png;base64,URIB", true},
		{"bare name falls back to first", "OEBPS/text/ch1.xhtml", "elsewhere/a.png", "data:image/png;base64,URIA", true},
		{"percent encoded", "OEBPS/text/ch1.xhtml", "../images/my%20pic.png", "data:image/png;base64,URIC", true},
		{"query and fragment", "OEBPS/text/ch1.xhtml", "../images/a.png?v=1#top", "data:image/png;base64,URIA", true},
		{"http is external", "OEBPS/text/ch1.xhtml", "http://example.com/a.png", "", false},
		{"https is external", "OEBPS/text/ch1.xhtml", "HTTPS://example.com/a.png", "", false},
		{"data uri untouched", "OEBPS/text/ch1.xhtml", "data:image/png;base64,xyz", "", false},
		{"unknown", "OEBPS/text/ch1.xhtml", "../images/none.png", "", false},
		{"empty", "OEBPS/text/ch1.xhtml", "", "", false},
		{"fragment only", "OEBPS/text/ch1.xhtml", "#note", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := idx.lookup(tt.docPath, tt.ref)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("lookup(%q) = (%q, %v), want (%q, %v)", tt.ref, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRewriteReferences(t *testing.T) {
	idx := testIndex("OEBPS/images/a.png")

	in := `<p>See <a href="../images/a.png">full</a> and <a href="ch2.xhtml#x">next</a></p><img src="../images/a.png" alt="A"/><img src="https://cdn.example/x.png"/>`
	out := RewriteReferences(in, "OEBPS/text/ch1.xhtml", idx)

	if strings.Count(out, "data:image/png;base64,URIA") != 2 {
		t.Errorf("expected two rewritten references: %s", out)
	}
	for _, keep := range []string{`href="ch2.xhtml#x"`, `src="https://cdn.example/x.png"`, `alt="A"`} {
		if !strings.Contains(out, keep) {
			t.Errorf("output lost %s: %s", keep, out)
		}
	}
}

func TestRewriteReferences_PreservesMarkup(t *testing.T) {
	idx := testIndex("OEBPS/img.png")
	const uri = "data:image/png;base64,URIA"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "self-closing anchor stays in place",
			in:   `<p><a id="pg1"/>Text <img src="img.png"/></p><p>Next</p><p>Last</p>`,
			want: `<p><a id="pg1"/>Text <img src="` + uri + `"/></p><p>Next</p><p>Last</p>`,
		},
		{
			name: "self-closing span and empty div",
			in:   `<div class="x"/><span id='s'/><img alt="a" src='img.png' />`,
			want: `<div class="x"/><span id='s'/><img alt="a" src='` + uri + `' />`,
		},
		{
			name: "svg image with xlink href",
			in:   `<svg xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 10 10"><image width="10" height="10" xlink:href="img.png"/></svg>`,
			want: `<svg xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 10 10"><image width="10" height="10" xlink:href="` + uri + `"/></svg>`,
		},
		{
			name: "whole document without body",
			in:   "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<html xmlns=\"http://www.w3.org/1999/xhtml\"><head><title>T</title><link href=\"style.css\" rel=\"stylesheet\"/></head>\n<p>x<img src=\"img.png\"/></p></html>",
			want: "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<html xmlns=\"http://www.w3.org/1999/xhtml\"><head><title>T</title><link href=\"style.css\" rel=\"stylesheet\"/></head>\n<p>x<img src=\"" + uri + "\"/></p></html>",
		},
		{
			name: "unquoted and spaced values",
			in:   `<IMG SRC=img.png ALT=x><img src = "img.png">`,
			want: `<IMG SRC="` + uri + `" ALT=x><img src = "` + uri + `">`,
		},
		{
			name: "entities and comments outside the attribute",
			in:   `<!-- <img src="img.png"/> --><p title="a &amp; b">&nbsp;&#169;<img src="img.png"/></p>`,
			want: `<!-- <img src="img.png"/> --><p title="a &amp; b">&nbsp;&#169;<img src="` + uri + `"/></p>`,
		},
		{
			name: "attribute names are matched, not text",
			in:   `<p data-src="img.png">src="img.png"</p>`,
			want: `<p data-src="img.png">src="img.png"</p>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RewriteReferences(tt.in, "OEBPS/ch1.xhtml", idx)
			if got != tt.want {
				t.Fatalf("RewriteReferences()\n got: %s\nwant: %s", got, tt.want)
			}
			if strings.Count(got, `id="pg1"`) > 1 {
				t.Fatalf("id duplicated: %s", got)
			}
		})
	}
}

func TestRewriteReferences_Unchanged(t *testing.T) {
	in := `<p>No <b>images</b> here.</p>`
	if got := RewriteReferences(in, "OEBPS/ch.xhtml", testIndex("OEBPS/a.png")); got != in {
		t.Errorf("RewriteReferences() = %q, want input unchanged", got)
	}
	if got := RewriteReferences(in, "OEBPS/ch.xhtml", NewImageIndex(nil)); got != in {
		t.Errorf("RewriteReferences(empty index) = %q", got)
	}
	if got := RewriteReferences(in, "OEBPS/ch.xhtml", nil); got != in {
		t.Errorf("RewriteReferences(nil index) = %q", got)
	}
}

func TestHeadingName(t *testing.T) {
	tests := []struct {
		fragment string
		want     string
	}{
		{`<h1>Title</h1>`, "Title"},
		{`<p>x</p><h2>  Spaced  </h2>`, "Spaced"},
		{`<section><h3>Nested <em>em</em></h3></section><h1>Later</h1>`, "Nested em"},
		{`<h4>Four</h4><h5>Five</h5>`, ""},
		{`plain text`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		if got := HeadingName(tt.fragment); got != tt.want {
			t.Errorf("HeadingName(%q) = %q, want %q", tt.fragment, got, tt.want)
		}
	}
}
