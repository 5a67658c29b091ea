package epub

import (
	"errors"
	"testing"
)

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "simple",
			text:   `<html><head><title>x</title></head><body><h1>Hi</h1></body></html>`,
			want:   `<h1>Hi</h1>`,
			wantOK: true,
		},
		{
			name:   "attributes and upper case",
			text:   `<HTML><BODY class="c" id="b"><p>Text</p></BODY></HTML>`,
			want:   `<p>Text</p>`,
			wantOK: true,
		},
		{
			name:   "bodytext element is not body",
			text:   `<html><bodytext>no</bodytext><body>yes</body></html>`,
			want:   `yes`,
			wantOK: true,
		},
		{
			name:   "last closing tag",
			text:   `<body><p>a</p></body><p>b</p></body>`,
			want:   `<p>a</p></body><p>b</p>`,
			wantOK: true,
		},
		{
			name:   "no closing tag",
			text:   `<html><body><p>open ended`,
			want:   `<p>open ended`,
			wantOK: true,
		},
		{
			name:   "no body tag",
			text:   `<p>fragment only</p>`,
			want:   `<p>fragment only</p>`,
			wantOK: false,
		},
		{
			name:   "non-ascii before body keeps offsets",
			text:   `<title>İstanbul ÄÖÜ</title><body>ok</body>`,
			want:   `ok`,
			wantOK: true,
		},
		{
			name:   "multiline open tag",
			text:   "<body\n  xml:lang=\"en\"\n>\n<p>x</p>\n</body>",
			want:   "\n<p>x</p>\n",
			wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractBody(tt.text)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("ExtractBody() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLoadContent(t *testing.T) {
	a := openTestArchive(t, nil,
		zipEntry{"OEBPS/text/ch1.xhtml", `<?xml version="1.0"?><html><body><h1>One</h1></body></html>`},
	)
	item := ManifestItem{ID: "ch1", Href: "OEBPS/text/ch1.xhtml", MediaType: XHTMLMediaType}

	c, err := LoadContent(a, item)
	if err != nil {
		t.Fatalf("LoadContent() error = %v", err)
	}
	if c.ID != "ch1" || c.Path != "OEBPS/text/ch1.xhtml" {
		t.Errorf("Content = %+v", c)
	}
	if !c.HasBody || c.Body != "<h1>One</h1>" {
		t.Errorf("Body = %q, HasBody = %v", c.Body, c.HasBody)
	}
}

func TestLoadContent_Missing(t *testing.T) {
	a := openTestArchive(t, nil, zipEntry{"other.txt", "x"})
	_, err := LoadContent(a, ManifestItem{ID: "gone", Href: "OEBPS/gone.xhtml"})
	if !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("LoadContent() error = %v, want ErrEntryNotFound", err)
	}
}
