package exporter

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yuanying/epubscribe/internal/epub"
	"github.com/yuanying/epubscribe/internal/model"
)

// pngDataURI is a 1x1 transparent PNG.
const pngDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

func testProject(t *testing.T) *model.Project {
	t.Helper()
	pages := []*model.Page{
		{Name: "Opening", Content: `<h1>Opening</h1><p>Hello <strong>world</strong></p><img src="` + pngDataURI + `" alt="dot"/>`},
		{Name: "Opening", Content: `<h2>Again</h2><p>Second page</p>`},
		{Name: "!!!", Content: `<p>No usable name</p>`},
	}
	images := []model.ImageResource{
		{Name: "dot.png", Content: pngDataURI, Type: "image/png"},
		{Name: "dot-copy.png", Content: pngDataURI, Type: "image/png"},
	}
	p, err := model.Assemble("Export Book", pages, images)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	return p
}

func readExport(t *testing.T, data []byte) (*epub.Archive, map[string]string) {
	t.Helper()
	a, err := epub.OpenArchive(data)
	if err != nil {
		t.Fatalf("OpenArchive() error = %v", err)
	}
	byBase := make(map[string]string)
	for _, name := range a.Entries() {
		byBase[filepath.Base(name)] = name
	}
	return a, byBase
}

func TestWriteEPUB(t *testing.T) {
	p := testProject(t)

	var buf bytes.Buffer
	if err := WriteEPUB(p, &buf); err != nil {
		t.Fatalf("WriteEPUB() error = %v", err)
	}
	a, byBase := readExport(t, buf.Bytes())

	for _, want := range []string{"styles.css", "dot.png", "opening.xhtml", "opening-2.xhtml", "page-003.xhtml"} {
		if _, ok := byBase[want]; !ok {
			t.Errorf("entry %s missing from %v", want, a.Entries())
		}
	}
	if _, ok := byBase["dot-copy.png"]; ok {
		t.Error("duplicate image payload was packaged twice")
	}

	css, err := a.ReadText(byBase["styles.css"])
	if err != nil {
		t.Fatalf("ReadText(styles.css) error = %v", err)
	}
	if css != p.StyleSheet() {
		t.Errorf("styles.css = %q, want %q", css, p.StyleSheet())
	}

	chapter, err := a.ReadText(byBase["opening.xhtml"])
	if err != nil {
		t.Fatalf("ReadText(opening.xhtml) error = %v", err)
	}
	if strings.Contains(chapter, "data:image") {
		t.Error("chapter still carries an inline data URI")
	}
	if !strings.Contains(chapter, "dot.png") {
		t.Errorf("chapter does not reference the packaged image:\n%s", chapter)
	}
	if !strings.Contains(chapter, "styles.css") {
		t.Errorf("chapter does not link the style sheet:\n%s", chapter)
	}
}

func TestWriteEPUBFile(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.epub")
	if err := WriteEPUBFile(testProject(t), dest); err != nil {
		t.Fatalf("WriteEPUBFile() error = %v", err)
	}
}

func TestExternalizeImages(t *testing.T) {
	images := map[string]string{pngDataURI: "../images/dot.png"}
	out, err := externalizeImages(`<p><img src="`+pngDataURI+`"/><a href="https://example.com">x</a></p>`, images)
	if err != nil {
		t.Fatalf("externalizeImages() error = %v", err)
	}
	if !strings.Contains(out, `src="../images/dot.png"`) || !strings.Contains(out, `href="https://example.com"`) {
		t.Errorf("externalizeImages() = %s", out)
	}
}

func TestUniqueName(t *testing.T) {
	used := make(map[string]int)
	got := []string{
		uniqueName(used, "a.xhtml"),
		uniqueName(used, "a.xhtml"),
		uniqueName(used, "a-2.xhtml"),
		uniqueName(used, "a.xhtml"),
	}
	want := []string{"a.xhtml", "a-2.xhtml", "a-2-2.xhtml", "a-3.xhtml"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("uniqueName #%d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestImageFilename(t *testing.T) {
	tests := []struct {
		img  model.ImageResource
		want string
	}{
		{model.ImageResource{Name: "cover.jpg", Content: "data:image/jpeg;base64,AAAA"}, "cover.jpg"},
		{model.ImageResource{Name: "OEBPS/images/x.gif"}, "x.gif"},
		{model.ImageResource{Name: "noext", Content: pngDataURI}, "noext.png"},
		{model.ImageResource{Name: "", Content: pngDataURI}, "image.png"},
	}
	for _, tt := range tests {
		if got := imageFilename(tt.img); got != tt.want {
			t.Errorf("imageFilename(%q) = %q, want %q", tt.img.Name, got, tt.want)
		}
	}
}

func TestMarkdown(t *testing.T) {
	long := "data:image/png;base64," + strings.Repeat("QUJD", 40)
	p, _ := model.Assemble("Notes", []*model.Page{
		{Name: "Intro", Content: `<h1>Intro</h1><p>Hello <strong>world</strong></p>`},
		{Name: "Pictures", Content: `<p><img src="` + long + `" alt="pic"/></p>`},
	}, nil)

	md, err := Markdown(p)
	if err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	if !strings.HasPrefix(md, "# Notes\n\n## Intro\n\n") {
		t.Errorf("Markdown() header:\n%s", md)
	}
	if !strings.Contains(md, "**world**") {
		t.Errorf("Markdown() lost emphasis:\n%s", md)
	}
	if !strings.Contains(md, "## Pictures") {
		t.Errorf("Markdown() missing second page:\n%s", md)
	}
	if strings.Contains(md, strings.Repeat("QUJD", 40)) {
		t.Errorf("Markdown() kept the full data URI")
	}
	if !strings.HasSuffix(md, "\n") || strings.HasSuffix(md, "\n\n") {
		t.Errorf("Markdown() should end with a single newline: %q", md[len(md)-5:])
	}
}
