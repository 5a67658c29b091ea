// Package exporter writes projects back out as EPUB packages or Markdown.
package exporter

import (
	"encoding/base64"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	epub "github.com/go-shiori/go-epub"
	"github.com/gosimple/slug"
	"golang.org/x/net/html"

	"github.com/yuanying/epubscribe/internal/model"
)

const styleFilename = "styles.css"

// EPUB builds an EPUB package from a project: one section per page in page
// order, the project style sheet, and every image resource written as a
// separate file with inline data URIs pointing back at it.
func EPUB(p *model.Project) (*epub.Epub, error) {
	e, err := epub.NewEpub(p.Name)
	if err != nil {
		return nil, fmt.Errorf("creating epub: %w", err)
	}

	cssSource := "data:text/css;base64," + base64.StdEncoding.EncodeToString([]byte(p.StyleSheet()))
	cssPath, err := e.AddCSS(cssSource, styleFilename)
	if err != nil {
		return nil, fmt.Errorf("adding stylesheet: %w", err)
	}

	images := make(map[string]string, len(p.Images))
	used := make(map[string]int)
	for _, img := range p.Images {
		if _, done := images[img.Content]; done {
			continue
		}
		name := uniqueName(used, imageFilename(img))
		internal, err := e.AddImage(img.Content, name)
		if err != nil {
			return nil, fmt.Errorf("adding image %s: %w", img.Name, err)
		}
		images[img.Content] = internal
	}

	sections := make(map[string]int)
	for i, pg := range p.Pages {
		body, err := externalizeImages(pg.Content, images)
		if err != nil {
			return nil, fmt.Errorf("rendering page %q: %w", pg.Name, err)
		}
		filename := uniqueName(sections, sectionFilename(pg.Name, i)+".xhtml")
		if _, err := e.AddSection(body, pg.Name, filename, cssPath); err != nil {
			return nil, fmt.Errorf("adding page %q: %w", pg.Name, err)
		}
	}
	return e, nil
}

// WriteEPUB writes the package for p to w.
func WriteEPUB(p *model.Project, w io.Writer) error {
	e, err := EPUB(p)
	if err != nil {
		return err
	}
	if _, err := e.WriteTo(w); err != nil {
		return fmt.Errorf("writing epub: %w", err)
	}
	return nil
}

// WriteEPUBFile writes the package for p to a file.
func WriteEPUBFile(p *model.Project, dest string) error {
	e, err := EPUB(p)
	if err != nil {
		return err
	}
	return e.Write(dest)
}

// externalizeImages re-renders page markup as XHTML-compatible HTML and
// points src/href values that carry a known data URI at the packaged file.
func externalizeImages(content string, images map[string]string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + content + "</body></html>"))
	if err != nil {
		return "", err
	}
	body := doc.Find("body")
	body.Find("[src], [href]").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		for i, attr := range node.Attr {
			if attr.Key != "src" && attr.Key != "href" {
				continue
			}
			if internal, ok := images[attr.Val]; ok {
				node.Attr[i].Val = internal
			}
		}
	})

	var b strings.Builder
	for c := body.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func sectionFilename(name string, index int) string {
	if s := slug.Make(name); s != "" {
		return s
	}
	return fmt.Sprintf("page-%03d", index+1)
}

// imageFilename returns the resource name, adding an extension sniffed from
// the payload when the name has none.
func imageFilename(img model.ImageResource) string {
	name := path.Base(img.Name)
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	if path.Ext(name) != "" {
		return name
	}
	if i := strings.Index(img.Content, ";base64,"); i >= 0 {
		if raw, err := base64.StdEncoding.DecodeString(img.Content[i+len(";base64,"):]); err == nil {
			return name + mimetype.Detect(raw).Extension()
		}
	}
	return name
}

// uniqueName suffixes name with -2, -3, ... when it was already used.
func uniqueName(used map[string]int, name string) string {
	used[name]++
	n := used[name]
	if n == 1 {
		return name
	}
	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
	return uniqueName(used, candidate)
}
