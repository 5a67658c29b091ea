package importer

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/epubscribe/internal/epub"
	"github.com/yuanying/epubscribe/internal/model"
)

// ErrNoChapters is returned when no spine entry yields a readable XHTML page.
var ErrNoChapters = errors.New("no valid XHTML chapters found")

// ExtractChapters walks the spine in reading order and turns each readable
// XHTML document into a page whose image references are inlined. Entries
// that cannot be used are returned as skipped items.
func (p *Pipeline) ExtractChapters(a *epub.Archive, pkg *epub.Package, idx *ImageIndex) ([]*model.Page, []SkippedItem, error) {
	var (
		pages   []*model.Page
		skipped []SkippedItem
	)

	for _, idref := range pkg.Spine {
		item, ok := pkg.Item(idref)
		if !ok {
			p.log.Warn("spine item not found in manifest, skipping", "idref", idref)
			skipped = append(skipped, SkippedItem{ID: idref, Reason: ReasonMissingManifestItem})
			continue
		}

		// Check if this is an XHTML file
		if item.MediaType != epub.XHTMLMediaType {
			p.log.Debug("spine item is not XHTML, skipping", "idref", idref, "media_type", item.MediaType)
			skipped = append(skipped, SkippedItem{ID: idref, Path: item.Href, Reason: ReasonNotXHTML})
			continue
		}

		content, err := epub.LoadContent(a, item)
		if err != nil {
			p.log.Warn("failed to read chapter, skipping", "idref", idref, "path", item.Href, "error", err)
			skipped = append(skipped, SkippedItem{ID: idref, Path: item.Href, Reason: ReasonChapterUnreadable, Err: err})
			continue
		}
		if !content.HasBody {
			p.log.Debug("chapter has no body tag, using whole document", "path", item.Href)
		}

		body := RewriteReferences(content.Body, content.Path, idx)
		name := HeadingName(body)
		if name == "" {
			name = model.ChapterName(len(pages) + 1)
		}

		pages = append(pages, &model.Page{
			ID:      model.NewPageID(),
			Name:    name,
			Content: body,
		})
	}

	if len(pages) == 0 {
		return nil, skipped, ErrNoChapters
	}
	return pages, skipped, nil
}

// HeadingName returns the trimmed text of the first h1, h2 or h3 element in
// document order, or "" when there is none.
func HeadingName(fragment string) string {
	doc, err := parseFragment(fragment)
	if err != nil {
		return ""
	}
	heading := doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		switch goquery.NodeName(s) {
		case "h1", "h2", "h3":
			return true
		}
		return false
	}).First()
	if heading.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(heading.Text())
}
