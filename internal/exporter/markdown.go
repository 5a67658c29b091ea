package exporter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/yuanying/epubscribe/internal/model"
)

var reDataURI = regexp.MustCompile(`(data:[a-zA-Z0-9/+.-]+;base64,)[A-Za-z0-9+/=]{64,}`)

// Markdown converts every page of p to Markdown. The project name is the
// level-one heading and each page sits under a level-two heading carrying
// its name. Large data URIs are truncated.
func Markdown(p *model.Project) (string, error) {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(
				commonmark.WithHeadingStyle("atx"),
			),
		),
	)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	for _, pg := range p.Pages {
		md, err := conv.ConvertString(pg.Content)
		if err != nil {
			return "", fmt.Errorf("converting page %q: %w", pg.Name, err)
		}
		fmt.Fprintf(&b, "## %s\n\n", pg.Name)
		b.WriteString(strings.TrimSpace(reDataURI.ReplaceAllString(md, "${1}...")))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}
