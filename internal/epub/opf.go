package epub

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html/charset"
)

const dcNamespace = "http://purl.org/dc/elements/1.1/"

var ErrMalformedPackage = errors.New("package document is not well-formed XML")

// opfPackage represents the OPF XML structure
type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

// opfMetadata represents the metadata section. Elements are matched by hand
// so a dc: prefix that was never declared still counts.
type opfMetadata struct {
	Elements []opfMetaElement `xml:",any"`
}

type opfMetaElement struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// title returns the trimmed text of the first dc:title.
func (m opfMetadata) title() string {
	for _, el := range m.Elements {
		if el.XMLName.Local != "title" {
			continue
		}
		if el.XMLName.Space != dcNamespace && el.XMLName.Space != "dc" {
			continue
		}
		return strings.TrimSpace(el.Value)
	}
	return ""
}

// opfManifest represents the manifest section
type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

// opfManifestItem represents an item in the manifest
type opfManifestItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

// opfSpine represents the spine section
type opfSpine struct {
	ItemRefs []opfItemRef `xml:"itemref"`
}

// opfItemRef represents an itemref in the spine
type opfItemRef struct {
	IDRef string `xml:"idref,attr"`
}

// ParsePackage parses OPF content. packageDir is the directory containing the
// OPF file, without trailing slash (e.g., "OEBPS"); every manifest href is
// resolved against it.
func ParsePackage(content []byte, packageDir string) (*Package, error) {
	var pkg opfPackage
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&pkg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}

	p := &Package{
		Title:    DefaultTitle,
		Manifest: make(map[string]ManifestItem, len(pkg.Manifest.Items)),
	}

	if title := pkg.Metadata.title(); title != "" {
		p.Title = title
	}

	// Later ids overwrite earlier ones; order keeps the first position.
	for _, item := range pkg.Manifest.Items {
		if _, seen := p.Manifest[item.ID]; !seen {
			p.ManifestOrder = append(p.ManifestOrder, item.ID)
		}
		p.Manifest[item.ID] = ManifestItem{
			ID:        item.ID,
			Href:      ResolveHref(packageDir, item.Href),
			MediaType: strings.TrimSpace(item.MediaType),
		}
	}

	for _, ref := range pkg.Spine.ItemRefs {
		p.Spine = append(p.Spine, ref.IDRef)
	}

	return p, nil
}

// ResolveHref joins a percent-decoded manifest href onto the package
// directory. ".." segments are kept as-is.
func ResolveHref(packageDir, href string) string {
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	if packageDir == "" {
		return href
	}
	return packageDir + "/" + href
}
