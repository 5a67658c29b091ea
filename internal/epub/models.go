package epub

// DefaultTitle is used when the package document carries no dc:title.
const DefaultTitle = "Untitled"

// Package represents the parsed package document (OPF)
type Package struct {
	Title         string
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // ids in first-seen document order
	Spine         []string                // idrefs in reading order
}

// ManifestItem represents an item in the manifest. Href is already resolved
// against the package directory.
type ManifestItem struct {
	ID        string
	Href      string
	MediaType string
}

// Item looks up a manifest entry by id.
func (p *Package) Item(id string) (ManifestItem, bool) {
	item, ok := p.Manifest[id]
	return item, ok
}

// ItemsInOrder returns manifest items in document order.
func (p *Package) ItemsInOrder() []ManifestItem {
	items := make([]ManifestItem, 0, len(p.ManifestOrder))
	for _, id := range p.ManifestOrder {
		if item, ok := p.Manifest[id]; ok {
			items = append(items, item)
		}
	}
	return items
}
