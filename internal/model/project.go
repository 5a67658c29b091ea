// Package model holds the document aggregate an author edits: a project made
// of ordered pages, a per-tag style sheet and inlined image resources.
package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrLastPage        = errors.New("cannot delete the last page of a project")
	ErrLastProject     = errors.New("cannot delete the last project")
	ErrPageNotFound    = errors.New("page not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrUnknownStyle    = errors.New("unknown style")
	ErrEmptyName       = errors.New("name must not be empty")
	ErrNoPages         = errors.New("project needs at least one page")
)

const (
	newProjectContent = "<h1>New Project</h1>"
	newPageContent    = "<h1>New Chapter</h1>"
)

// Project is the document aggregate. It owns its pages, styles and images.
type Project struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Pages  []*Page              `json:"pages"`
	Styles map[string]StyleRule `json:"styles"`
	Images []ImageResource      `json:"images"`
}

// Page is one editable HTML fragment of a project.
type Page struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ImageResource is an image carried inline as a data URI.
type ImageResource struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// NewProjectID returns a fresh, session-unique project id.
func NewProjectID() string { return "proj-" + uuid.NewString() }

// NewPageID returns a fresh page id.
func NewPageID() string { return "page-" + uuid.NewString() }

// ChapterName is the positional label used for unnamed pages.
func ChapterName(n int) string { return fmt.Sprintf("Chapter %d", n) }

// NewProject creates a project with a single starter page and default styles.
func NewProject(name string) (*Project, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	return &Project{
		ID:   NewProjectID(),
		Name: name,
		Pages: []*Page{{
			ID:      NewPageID(),
			Name:    ChapterName(1),
			Content: newProjectContent,
		}},
		Styles: DefaultStyles(),
		Images: []ImageResource{},
	}, nil
}

// Assemble builds a project from already-extracted pages. Page ids are
// generated when missing.
func Assemble(name string, pages []*Page, images []ImageResource) (*Project, error) {
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	for _, pg := range pages {
		if pg.ID == "" {
			pg.ID = NewPageID()
		}
	}
	if images == nil {
		images = []ImageResource{}
	}
	return &Project{
		ID:     NewProjectID(),
		Name:   name,
		Pages:  pages,
		Styles: DefaultStyles(),
		Images: images,
	}, nil
}

// Page returns the page with the given id.
func (p *Project) Page(id string) (*Page, bool) {
	i := p.pageIndex(id)
	if i < 0 {
		return nil, false
	}
	return p.Pages[i], true
}

func (p *Project) pageIndex(id string) int {
	for i, pg := range p.Pages {
		if pg.ID == id {
			return i
		}
	}
	return -1
}

// AddPage appends a new "Chapter n" page and returns it.
func (p *Project) AddPage() *Page {
	pg := &Page{
		ID:      NewPageID(),
		Name:    ChapterName(len(p.Pages) + 1),
		Content: newPageContent,
	}
	p.Pages = append(p.Pages, pg)
	return pg
}

// DeletePage removes a page. The last remaining page cannot be deleted.
func (p *Project) DeletePage(id string) error {
	i := p.pageIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	if len(p.Pages) <= 1 {
		return ErrLastPage
	}
	p.Pages = append(p.Pages[:i], p.Pages[i+1:]...)
	return nil
}

// RenamePage changes a page's display label.
func (p *Project) RenamePage(id, name string) error {
	pg, ok := p.Page(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	if name == "" {
		return ErrEmptyName
	}
	pg.Name = name
	return nil
}

// MovePage moves the page at index from to index to, shifting the pages in
// between.
func (p *Project) MovePage(from, to int) error {
	n := len(p.Pages)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d -> %d of %d", ErrPageNotFound, from, to, n)
	}
	if from == to {
		return nil
	}
	pg := p.Pages[from]
	p.Pages = append(p.Pages[:from], p.Pages[from+1:]...)
	p.Pages = append(p.Pages[:to], append([]*Page{pg}, p.Pages[to:]...)...)
	return nil
}
