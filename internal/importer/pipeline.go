package importer

import (
	"context"
	"fmt"
	"os"

	"github.com/yuanying/epubscribe/internal/epub"
	"github.com/yuanying/epubscribe/internal/model"
	"github.com/yuanying/epubscribe/internal/platform/logger"
)

const defaultConcurrency = 8

// Options holds options for the import pipeline.
type Options struct {
	// Concurrency bounds parallel image reads. Zero means the default.
	Concurrency int
	// MaxImageWidth enables downscaling of wider raster images. Zero keeps
	// image bytes untouched.
	MaxImageWidth int
	JPEGQuality   int
	// MaxEntryBytes bounds a single decompressed archive entry. Zero means
	// epub.DefaultMaxEntrySize.
	MaxEntryBytes int64
}

func (o Options) concurrency() int {
	if o.Concurrency <= 0 {
		return defaultConcurrency
	}
	return o.Concurrency
}

// Reasons recorded for skipped items.
const (
	ReasonImageUnreadable     = "image unreadable"
	ReasonMissingManifestItem = "spine idref not in manifest"
	ReasonNotXHTML            = "not an XHTML document"
	ReasonChapterUnreadable   = "chapter unreadable"
)

// SkippedItem records a manifest or spine entry left out of the import.
type SkippedItem struct {
	ID     string
	Path   string
	Reason string
	Err    error
}

// Result is the outcome of a successful import.
type Result struct {
	Project *model.Project
	Skipped []SkippedItem
}

// Pipeline orchestrates the EPUB to project import.
type Pipeline struct {
	opts      Options
	optimizer *ImageOptimizer
	log       *logger.Logger
}

// NewPipeline creates a new import pipeline. A nil logger discards output.
func NewPipeline(opts Options, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		opts:      opts,
		optimizer: NewImageOptimizer(opts.MaxImageWidth, opts.JPEGQuality),
		log:       log.With("component", "importer"),
	}
}

// ImportFile reads an EPUB from disk and imports it.
func (p *Pipeline) ImportFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read EPUB: %w", err)
	}
	return p.Import(ctx, data)
}

// Import executes the pipeline over an in-memory archive. On any fatal
// error no project is returned.
func (p *Pipeline) Import(ctx context.Context, data []byte) (*Result, error) {
	archive, err := epub.OpenArchive(data, epub.WithMaxEntrySize(p.opts.MaxEntryBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	pkg, err := p.parsePackage(archive)
	if err != nil {
		return nil, err
	}

	// Every image must be inlined before any chapter markup is rewritten.
	images, skipped, err := p.InlineImages(ctx, archive, pkg)
	if err != nil {
		return nil, fmt.Errorf("failed to inline images: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages, chapterSkips, err := p.ExtractChapters(archive, pkg, NewImageIndex(images))
	skipped = append(skipped, chapterSkips...)
	if err != nil {
		return nil, err
	}

	resources := make([]model.ImageResource, len(images))
	for i, img := range images {
		resources[i] = img.Resource
	}
	project, err := model.Assemble(pkg.Title, pages, resources)
	if err != nil {
		return nil, err
	}

	p.log.Info("imported EPUB",
		"title", project.Name,
		"pages", len(project.Pages),
		"images", len(project.Images),
		"skipped", len(skipped),
	)
	return &Result{Project: project, Skipped: skipped}, nil
}

// parsePackage locates and parses the package document.
func (p *Pipeline) parsePackage(archive *epub.Archive) (*epub.Package, error) {
	container, err := epub.LocateContainer(archive)
	if err != nil {
		return nil, err
	}

	opfData, err := archive.ReadFile(container.PackagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", epub.ErrMalformedContainer, err)
	}

	pkg, err := epub.ParsePackage(opfData, container.PackageDir)
	if err != nil {
		return nil, err
	}
	p.log.Debug("parsed package document",
		"path", container.PackagePath,
		"manifest", len(pkg.Manifest),
		"spine", len(pkg.Spine),
	)
	return pkg, nil
}
