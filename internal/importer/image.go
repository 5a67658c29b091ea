package importer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/yuanying/epubscribe/internal/epub"
	"github.com/yuanying/epubscribe/internal/model"
)

const (
	defaultJPEGQuality = 85
	defaultMaxPixels   = 100 * 1000 * 1000 // 100 megapixels
)

// inlinedImage is an ImageResource together with the archive path it was
// read from; the path is what chapter references resolve to.
type inlinedImage struct {
	Path     string
	Resource model.ImageResource
}

// isImage checks if a media type indicates an image resource.
func isImage(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}

// DataURI formats raw base64 data as a data URI.
func DataURI(mediaType, b64 string) string {
	return "data:" + mediaType + ";base64," + b64
}

// InlineImages reads every image manifest item concurrently and waits for
// the whole batch. Missing or unreadable entries are reported in the second
// return value and left out of the first; results follow manifest order.
func (p *Pipeline) InlineImages(ctx context.Context, a *epub.Archive, pkg *epub.Package) ([]inlinedImage, []SkippedItem, error) {
	var items []epub.ManifestItem
	for _, item := range pkg.ItemsInOrder() {
		if isImage(item.MediaType) {
			items = append(items, item)
		}
	}

	results := make([]*inlinedImage, len(items))
	failures := make([]*SkippedItem, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.concurrency())
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b64, err := p.readImage(a, item)
			if err != nil {
				p.log.Warn("skipping unreadable image", "id", item.ID, "path", item.Href, "error", err)
				failures[i] = &SkippedItem{ID: item.ID, Path: item.Href, Reason: ReasonImageUnreadable, Err: err}
				return nil
			}
			results[i] = &inlinedImage{
				Path: item.Href,
				Resource: model.ImageResource{
					Name:    path.Base(item.Href),
					Content: DataURI(item.MediaType, b64),
					Type:    item.MediaType,
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	images := make([]inlinedImage, 0, len(items))
	for _, r := range results {
		if r != nil {
			images = append(images, *r)
		}
	}
	var skipped []SkippedItem
	for _, f := range failures {
		if f != nil {
			skipped = append(skipped, *f)
		}
	}
	return images, skipped, nil
}

func (p *Pipeline) readImage(a *epub.Archive, item epub.ManifestItem) (string, error) {
	if p.optimizer == nil {
		return a.ReadBase64(item.Href)
	}
	data, err := a.ReadFile(item.Href)
	if err != nil {
		return "", err
	}
	shrunk, warning := p.optimizer.Shrink(item.MediaType, data)
	if warning != "" {
		p.log.Debug("image kept as-is", "path", item.Href, "reason", warning)
	}
	return base64.StdEncoding.EncodeToString(shrunk), nil
}

// ImageOptimizer downscales raster images wider than MaxWidth, keeping the
// original format so the manifest media type stays truthful.
type ImageOptimizer struct {
	MaxWidth    int
	JPEGQuality int
	MaxPixels   int // Total pixel count limit for decode (width * height)
}

// NewImageOptimizer returns nil when maxWidth disables resizing.
func NewImageOptimizer(maxWidth, jpegQuality int) *ImageOptimizer {
	if maxWidth <= 0 {
		return nil
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = defaultJPEGQuality
	}
	return &ImageOptimizer{
		MaxWidth:    maxWidth,
		JPEGQuality: jpegQuality,
		MaxPixels:   defaultMaxPixels,
	}
}

// Shrink returns the resized image, or input unchanged together with a
// reason when the image is left alone.
func (o *ImageOptimizer) Shrink(mediaType string, input []byte) ([]byte, string) {
	format, ok := imagingFormat(mediaType)
	if !ok {
		return input, "unsupported format " + mediaType
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return input, fmt.Sprintf("image decode failed: %v", err)
	}
	if cfg.Width <= o.MaxWidth {
		return input, ""
	}
	if pixels := uint64(cfg.Width) * uint64(cfg.Height); o.MaxPixels > 0 && pixels > uint64(o.MaxPixels) {
		return input, fmt.Sprintf("image too large to decode: %dx%d", cfg.Width, cfg.Height)
	}
	if format == imaging.GIF && isAnimatedGIF(input) {
		return input, "animated gif"
	}

	src, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		return input, fmt.Sprintf("image decode failed: %v", err)
	}
	resized := imaging.Resize(src, o.MaxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(o.JPEGQuality)); err != nil {
		return input, fmt.Sprintf("image encode failed: %v", err)
	}
	return buf.Bytes(), ""
}

func imagingFormat(mediaType string) (imaging.Format, bool) {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return imaging.JPEG, true
	case "image/png":
		return imaging.PNG, true
	case "image/gif":
		return imaging.GIF, true
	default:
		return 0, false
	}
}

func isAnimatedGIF(data []byte) bool {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false
	}
	return len(g.Image) > 1
}
