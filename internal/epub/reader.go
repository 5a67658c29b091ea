package epub

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxEntrySize bounds the decompressed size of a single archive entry.
const DefaultMaxEntrySize int64 = 256 * 1024 * 1024

var (
	ErrArchiveFormat = errors.New("archive is not a valid zip container")
	ErrEntryNotFound = errors.New("archive entry not found")
	ErrEntryTooLarge = errors.New("archive entry exceeds size limit")
)

// Archive is a read-only view over an in-memory EPUB (zip) blob.
type Archive struct {
	files        map[string]*zip.File
	maxEntrySize int64
}

// ArchiveOption configures an Archive.
type ArchiveOption func(*Archive)

// WithMaxEntrySize overrides DefaultMaxEntrySize. Values <= 0 are ignored.
func WithMaxEntrySize(n int64) ArchiveOption {
	return func(a *Archive) {
		if n > 0 {
			a.maxEntrySize = n
		}
	}
}

// OpenArchive validates data as a zip container and indexes its entries.
func OpenArchive(data []byte, opts ...ArchiveOption) (*Archive, error) {
	if !isZipFamily(data) {
		return nil, fmt.Errorf("%w: detected %s", ErrArchiveFormat, mimetype.Detect(data).String())
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveFormat, err)
	}

	a := &Archive{
		files:        make(map[string]*zip.File, len(zr.File)),
		maxEntrySize: DefaultMaxEntrySize,
	}
	for _, opt := range opts {
		opt(a)
	}

	// Build file map with normalized paths
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		a.files[normalizePath(f.Name)] = f
	}

	return a, nil
}

// isZipFamily reports whether data sniffs as application/zip or one of its
// descendants (application/epub+zip, jar, docx, ...).
func isZipFamily(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

// HasEntry reports whether path exists in the archive.
func (a *Archive) HasEntry(path string) bool {
	_, ok := a.files[normalizePath(path)]
	return ok
}

// Entries returns all entry names in lexical order.
func (a *Archive) Entries() []string {
	names := make([]string, 0, len(a.files))
	for name := range a.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadFile reads the contents of a file from the archive
func (a *Archive) ReadFile(path string) ([]byte, error) {
	path = normalizePath(path)
	f, ok := a.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, path)
	}

	if f.UncompressedSize64 > uint64(a.maxEntrySize) {
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrEntryTooLarge, path, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer rc.Close()

	// The declared size may be forged, so read one byte past the limit.
	data, err := io.ReadAll(io.LimitReader(rc, a.maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if int64(len(data)) > a.maxEntrySize {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, path)
	}
	return data, nil
}

// ReadText reads an entry as text. A leading UTF-8 BOM is dropped.
func (a *Archive) ReadText(path string) (string, error) {
	data, err := a.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
}

// ReadBase64 reads an entry and returns it base64 (standard, padded) encoded.
func (a *Archive) ReadBase64(path string) (string, error) {
	data, err := a.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// normalizePath normalizes file paths (removes ./ prefix)
func normalizePath(path string) string {
	return strings.TrimPrefix(path, "./")
}
