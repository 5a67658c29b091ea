package epub

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ContainerPath is the fixed location of the container descriptor.
const ContainerPath = "META-INF/container.xml"

var (
	ErrMissingContainer   = errors.New("META-INF/container.xml not found")
	ErrMalformedContainer = errors.New("container.xml has no rootfile full-path")
)

// Container describes where the package document lives inside the archive.
type Container struct {
	PackagePath string
	// PackageDir is the directory part of PackagePath without a trailing
	// slash; empty when the package document sits at the archive root.
	PackageDir string
}

// LocateContainer reads container.xml and returns the first rootfile's
// full-path.
func LocateContainer(a *Archive) (Container, error) {
	if !a.HasEntry(ContainerPath) {
		return Container{}, ErrMissingContainer
	}
	text, err := a.ReadText(ContainerPath)
	if err != nil {
		return Container{}, fmt.Errorf("%w: %v", ErrMissingContainer, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return Container{}, fmt.Errorf("%w: %v", ErrMalformedContainer, err)
	}

	rootfile := doc.FindElement("//rootfile")
	if rootfile == nil {
		return Container{}, ErrMalformedContainer
	}
	fullPath := normalizePath(strings.TrimSpace(rootfile.SelectAttrValue("full-path", "")))
	if fullPath == "" {
		return Container{}, ErrMalformedContainer
	}

	c := Container{PackagePath: fullPath}
	if i := strings.LastIndex(fullPath, "/"); i >= 0 {
		c.PackageDir = fullPath[:i]
	}
	return c, nil
}
