package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	fakecheck "github.com/anatolykoptev/go-fakecheck"
)

// catalogFile holds authentic reference products.
type catalogFile struct {
	References []fakecheck.ReferenceProduct `yaml:"references"`
}

// listingsFile holds scraped marketplace listings.
type listingsFile struct {
	Listings []fakecheck.ListingCandidate `yaml:"listings"`
}

// readCatalog parses a YAML (or JSON) catalogue. Relative image paths are
// resolved against the file's directory.
func readCatalog(path string) ([]fakecheck.ReferenceProduct, error) {
	var f catalogFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i := range f.References {
		resolvePaths(base, f.References[i].Images)
	}
	return f.References, nil
}

func readListings(path string) ([]fakecheck.ListingCandidate, error) {
	var f listingsFile
	if err := readYAML(path, &f); err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for i := range f.Listings {
		resolvePaths(base, f.Listings[i].Images)
	}
	return f.Listings, nil
}

func readYAML(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func resolvePaths(base string, images []fakecheck.ImageSource) {
	for i := range images {
		src := &images[i]
		if src.Kind != fakecheck.SourcePath || filepath.IsAbs(src.Path) {
			continue
		}
		abs := filepath.Join(base, src.Path)
		if src.ID == src.Path {
			src.ID = abs
		}
		src.Path = abs
	}
}
